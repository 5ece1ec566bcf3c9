package dmcache

import "math/bits"

// Size-class layout, directly from spec.md §3/§4.4: tiny classes are
// quantum-spaced by 16 bytes below 512, small classes are log-spaced from
// 512 up to pageSize. Index 0 of the tiny table is the zero-size class and is
// deliberately never populated — spec.md §9's first Open Question, preserved
// here exactly as the original's toString() walks it starting at index 1.
const (
	tinyThreshold  = 512
	tinyQuantum    = 16
	numTinyClasses = tinyThreshold / tinyQuantum // 32 slots, indices 0..31; index 0 is the unused zero-size slot
)

func isTiny(normCapacity int) bool { return normCapacity < tinyThreshold }

func isTinyOrSmall(normCapacity, pageSize int) bool {
	return normCapacity&^(pageSize-1) == 0
}

// tinyIdx maps a tiny-class element size to its slot in the arena's
// tinySubpagePools table. elemSize must be a multiple of tinyQuantum.
func tinyIdx(elemSize int) int { return elemSize >> 4 }

// smallIdx maps a small-class element size (a power of two, >= 512) to its
// slot in the arena's smallSubpagePools table.
func smallIdx(elemSize int) int {
	tableIdx := 0
	e := elemSize >> 10
	for e != 0 {
		e >>= 1
		tableIdx++
	}
	return tableIdx
}

// numSmallClasses returns how many small size classes exist below pageSize.
func numSmallClasses(pageSize int) int {
	return bits.TrailingZeros(uint(pageSize)) - bits.TrailingZeros(uint(tinyThreshold))
}

// normalizeCapacity rounds a requested size up to the smallest class able to
// serve it, per spec.md §4.4 step 1.
func normalizeCapacity(reqCapacity, chunkSize int) int {
	if reqCapacity >= chunkSize {
		return reqCapacity
	}

	if !isTiny(reqCapacity) {
		return nextPowerOfTwo(reqCapacity)
	}

	if reqCapacity&(tinyQuantum-1) == 0 {
		if reqCapacity == 0 {
			return tinyQuantum
		}
		return reqCapacity
	}

	return (reqCapacity &^ (tinyQuantum - 1)) + tinyQuantum
}

func nextPowerOfTwo(v int) int {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(v-1))
}
