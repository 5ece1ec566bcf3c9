package dmcache

import "math/bits"

// subpage splits one page of a chunk into fixed-size elements for
// allocations smaller than a page (spec.md §3/§4.3). Free slots are tracked
// with a bitmap of uint64 words, the same representation Netty's PoolSubpage
// uses and the idiomatic Go shape for a small fixed-size bitset.
type subpage struct {
	owner       *chunk
	pageIdx     int
	pageOffset  int
	elemSize    int
	maxElements int

	bitmap    []uint64
	usedCount int

	doNotDestroy bool

	prevSubpage, nextSubpage node // size-class list linkage, owned by the arena
}

func (s *subpage) prev() node     { return s.prevSubpage }
func (s *subpage) next() node     { return s.nextSubpage }
func (s *subpage) setPrev(p node) { s.prevSubpage = p }
func (s *subpage) setNext(n node) { s.nextSubpage = n }

func newSubpage(owner *chunk, pageIdx, pageOffset, elemSize, pageSize int) *subpage {
	maxElements := pageSize / elemSize
	return &subpage{
		owner:        owner,
		pageIdx:      pageIdx,
		pageOffset:   pageOffset,
		elemSize:     elemSize,
		maxElements:  maxElements,
		bitmap:       make([]uint64, (maxElements+63)/64),
		doNotDestroy: true,
	}
}

func (s *subpage) full() bool { return s.usedCount == s.maxElements }
func (s *subpage) empty() bool { return s.usedCount == 0 }

// allocate returns the first clear bit, sets it, and reports whether a slot
// was available. A full subpage never reaches this; the arena's size-class
// list only ever offers non-full subpages.
func (s *subpage) allocate() (int, bool) {
	for word := 0; word < len(s.bitmap); word++ {
		if s.bitmap[word] == ^uint64(0) {
			continue
		}

		bit := bits.TrailingZeros64(^s.bitmap[word])
		idx := word*64 + bit
		if idx >= s.maxElements {
			return 0, false
		}

		s.bitmap[word] |= 1 << uint(bit)
		s.usedCount++
		return idx, true
	}

	return 0, false
}

// free clears a slot and reports whether the subpage still holds any live
// allocation (false once the last slot is released, signaling the caller to
// unlink it from the arena's size-class list and return the page).
func (s *subpage) free(bitIdx int) bool {
	word, bit := bitIdx/64, bitIdx%64
	s.bitmap[word] &^= 1 << uint(bit)
	s.usedCount--

	if s.usedCount == 0 {
		s.doNotDestroy = false
		return false
	}

	return true
}

// offsetOf returns the byte offset, within the owning chunk, of one element.
func (s *subpage) offsetOf(bitIdx int) int {
	return s.pageOffset + bitIdx*s.elemSize
}
