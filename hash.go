package dmcache

import "github.com/cespare/xxhash/v2"

// spread mixes a raw hash before it's used to pick a segment or a bucket.
// xxhash already scatters bits well, but keys with small, related inputs
// (sequential numeric IDs turned into strings, for instance) can still
// collide in the low bits a power-of-two mask keeps; this is the same
// supplemental-hash idea ConcurrentHashMap applies on top of Object.hashCode.
func spread(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

func hashKey(key string) uint64 {
	return spread(xxhash.Sum64String(key))
}

// segmentsFor rounds the requested concurrency up to a power of two, capped
// at 65536 (spec.md §4.9), and returns it alongside the shift needed to pull
// the segment index out of the spread hash: segment index =
// (hash >> shift) & (count - 1). The shift is sized for a 32-bit hash, so the
// index comes from the bits just below bit 32 of the 64-bit spread hash, not
// from its top bits.
func segmentsFor(concurrency int) (count int, shift uint) {
	doublings := 0
	count = 1
	for count < concurrency && count < 65536 {
		count <<= 1
		doublings++
	}
	return count, 32 - uint(doublings)
}
