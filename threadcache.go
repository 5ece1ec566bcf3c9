package dmcache

import "math/bits"

// threadCacheRingCapacity bounds how many recently-freed handles a single
// size class keeps before the arena lock is touched again. Small on purpose:
// the cache exists to absorb allocate/free churn from one caller, not to act
// as a secondary pool.
const threadCacheRingCapacity = 32

// threadCache is the C5 per-slot cache described in spec.md §9's design
// note: Go has no real thread-local storage, so affinity is represented
// explicitly by a caller-supplied slot index (see Allocator.Allocate)
// instead of any goroutine-identity trick. Each slot owns exactly one
// threadCache for the lifetime of the Allocator, so outstanding cached
// handles are always reachable for Close to drain back to their arenas —
// unlike a sync.Pool, whose GC-driven eviction could otherwise leak native
// memory that was never returned to an arena.
type threadCache struct {
	owner *arena

	tiny   []*ring
	small  []*ring
	normal []*ring
}

func newThreadCache(a *arena) *threadCache {
	tc := &threadCache{
		owner:  a,
		tiny:   make([]*ring, numTinyClasses),
		small:  make([]*ring, numSmallClasses(a.pageSize)+1),
		normal: make([]*ring, a.maxOrder+1),
	}
	return tc
}

func normalClassIdx(normCapacity, pageSize int) int {
	return bits.TrailingZeros(uint(normCapacity / pageSize))
}

// offer attempts to park a freed allocation in the calling slot's cache
// instead of returning it to the arena immediately. The relevant ring is
// created on first use. Returns false when that ring is full, in which case
// the caller must fall back to the arena's locked free path.
func (tc *threadCache) offer(c *chunk, h handle, normCapacity int) bool {
	rings, idx := tc.ringsFor(normCapacity, h)
	if rings[idx] == nil {
		rings[idx] = newRing(threadCacheRingCapacity)
	}
	return rings[idx].push(cachedHandle{c: c, h: h})
}

// take tries to redeem a previously cached handle for normCapacity, avoiding
// the arena lock entirely on a hit.
func (tc *threadCache) take(normCapacity int, isSubpage bool) (cachedHandle, bool) {
	var rings []*ring
	var idx int

	if isSubpage {
		rings, idx = tc.subpageRingsFor(normCapacity)
	} else {
		rings = tc.normal
		idx = normalClassIdx(normCapacity, tc.owner.pageSize)
	}

	if idx < 0 || idx >= len(rings) || rings[idx] == nil {
		return cachedHandle{}, false
	}
	return rings[idx].pop()
}

func (tc *threadCache) ringsFor(normCapacity int, h handle) ([]*ring, int) {
	if !h.isSubpage() {
		return tc.normal, normalClassIdx(normCapacity, tc.owner.pageSize)
	}
	return tc.subpageRingsFor(normCapacity)
}

func (tc *threadCache) subpageRingsFor(normCapacity int) ([]*ring, int) {
	if isTiny(normCapacity) {
		return tc.tiny, tinyIdx(normCapacity)
	}
	return tc.small, smallIdx(normCapacity)
}

// trim drains every ring back to the owning arena. Called by Allocator.Close
// and can be invoked periodically (e.g. by a caller-driven ticker) to bound
// how much memory a bursty caller's cache can pin.
func (tc *threadCache) trim() {
	tc.owner.mu.Lock()
	defer tc.owner.mu.Unlock()

	drain := func(rings []*ring) {
		for _, r := range rings {
			if r == nil {
				continue
			}
			r.drain(func(ch cachedHandle) {
				tc.owner.freeLocked(ch.c, ch.h)
			})
		}
	}

	drain(tc.tiny)
	drain(tc.small)
	drain(tc.normal)
}
