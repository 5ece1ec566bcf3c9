package dmcache

import (
	"fmt"
	"strings"
	"sync"
)

// Utilization bands, in the order spec.md's data model chains them. This
// layout (including the asymmetric min/max ranges and q000's dead end) is
// not generic Netty: it is lifted verbatim from the PoolArena constructor
// this project's allocator was distilled from, where q000's prevList is nil
// (so a chunk whose usage falls back to zero is destroyed, never recycled
// into qInit) while qInit's prevList points at itself (so a chunk already in
// qInit is never destroyed purely by going idle).
const (
	bandQInit = iota
	bandQ000
	bandQ025
	bandQ050
	bandQ075
	bandQ100
	numBands
)

type band struct {
	name               string
	minUsage, maxUsage int
	chunks             list
}

// allocBandOrder is the order allocate walks the bands, answering spec.md
// §9's first Open Question: favor chunks that are already in use but not
// saturated (q050, then q025, then q000), and only then reach for freshly
// admitted (qInit) or nearly full (q075/q100) chunks.
var allocBandOrder = [numBands]int{bandQ050, bandQ025, bandQ000, bandQInit, bandQ075, bandQ100}

func newBands() [numBands]*band {
	return [numBands]*band{
		bandQInit: {name: "qInit", minUsage: minInt, maxUsage: 25},
		bandQ000:  {name: "q000", minUsage: 1, maxUsage: 50},
		bandQ025:  {name: "q025", minUsage: 25, maxUsage: 75},
		bandQ050:  {name: "q050", minUsage: 50, maxUsage: 100},
		bandQ075:  {name: "q075", minUsage: 75, maxUsage: 100},
		bandQ100:  {name: "q100", minUsage: 100, maxUsage: maxInt},
	}
}

const (
	minInt = -1 << 63
	maxInt = 1<<63 - 1
)

// arena is one of the Allocator's independent pools (C4): its own chunk
// bands, its own tiny/small size-class free lists, and its own mutex. A
// cache with several arenas spreads concurrent allocator contention across
// them the way forget spreads cache contention across segments.
type arena struct {
	mu sync.Mutex

	pageSize  int
	maxOrder  int
	chunkSize int

	bands [numBands]*band

	// tinySubpagePools and smallSubpagePools hold, per size class, the list
	// of subpages with at least one free element. Index 0 of
	// tinySubpagePools is deliberately unused (spec.md §9, Open Question 1):
	// a zero-byte allocation is rounded up to tinyQuantum before it ever
	// reaches here.
	tinySubpagePools  []*list
	smallSubpagePools []*list

	chunkCount int
	maxChunks  int
	maxBytes   int // maxChunks * chunkSize; the budget huge allocations draw against too

	hugeBytes int // bytes held by unpooled (huge) chunks, guarded by mu
}

func newArena(pageSize, maxOrder, maxChunks int) *arena {
	chunkSize := pageSize << maxOrder
	a := &arena{
		pageSize:  pageSize,
		maxOrder:  maxOrder,
		chunkSize: chunkSize,
		bands:     newBands(),
		maxChunks: maxChunks,
		maxBytes:  maxChunks * chunkSize,
	}

	a.tinySubpagePools = make([]*list, numTinyClasses)
	for i := range a.tinySubpagePools {
		a.tinySubpagePools[i] = &list{}
	}

	a.smallSubpagePools = make([]*list, numSmallClasses(pageSize)+1)
	for i := range a.smallSubpagePools {
		a.smallSubpagePools[i] = &list{}
	}

	return a
}

// allocate serves one request, preferring a cached handle from tc, then an
// existing subpage or chunk, and only building a brand new chunk once every
// band comes up empty.
func (a *arena) allocate(tc *threadCache, reqCapacity int) (*chunk, handle, int, error) {
	normCapacity := normalizeCapacity(reqCapacity, a.chunkSize)

	if normCapacity >= a.chunkSize {
		return a.allocateHuge(normCapacity)
	}

	if tc != nil {
		if ch, ok := tc.take(normCapacity, isTinyOrSmall(normCapacity, a.pageSize)); ok {
			return ch.c, ch.h, normCapacity, nil
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if isTinyOrSmall(normCapacity, a.pageSize) {
		return a.allocateSubpageLocked(normCapacity)
	}
	return a.allocateNormalLocked(normCapacity)
}

// allocateHuge serves a request too large to fit a pooled chunk (spec.md
// §4.4's huge path): a dedicated unpooled chunk, never admitted to any band,
// always destroyed on free. It bypasses chunkCount (there's no chunk tree to
// count), but it still draws against the arena's byte budget alongside every
// pooled chunk, so Used() and allocation failure stay accurate for large
// requests instead of growing the arena without bound.
func (a *arena) allocateHuge(normCapacity int) (*chunk, handle, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.chunkCount*a.chunkSize+a.hugeBytes+normCapacity > a.maxBytes {
		return nil, 0, normCapacity, ErrAllocationFailure
	}

	mem, err := newMemory(normCapacity)
	if err != nil {
		return nil, 0, normCapacity, err
	}

	c := newUnpooledChunk(a, mem)
	a.hugeBytes += normCapacity
	return c, makeHandle(0, -1), normCapacity, nil
}

func (a *arena) subpagePoolFor(elemSize int) *list {
	if isTiny(elemSize) {
		return a.tinySubpagePools[tinyIdx(elemSize)]
	}
	return a.smallSubpagePools[smallIdx(elemSize)]
}

func (a *arena) allocateSubpageLocked(normCapacity int) (*chunk, handle, int, error) {
	pool := a.subpagePoolFor(normCapacity)
	if !pool.empty() {
		sp := pool.first.(*subpage)
		bitIdx, ok := sp.allocate()
		if ok {
			if sp.full() {
				pool.remove(sp)
			}
			return sp.owner, makeHandle(sp.pageIdx+sp.owner.leafBase, bitIdx), normCapacity, nil
		}
	}

	c, h, err := a.allocateFromBandsLocked(func(c *chunk) (handle, error) {
		sp, h, err := c.allocateSubpage(normCapacity)
		if err != nil {
			return 0, err
		}
		if !sp.full() {
			pool.append(sp)
		}
		return h, nil
	})
	if err != nil {
		return nil, 0, normCapacity, err
	}
	return c, h, normCapacity, nil
}

func (a *arena) allocateNormalLocked(normCapacity int) (*chunk, handle, int, error) {
	c, h, err := a.allocateFromBandsLocked(func(c *chunk) (handle, error) {
		return c.allocate(normCapacity)
	})
	if err != nil {
		return nil, 0, normCapacity, err
	}
	return c, h, normCapacity, nil
}

// allocateFromBandsLocked walks the bands in allocBandOrder, trying try on
// every chunk in each until one succeeds, then falls back to building a
// fresh chunk admitted into qInit. huge (chunkSize-or-larger) requests
// bypass pooling entirely and get their own unpooled chunk, never counted
// against maxChunks and always destroyed on free.
func (a *arena) allocateFromBandsLocked(try func(*chunk) (handle, error)) (*chunk, handle, error) {
	for _, bandIdx := range allocBandOrder {
		b := a.bands[bandIdx]
		for n := b.chunks.first; n != nil; n = n.next() {
			c := n.(*chunk)
			h, err := try(c)
			if err == nil {
				a.moveAfterAllocLocked(c, bandIdx)
				return c, h, nil
			}
		}
	}

	if a.chunkCount >= a.maxChunks {
		return nil, 0, ErrAllocationFailure
	}

	mem, err := newMemory(a.chunkSize)
	if err != nil {
		return nil, 0, err
	}

	c := newChunk(a, mem, a.pageSize, a.maxOrder)
	h, err := try(c)
	if err != nil {
		mem.release()
		return nil, 0, err
	}

	a.chunkCount++
	a.admitChunkLocked(c)
	return c, h, nil
}

// admitChunkLocked inserts a freshly built chunk, cascading it forward
// immediately if its very first allocation already pushed it past qInit's
// ceiling (possible when a single request consumes most of a small chunk).
func (a *arena) admitChunkLocked(c *chunk) {
	c.band = bandQInit
	a.bands[bandQInit].chunks.append(c)
	a.moveAfterAllocLocked(c, bandQInit)
}

func (a *arena) moveAfterAllocLocked(c *chunk, bandIdx int) {
	for bandIdx < bandQ100 {
		b := a.bands[bandIdx]
		usage := c.usage()
		if usage < b.maxUsage {
			return
		}

		next := a.bands[bandIdx+1]
		b.chunks.remove(c)
		next.chunks.append(c)
		bandIdx++
		c.band = bandIdx
	}
}

// free returns an allocation to its arena, offering it to the calling
// slot's thread cache first when sameThread is true. The thread-cache offer is
// skipped for huge (unpooled) allocations, which are always destroyed
// outright.
func (a *arena) free(tc *threadCache, c *chunk, h handle, normCapacity int, sameThread bool) {
	if c.unpooled {
		a.mu.Lock()
		a.hugeBytes -= normCapacity
		a.mu.Unlock()
		c.destroy()
		return
	}

	if sameThread && tc != nil && tc.offer(c, h, normCapacity) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.freeLocked(c, h)
}

// freeLocked performs the actual release plus band/size-class bookkeeping.
// Exposed (lowercase, package-internal) so threadCache.trim can reuse it
// under the arena's own lock.
func (a *arena) freeLocked(c *chunk, h handle) {
	if h.isSubpage() {
		sp := c.subpageAt(h)
		wasFull := sp.full()
		stillLive := sp.free(h.subpageBitIdx())

		pool := a.subpagePoolFor(sp.elemSize)
		if !stillLive {
			if !wasFull {
				pool.remove(sp)
			}
			c.freeSubpagePage(sp.pageIdx)
		} else if wasFull {
			pool.append(sp)
		}
	} else {
		c.free(h)
	}

	a.moveAfterFreeLocked(c, c.band)
}

func (a *arena) moveAfterFreeLocked(c *chunk, bandIdx int) {
	for bandIdx > bandQInit {
		b := a.bands[bandIdx]
		usage := c.usage()
		if usage >= b.minUsage {
			return
		}

		b.chunks.remove(c)

		if bandIdx == bandQ000 {
			// q000's prevList is nil: nowhere lower to demote into.
			a.chunkCount--
			c.destroy()
			return
		}

		bandIdx--
		c.band = bandIdx
		a.bands[bandIdx].chunks.append(c)
	}
}

// dump renders a human-readable snapshot of the arena's band occupancy and
// size-class pools (SPEC_FULL.md supplement #3, a Go rendition of the
// original allocator's toString()). Tiny class index 0 is skipped: it is
// permanently unused (see the comment on tinySubpagePools).
func (a *arena) dump() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var b strings.Builder
	for _, band := range a.bands {
		count, used := 0, 0
		for n := band.chunks.first; n != nil; n = n.next() {
			count++
			used += n.(*chunk).usage()
		}
		avg := 0
		if count > 0 {
			avg = used / count
		}
		fmt.Fprintf(&b, "%s: %d chunks, avg usage %d%%\n", band.name, count, avg)
	}

	for i := 1; i < len(a.tinySubpagePools); i++ {
		if a.tinySubpagePools[i].empty() {
			continue
		}
		fmt.Fprintf(&b, "tiny[%d]: non-empty\n", i)
	}
	for i, pool := range a.smallSubpagePools {
		if pool.empty() {
			continue
		}
		fmt.Fprintf(&b, "small[%d]: non-empty\n", i)
	}

	return b.String()
}
