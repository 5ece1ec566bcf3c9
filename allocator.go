package dmcache

import "runtime"

// defaultPageSize and defaultMaxOrder give a 16 MiB chunk split into 8 KiB
// pages (2^11 pages), matching the original allocator's defaults.
const (
	defaultPageSize = 8192
	defaultMaxOrder = 11
)

// Allocator is the off-heap memory facade (C6): a fixed number of arenas,
// each independently locked, and a fixed number of thread-cache slots that
// spread allocate/free traffic across them. Go has no real goroutine-local
// storage, so affinity is explicit: callers pass a small, stable slot index
// (spec.md §9's design note) rather than relying on any runtime identity
// trick. dmcache's Cache uses its own segment index as that slot, reusing
// the sharding the concurrent map already does (see facade.go).
type Allocator struct {
	arenas []*arena
	caches []*threadCache

	maxMemory int
	closed    bool
}

// AllocatorOptions configures an Allocator. Zero values pick the same
// defaults the original allocator ships with.
type AllocatorOptions struct {
	MaxMemory  int
	ArenaCount int
	Slots      int
	PageSize   int
	MaxOrder   int
}

func (o AllocatorOptions) withDefaults() AllocatorOptions {
	if o.ArenaCount <= 0 {
		o.ArenaCount = 2 * runtime.GOMAXPROCS(0)
	}
	if o.Slots <= 0 {
		o.Slots = o.ArenaCount
	}
	if o.PageSize <= 0 {
		o.PageSize = defaultPageSize
	}
	if o.MaxOrder <= 0 {
		o.MaxOrder = defaultMaxOrder
	}
	return o
}

// NewAllocator builds an Allocator able to address up to opts.MaxMemory
// bytes of native memory, spread across opts.ArenaCount arenas.
func NewAllocator(opts AllocatorOptions) (*Allocator, error) {
	opts = opts.withDefaults()
	if opts.MaxMemory <= 0 {
		return nil, &ConfigError{Field: "MaxMemory", Value: opts.MaxMemory, Reason: "must be positive"}
	}

	chunkSize := opts.PageSize << opts.MaxOrder
	maxChunksPerArena := opts.MaxMemory / (opts.ArenaCount * chunkSize)
	if maxChunksPerArena < 1 {
		maxChunksPerArena = 1
	}

	a := &Allocator{
		arenas:    make([]*arena, opts.ArenaCount),
		caches:    make([]*threadCache, opts.Slots),
		maxMemory: opts.MaxMemory,
	}

	for i := range a.arenas {
		a.arenas[i] = newArena(opts.PageSize, opts.MaxOrder, maxChunksPerArena)
	}
	for i := range a.caches {
		a.caches[i] = newThreadCache(a.arenaFor(i))
	}

	return a, nil
}

func (a *Allocator) arenaFor(slot int) *arena {
	return a.arenas[slot%len(a.arenas)]
}

func (a *Allocator) cacheFor(slot int) *threadCache {
	return a.caches[slot%len(a.caches)]
}

// Allocate serves a request of at least size bytes on behalf of slot,
// returning a ByteBuf that owns the resulting allocation until Free is
// called on it.
func (a *Allocator) Allocate(slot, size int) (*ByteBuf, error) {
	if a.closed {
		return nil, ErrClosed
	}
	if size < 0 {
		return nil, &ConfigError{Field: "size", Value: size, Reason: "must be non-negative"}
	}

	ar := a.arenaFor(slot)
	tc := a.cacheFor(slot)

	c, h, normCapacity, err := ar.allocate(tc, size)
	if err != nil {
		return nil, err
	}

	return &ByteBuf{
		allocator:    a,
		arena:        ar,
		allocSlot:    slot,
		chunk:        c,
		h:            h,
		normCapacity: normCapacity,
		length:       size,
	}, nil
}

// Free releases buf back to the arena it came from. slot identifies the
// caller doing the freeing; when it matches the slot the buffer was
// allocated under, the allocation is first offered to that slot's thread
// cache instead of touching the arena lock.
func (a *Allocator) Free(slot int, buf *ByteBuf) {
	if buf.released {
		return
	}
	buf.released = true

	ar := buf.arena
	tc := a.cacheFor(slot)
	ar.free(tc, buf.chunk, buf.h, buf.normCapacity, slot == buf.allocSlot)
}

// Used returns the total number of bytes currently allocated across every
// arena. Allocations parked in a thread cache by a same-slot Free still
// count as used: their chunk does not get them back until the cache entry
// is trimmed.
func (a *Allocator) Used() int {
	total := 0
	for _, ar := range a.arenas {
		ar.mu.Lock()
		total += ar.hugeBytes
		for _, b := range ar.bands {
			for n := b.chunks.first; n != nil; n = n.next() {
				c := n.(*chunk)
				total += c.chunkSize - c.freeBytesVal
			}
		}
		ar.mu.Unlock()
	}
	return total
}

// Dump returns a diagnostic snapshot of every arena (SPEC_FULL.md
// supplement #3).
func (a *Allocator) Dump() []string {
	out := make([]string, len(a.arenas))
	for i, ar := range a.arenas {
		out[i] = ar.dump()
	}
	return out
}

// Close drains every thread cache back to its arena and marks the
// Allocator unusable. Outstanding ByteBufs must be freed first; Close does
// not reclaim memory still owned by a live buffer.
func (a *Allocator) Close() error {
	if a.closed {
		return ErrClosed
	}
	a.closed = true

	for _, tc := range a.caches {
		tc.trim()
	}
	return nil
}
