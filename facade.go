package dmcache

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Cache is the public off-heap key-value cache (C6's allocator plus C9's
// concurrent map, wired together). Keys are strings; values are raw bytes
// copied into native memory on Set and copied back out on Get. SetValue and
// GetValue are a thin gob-based convenience layer on top for callers who
// would rather store Go values directly.
type Cache struct {
	opts  Options
	alloc *Allocator
	m     *concurrentMap
	log   zerolog.Logger
	stats *Stats

	closed atomic.Bool
}

// New builds a Cache per opts. Options.MaxMemorySize must be positive;
// every other field has a usable default.
func New(opts Options) (*Cache, error) {
	opts = opts.withDefaults()
	if opts.MaxMemorySize <= 0 {
		return nil, &ConfigError{Field: "MaxMemorySize", Value: opts.MaxMemorySize, Reason: "must be positive"}
	}

	alloc, err := NewAllocator(AllocatorOptions{
		MaxMemory:  opts.MaxMemorySize,
		ArenaCount: opts.ArenaCount,
	})
	if err != nil {
		return nil, err
	}

	m, err := newConcurrentMap(context.Background(), opts.Concurrency, opts.LoadFactor, opts.MaxEntriesPerSegment)
	if err != nil {
		return nil, err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("component", "dmcache").Logger()

	return &Cache{opts: opts, alloc: alloc, m: m, log: logger, stats: newStats()}, nil
}

// Stats returns the cache's running hit/miss/put/remove/eviction counters
// and lets a caller subscribe to the underlying event stream.
func (c *Cache) Stats() *Stats { return c.stats }

func (c *Cache) slotFor(hash uint64) int {
	return int((hash >> c.m.segmentShift) & c.m.segmentMask)
}

// Set stores data under key, replacing any previous value. data is copied
// into native memory; the caller's slice is never retained.
func (c *Cache) Set(key string, data []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}

	hash := hashKey(key)
	slot := c.slotFor(hash)

	buf, err := c.alloc.Allocate(slot, len(data))
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Int("size", len(data)).Msg("allocate failed")
		return err
	}
	if _, err := buf.WriteAt(data, 0); err != nil {
		buf.Free(slot)
		return err
	}

	c.m.Put(key, newValue(key, hash, buf), slot)
	c.stats.record(EventPut, key)
	c.log.Debug().Str("key", key).Int("bytes", len(data)).Msg("set")
	return nil
}

// SetValue gob-encodes v and stores it under key.
func (c *Cache) SetValue(key string, v interface{}) error {
	data, err := encodeValue(v)
	if err != nil {
		return err
	}
	return c.Set(key, data)
}

// Get returns a copy of the bytes stored under key, and whether key was
// present.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	if c.closed.Load() {
		return nil, false, ErrClosed
	}

	hash := hashKey(key)
	slot := c.slotFor(hash)

	v, ok := c.m.Get(key)
	if !ok {
		c.stats.record(EventMiss, key)
		return nil, false, nil
	}
	defer v.release(slot)

	v.touch()
	c.stats.record(EventHit, key)
	data, err := v.buf.Bytes()
	return data, true, err
}

// GetValue looks up key and gob-decodes it into out, which must be a
// pointer.
func (c *Cache) GetValue(key string, out interface{}) (bool, error) {
	data, ok, err := c.Get(key)
	if err != nil || !ok {
		return ok, err
	}
	return true, decodeValue(data, out)
}

// Exists reports whether key is present without copying its value out of
// native memory.
func (c *Cache) Exists(key string) bool {
	return c.m.Exists(key)
}

// Remove deletes key, reporting whether it was present.
func (c *Cache) Remove(key string) bool {
	hash := hashKey(key)
	removed := c.m.Remove(key, c.slotFor(hash))
	if removed {
		c.stats.record(EventRemove, key)
	}
	return removed
}

// Evict drops up to n least-recently-used entries from the segment keyHint
// hashes to, reporting how many were actually removed.
func (c *Cache) Evict(keyHint string, n int) int {
	evicted := c.m.EvictCandidates(keyHint, n, c.slotFor(hashKey(keyHint)))
	for _, v := range evicted {
		c.stats.record(EventEvict, v.key)
	}
	return len(evicted)
}

// Size returns an exact entry count, at the cost of retrying across
// segments and, in the worst case, locking all of them.
func (c *Cache) Size() int {
	return c.m.Size()
}

// ApproxSize returns a lock-free, possibly stale entry count.
func (c *Cache) ApproxSize() int {
	return c.m.QuickSize()
}

// Keys returns a snapshot of every key currently stored.
func (c *Cache) Keys() []string {
	return c.m.Keys()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.m.Clear(0)
}

// UsedMemory returns the total native memory currently allocated across
// every arena.
func (c *Cache) UsedMemory() int {
	return c.alloc.Used()
}

// Dump returns a diagnostic snapshot of every allocator arena.
func (c *Cache) Dump() []string {
	return c.alloc.Dump()
}

// Close marks the cache closed and drains the allocator's thread caches back
// to their arenas. Stored values and the chunks holding them are not freed;
// callers should Clear before Close if that matters.
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return c.alloc.Close()
}
