/*
Package dmcache provides a key-value cache backed by native (off-heap)
memory rather than ordinary Go-heap allocations.

Caching

Items are identified by a string key. Storing an item with the same key
overwrites the previous one. A cached item can be retrieved, checked for
existence without copying its value out, or deleted with its key. If a new
item doesn't fit within the configured memory budget, Set returns the
allocation error; nothing is evicted automatically. Cache.Evict drops
entries on a least-recently-used basis on request, scoped to the segment a
hint key hashes into rather than across the whole cache.

Memory

Values are stored in fixed-size native memory regions ("chunks") managed by
a buddy-tree pool allocator, the same design Netty's PooledByteBufAllocator
uses: each chunk is split by repeated halving into tiny, small, and
page-sized allocations, and chunks are tracked on one of six utilization
bands so mostly-empty chunks can be found and destroyed without scanning
every chunk the cache owns. The allocator is split into several arenas to
spread concurrent allocate/free traffic, plus a bounded per-caller cache of
recently freed handles that avoids the arena lock entirely on a hit.

Concurrency

The key space is split into segments, each with its own lock, its own hash
table, and its own LRU list, the same striping java.util.concurrent's
ConcurrentHashMap used before it switched to per-bucket synchronization.
Lookups take no segment lock: removes rebuild the affected hash chain's
prefix and rehashes build a new table rather than mutating chains in place,
so a concurrent reader that already started walking the old chain sees a
consistent, if possibly stale, view. Only a lookup's LRU promotion takes a
small per-segment LRU lock, which writers also hold briefly. Every stored value is reference-counted; a lookup retains an
extra reference for its caller and the backing memory is only returned to
the allocator once the last reference is released.

Monitoring

The cache maintains running hit/miss/put/remove/eviction counters and can
fan out the same events to a subscriber channel for external monitoring.
*/
package dmcache
