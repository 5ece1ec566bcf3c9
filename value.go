package dmcache

import (
	"sync/atomic"
	"time"
)

// value is the refcounted entry a segment indexes (C7): a key, the off-heap
// buffer holding its payload, and enough bookkeeping for the LRU and for
// stats. One value is shared 1:1 with its allocator handle; releasing the
// last reference frees the handle.
type value struct {
	key  string
	hash uint64
	buf  *ByteBuf

	hits       atomic.Int64
	createTime time.Time

	refCount atomic.Int32

	prevLRU, nextLRU node // per-segment LRU linkage
	inLRU            bool // guarded by the owning segment's lruMu, not by refCount
}

func (v *value) prev() node     { return v.prevLRU }
func (v *value) next() node     { return v.nextLRU }
func (v *value) setPrev(p node) { v.prevLRU = p }
func (v *value) setNext(n node) { v.nextLRU = n }

func newValue(key string, hash uint64, buf *ByteBuf) *value {
	v := &value{key: key, hash: hash, buf: buf, createTime: now()}
	v.refCount.Store(1)
	return v
}

// retain increments the reference count and reports whether the value was
// still live when it did so. Callers must check the return value: a value
// already released by a concurrent remove must not be read from.
func (v *value) retain() bool {
	for {
		n := v.refCount.Load()
		if n <= 0 {
			return false
		}
		if v.refCount.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release decrements the reference count, freeing the backing buffer once
// it reaches zero. slot identifies the releasing caller for the
// allocator's thread-cache affinity (see Allocator.Free).
func (v *value) release(slot int) {
	if v.refCount.Add(-1) == 0 {
		v.buf.Free(slot)
	}
}

func (v *value) touch() {
	v.hits.Add(1)
}

// now is a seam so value creation timestamps can be stamped deterministically
// in tests; production callers always use the wall clock.
var now = time.Now
