package dmcache

import "sync/atomic"

// ring is a bounded MPMC lock-free queue using sequence numbers, adapted
// from momentics-hioload-ws/internal/concurrency/lock_free_queue.go (itself
// the Dmitry Vyukov MPMC ring pattern). It backs the per-slot thread cache
// (C5): enqueue on free, dequeue on allocate, no mutex on either path.
type ring struct {
	head uint64
	_    [56]byte // pad to a separate cache line from tail
	tail uint64
	_    [56]byte
	mask uint64
	cells []ringCell
}

type ringCell struct {
	sequence atomic.Uint64
	value    cachedHandle
}

// cachedHandle is what the thread cache stores per free: enough to redeem
// the allocation on a later allocate without touching the arena.
type cachedHandle struct {
	c *chunk
	h handle
}

func newRing(capacity int) *ring {
	size := 1
	for size < capacity {
		size <<= 1
	}

	r := &ring{
		mask:  uint64(size - 1),
		cells: make([]ringCell, size),
	}
	for i := range r.cells {
		r.cells[i].sequence.Store(uint64(i))
	}

	return r
}

func (r *ring) push(v cachedHandle) bool {
	for {
		tail := atomic.LoadUint64(&r.tail)
		cell := &r.cells[tail&r.mask]
		seq := cell.sequence.Load()

		switch diff := int64(seq) - int64(tail); {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&r.tail, tail, tail+1) {
				cell.value = v
				cell.sequence.Store(tail + 1)
				return true
			}
		case diff < 0:
			return false // full
		}
	}
}

func (r *ring) pop() (cachedHandle, bool) {
	for {
		head := atomic.LoadUint64(&r.head)
		cell := &r.cells[head&r.mask]
		seq := cell.sequence.Load()

		switch diff := int64(seq) - int64(head+1); {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&r.head, head, head+1) {
				v := cell.value
				cell.sequence.Store(head + r.mask + 1)
				return v, true
			}
		case diff < 0:
			var zero cachedHandle
			return zero, false // empty
		}
	}
}

// drain empties the ring, invoking fn for every cached handle. Used by trim
// and by Allocator.Close to return every outstanding cached handle to its
// arena.
func (r *ring) drain(fn func(cachedHandle)) {
	for {
		v, ok := r.pop()
		if !ok {
			return
		}
		fn(v)
	}
}
