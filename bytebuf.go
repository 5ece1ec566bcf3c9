package dmcache

// ByteBuf is a transient handle onto one allocation: the chunk and handle
// that own the memory, plus the window within it this buffer is allowed to
// touch. It carries no data of its own (spec.md §4.6): every read or write
// goes straight through to the owning chunk's backing memory.
type ByteBuf struct {
	allocator *Allocator
	arena     *arena

	allocSlot int
	chunk     *chunk
	h         handle

	normCapacity int // the rounded-up size the allocator actually reserved
	length       int // the caller-visible size; <= normCapacity

	released bool
}

// Len returns the number of bytes the caller asked for, not the
// (possibly larger) rounded allocation backing it.
func (b *ByteBuf) Len() int { return b.length }

// Cap returns the full backing allocation size.
func (b *ByteBuf) Cap() int { return b.normCapacity }

func (b *ByteBuf) baseOffset() int {
	if b.chunk.unpooled {
		return 0
	}
	if b.h.isSubpage() {
		return b.chunk.subpageAt(b.h).offsetOf(b.h.subpageBitIdx())
	}
	return b.chunk.offsetOf(b.h)
}

// ReadAt copies up to len(dst) bytes starting at offset within the buffer's
// logical length into dst, returning the number of bytes copied.
func (b *ByteBuf) ReadAt(dst []byte, offset int) (int, error) {
	if b.released {
		return 0, ErrBufferDisposed
	}
	if offset < 0 || offset > b.length {
		return 0, ErrInvalidHandle
	}

	avail := b.length - offset
	n := len(dst)
	if n > avail {
		n = avail
	}

	return copyInto(b.chunk.mem, b.baseOffset()+offset, dst, 0, n), nil
}

// WriteAt copies src into the buffer starting at offset, failing if it
// would run past the buffer's backing capacity.
func (b *ByteBuf) WriteAt(src []byte, offset int) (int, error) {
	if b.released {
		return 0, ErrBufferDisposed
	}
	if offset < 0 {
		return 0, ErrInvalidHandle
	}
	if offset+len(src) > b.normCapacity {
		return 0, &CapacityError{Requested: offset + len(src), Available: b.normCapacity}
	}

	n := copyFrom(b.chunk.mem, src, 0, b.baseOffset()+offset, len(src))
	if end := offset + n; end > b.length {
		b.length = end
	}
	return n, nil
}

// Bytes copies the buffer's full logical contents into a freshly allocated
// slice. It never aliases the underlying native memory: callers must not
// retain the result past a Free and then expect it to track later writes.
func (b *ByteBuf) Bytes() ([]byte, error) {
	out := make([]byte, b.length)
	_, err := b.ReadAt(out, 0)
	return out, err
}

// Free releases the buffer's backing allocation. slot should be the same
// slot the caller used to allocate it whenever that's known, so the
// allocation can be offered to that slot's thread cache instead of the
// arena lock.
func (b *ByteBuf) Free(slot int) {
	b.allocator.Free(slot, b)
}
