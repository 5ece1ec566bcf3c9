package dmcache

import "encoding/binary"

// bulkCopyThreshold is the size above which a single memory-to-memory copy is
// broken up into repeated smaller moves. Large single copies can stall signal
// delivery on some platforms; this is the same defensive chunking the teacher
// does for socket writes (forget's segment-sized reads/writes), applied here
// to raw memory moves instead.
const bulkCopyThreshold = 1 << 20

// memory owns a single (base, capacity) native region and provides raw
// byte-offset access to it. It never reallocates or moves: capacity is fixed
// at creation. Platform-specific constructors (raw_linux.go, raw_other.go)
// decide whether the backing bytes live in an mmap'd region or a pinned Go
// slice; everything above this file only sees the memory interface.
type memory interface {
	// capacity returns the total addressable length of the region.
	capacity() int

	// bytes exposes the backing storage for in-process, zero-copy access.
	// Callers must not retain slices derived from it past the region's
	// lifetime (release).
	bytes() []byte

	// release returns the region to the OS (or the Go heap, for the
	// fallback implementation). The region must not be used afterward.
	release()
}

// readByte/writeByte/readUint32/writeUint32/readUint64/writeUint64 give
// endian-aware integer access to a memory region without unsafe pointer
// casts. Nothing in the package calls them: the chunk's memoryMap and
// the subpage bitmaps live in ordinary Go slices. Native byte order is used
// throughout (matching how the pack's
// allocator code, and Java's sun.misc.Unsafe before it, accesses memory): the
// region is private to this process, so there's no wire-format reason to pick
// a fixed endianness.

func readByte(m memory, offset int) byte {
	return m.bytes()[offset]
}

func writeByte(m memory, offset int, v byte) {
	m.bytes()[offset] = v
}

func readUint32(m memory, offset int) uint32 {
	return binary.NativeEndian.Uint32(m.bytes()[offset : offset+4])
}

func writeUint32(m memory, offset int, v uint32) {
	binary.NativeEndian.PutUint32(m.bytes()[offset:offset+4], v)
}

func readUint64(m memory, offset int) uint64 {
	return binary.NativeEndian.Uint64(m.bytes()[offset : offset+8])
}

func writeUint64(m memory, offset int, v uint64) {
	binary.NativeEndian.PutUint64(m.bytes()[offset:offset+8], v)
}

// copyInto copies length bytes from m at srcOffset into dst at dstOffset,
// chunking the move when it exceeds bulkCopyThreshold.
func copyInto(m memory, srcOffset int, dst []byte, dstOffset, length int) int {
	src := m.bytes()[srcOffset:]
	return chunkedCopy(dst[dstOffset:], src, length)
}

// copyFrom copies length bytes from src into m at dstOffset, chunking the
// move when it exceeds bulkCopyThreshold.
func copyFrom(m memory, src []byte, srcOffset, dstOffset, length int) int {
	dst := m.bytes()[dstOffset:]
	return chunkedCopy(dst, src[srcOffset:], length)
}

func chunkedCopy(dst, src []byte, length int) int {
	if length > len(src) {
		length = len(src)
	}
	if length > len(dst) {
		length = len(dst)
	}

	copied := 0
	for copied < length {
		step := length - copied
		if step > bulkCopyThreshold {
			step = bulkCopyThreshold
		}

		n := copy(dst[copied:copied+step], src[copied:copied+step])
		copied += n
		if n < step {
			break
		}
	}

	return copied
}
