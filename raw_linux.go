//go:build linux

package dmcache

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mmapMemory backs a chunk or an unpooled "huge" allocation with an
// anonymous mmap region, so its bytes never live on the Go heap and the
// garbage collector never scans or moves them. This is the same mechanism
// torrejonv-teranode's txmetacache bucket allocator uses
// (unix.Mmap(-1, 0, size, PROT_READ|PROT_WRITE, MAP_ANON|MAP_PRIVATE)).
type mmapMemory struct {
	data []byte
}

func newMemory(size int) (memory, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrConfig, size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %d bytes: %v", ErrAllocationFailure, size, err)
	}

	return &mmapMemory{data: data}, nil
}

func (m *mmapMemory) capacity() int { return len(m.data) }
func (m *mmapMemory) bytes() []byte { return m.data }

func (m *mmapMemory) release() {
	if m.data == nil {
		return
	}

	_ = unix.Munmap(m.data)
	m.data = nil
}
