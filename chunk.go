package dmcache

import "math/bits"

// unusable marks a memoryMap leaf or internal node as fully allocated: one
// past the deepest depth the tree can represent (maxOrder + 1), so it never
// satisfies any allocation request (spec.md §3: "memoryMap[1] >= 1 always").
func (c *chunk) unusable() byte { return byte(c.maxOrder + 1) }

// chunk is one contiguous native region managed as a complete binary tree
// over 2^maxOrder pages (spec.md §4.2). Each node's memoryMap entry holds the
// minimum depth reachable in its subtree; a leaf is free iff its entry equals
// maxOrder. An unpooled chunk bypasses the tree entirely: it is sized to
// exactly one allocation and is always destroyed on free.
type chunk struct {
	owner *arena
	mem   memory

	pageSize  int
	maxOrder  int
	chunkSize int
	leafBase  int // 1 << maxOrder: memoryMap index of the first leaf

	memoryMap []byte
	subpages  []*subpage // one slot per leaf, nil unless that leaf hosts a subpage

	freeBytesVal int
	unpooled     bool

	band int // index into arena.bands of the list this chunk currently lives on

	prevChunk, nextChunk node // band-list linkage (the list a chunk lives in is owned by the arena)
}

func (c *chunk) prev() node     { return c.prevChunk }
func (c *chunk) next() node     { return c.nextChunk }
func (c *chunk) setPrev(p node) { c.prevChunk = p }
func (c *chunk) setNext(n node) { c.nextChunk = n }

// depth returns the natural tree depth of a memoryMap index: the position of
// its highest set bit. depth(1) == 0 (the root).
func depth(id int) int {
	return bits.Len(uint(id)) - 1
}

func newChunk(a *arena, mem memory, pageSize, maxOrder int) *chunk {
	leafCount := 1 << maxOrder
	c := &chunk{
		owner:     a,
		mem:       mem,
		pageSize:  pageSize,
		maxOrder:  maxOrder,
		chunkSize: pageSize << maxOrder,
		leafBase:  leafCount,
		memoryMap: make([]byte, 2*leafCount),
		subpages:  make([]*subpage, leafCount),
	}

	for id := 1; id < 2*leafCount; id++ {
		c.memoryMap[id] = byte(depth(id))
	}

	c.freeBytesVal = c.chunkSize
	return c
}

func newUnpooledChunk(a *arena, mem memory) *chunk {
	return &chunk{
		owner:        a,
		mem:          mem,
		chunkSize:    mem.capacity(),
		freeBytesVal: 0,
		unpooled:     true,
	}
}

func (c *chunk) value(id int) byte     { return c.memoryMap[id] }
func (c *chunk) setValue(id int, v byte) { c.memoryMap[id] = v }

func (c *chunk) runLength(id int) int {
	return c.chunkSize >> depth(id)
}

// updateParentsAlloc propagates the unusable marker up from a freshly
// allocated leaf, maintaining memoryMap[i] = min(memoryMap[2i], memoryMap[2i+1]).
func (c *chunk) updateParentsAlloc(id int) {
	for id > 1 {
		parent := id >> 1
		v1, v2 := c.value(id), c.value(id^1)
		min := v1
		if v2 < min {
			min = v2
		}
		c.setValue(parent, min)
		id = parent
	}
}

// updateParentsFree propagates a freed leaf's depth upward, collapsing two
// fully-natural siblings back to their parent's natural depth, otherwise
// keeping the min of both children (spec.md §4.2 free algorithm).
func (c *chunk) updateParentsFree(id int) {
	logChild := depth(id) + 1
	for id > 1 {
		parent := id >> 1
		v1, v2 := c.value(id), c.value(id^1)
		logChild--

		if v1 == byte(logChild) && v2 == byte(logChild) {
			c.setValue(parent, byte(logChild-1))
		} else {
			min := v1
			if v2 < min {
				min = v2
			}
			c.setValue(parent, min)
		}

		id = parent
	}
}

// allocateNode descends the tree choosing the left child whenever its depth
// is <= d, the right child otherwise, per spec.md §4.2. Returns -1 when no
// leaf at depth d is free.
func (c *chunk) allocateNode(d int) int {
	id := 1
	initial := -(1 << uint(d))
	val := c.value(id)
	if val > byte(d) {
		return -1
	}

	for val < byte(d) || id&initial == 0 {
		id <<= 1
		val = c.value(id)
		if val > byte(d) {
			id ^= 1
			val = c.value(id)
		}
	}

	c.setValue(id, c.unusable())
	c.updateParentsAlloc(id)
	return id
}

func (c *chunk) depthForNormalCapacity(normCapacity int) int {
	pages := normCapacity / c.pageSize
	return c.maxOrder - bits.TrailingZeros(uint(pages))
}

// allocate serves a normal (page-multiple, >= pageSize) request by walking
// the tree. Callers needing a sub-page slot use allocateSubpage instead.
func (c *chunk) allocate(normCapacity int) (handle, error) {
	d := c.depthForNormalCapacity(normCapacity)
	id := c.allocateNode(d)
	if id < 0 {
		return 0, ErrAllocationFailure
	}

	c.freeBytesVal -= c.runLength(id)
	return makeHandle(id, -1), nil
}

// allocateSubpage claims one free page and installs a fresh subpage over it,
// sized for elemSize. The caller (the arena) is responsible for linking the
// returned subpage into its size-class free list.
func (c *chunk) allocateSubpage(elemSize int) (*subpage, handle, error) {
	id := c.allocateNode(c.maxOrder)
	if id < 0 {
		return nil, 0, ErrAllocationFailure
	}

	c.freeBytesVal -= c.runLength(id)

	pageIdx := id - c.leafBase
	offset := pageIdx * c.pageSize
	sp := newSubpage(c, pageIdx, offset, elemSize, c.pageSize)
	c.subpages[pageIdx] = sp

	bitIdx, _ := sp.allocate()
	return sp, makeHandle(id, bitIdx), nil
}

// subpageAt returns the subpage installed over the leaf a handle refers to,
// or nil if that leaf was freed (programmer error to call after free).
func (c *chunk) subpageAt(h handle) *subpage {
	id := h.memoryMapIdx()
	return c.subpages[id-c.leafBase]
}

// free restores a normal (non-subpage) allocation to the tree.
func (c *chunk) free(h handle) {
	id := h.memoryMapIdx()
	c.freeBytesVal += c.runLength(id)
	c.setValue(id, byte(depth(id)))
	c.updateParentsFree(id)
}

// freeSubpagePage releases the page backing an emptied subpage back to the
// tree. Called once a subpage's last slot has been freed.
func (c *chunk) freeSubpagePage(pageIdx int) {
	id := pageIdx + c.leafBase
	c.subpages[pageIdx] = nil
	c.freeBytesVal += c.runLength(id)
	c.setValue(id, byte(depth(id)))
	c.updateParentsFree(id)
}

// usage returns the percentage of the chunk currently allocated, computed in
// O(1) from the freeBytes counter maintained alongside the tree.
func (c *chunk) usage() int {
	if c.unpooled {
		return 100
	}

	return 100 * (c.chunkSize - c.freeBytesVal) / c.chunkSize
}

func (c *chunk) destroy() {
	c.mem.release()
}

// offsetOf returns the byte offset into the chunk's memory region addressed
// by a non-subpage handle.
func (c *chunk) offsetOf(h handle) int {
	id := h.memoryMapIdx()
	return (id - (1 << depth(id))) * c.runLength(id)
}
