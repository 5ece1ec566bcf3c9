package dmcache

import "testing"

func newTestAllocator(t *testing.T) *Allocator {
	t.Helper()
	a, err := NewAllocator(AllocatorOptions{MaxMemory: 4 << 20, ArenaCount: 1, Slots: 1, PageSize: 4096, MaxOrder: 4})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestValueRetainRelease(t *testing.T) {
	a := newTestAllocator(t)
	buf, err := a.Allocate(0, 32)
	if err != nil {
		t.Fatal(err)
	}

	v := newValue("k", hashKey("k"), buf)

	if !v.retain() {
		t.Fatal("retain on a fresh value should succeed")
	}

	v.release(0) // drop the extra reference just retained
	v.release(0) // drop the creation reference; this frees the buffer

	if v.retain() {
		t.Fatal("retain after the last release should fail")
	}
}

func TestValueTouch(t *testing.T) {
	a := newTestAllocator(t)
	buf, err := a.Allocate(0, 8)
	if err != nil {
		t.Fatal(err)
	}

	v := newValue("k", hashKey("k"), buf)
	if v.hits.Load() != 0 {
		t.Fatal("fresh value should have zero hits")
	}
	v.touch()
	v.touch()
	if v.hits.Load() != 2 {
		t.Fatalf("hits = %d, want 2", v.hits.Load())
	}
}
