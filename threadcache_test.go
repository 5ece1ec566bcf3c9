package dmcache

import "testing"

func TestThreadCacheOfferAndTake(t *testing.T) {
	a := newArena(4096, 4, 4)
	tc := newThreadCache(a)

	c, h, norm, err := a.allocate(tc, 64)
	if err != nil {
		t.Fatal(err)
	}

	if !tc.offer(c, h, norm) {
		t.Fatal("offer into a fresh ring should succeed")
	}

	got, ok := tc.take(norm, true)
	if !ok || got.c != c || got.h != h {
		t.Fatal("take should redeem the handle just offered")
	}

	if _, ok := tc.take(norm, true); ok {
		t.Fatal("take on an empty ring should fail")
	}
}

func TestThreadCacheTrimReturnsToArena(t *testing.T) {
	a := newArena(4096, 4, 4)
	tc := newThreadCache(a)

	c, h, norm, err := a.allocate(tc, 4096)
	if err != nil {
		t.Fatal(err)
	}
	if !tc.offer(c, h, norm) {
		t.Fatal("offer should succeed")
	}

	before := c.freeBytesVal
	tc.trim()
	if c.freeBytesVal <= before {
		t.Fatal("trim should return the cached allocation to the arena, growing freeBytesVal")
	}
}
