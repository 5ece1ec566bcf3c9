package dmcache

import (
	"runtime"
	"testing"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{MaxMemorySize: 1 << 20}.withDefaults()

	if o.Concurrency != 16 {
		t.Errorf("default Concurrency = %d, want 16", o.Concurrency)
	}
	if o.LoadFactor != 0.75 {
		t.Errorf("default LoadFactor = %v, want 0.75", o.LoadFactor)
	}
	if o.ArenaCount != 2*runtime.GOMAXPROCS(0) {
		t.Errorf("default ArenaCount = %d, want %d", o.ArenaCount, 2*runtime.GOMAXPROCS(0))
	}
}

func TestOptionsExplicitValuesSurviveDefaulting(t *testing.T) {
	o := Options{MaxMemorySize: 1 << 20, Concurrency: 32, LoadFactor: 0.5}.withDefaults()
	if o.Concurrency != 32 {
		t.Errorf("Concurrency = %d, want 32", o.Concurrency)
	}
	if o.LoadFactor != 0.5 {
		t.Errorf("LoadFactor = %v, want 0.5", o.LoadFactor)
	}
}
