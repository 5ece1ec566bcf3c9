package dmcache

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// retriesBeforeLock is how many unlocked attempts Size makes to observe a
// stable snapshot across every segment before it falls back to locking all
// of them, the same trade-off java.util.concurrent.ConcurrentHashMap.size()
// makes.
const retriesBeforeLock = 2

// concurrentMap is the segmented, striped hash map (C9): a fixed number of
// independently-locked segments, each with its own bucket table and LRU.
// Every stored value holds exactly one reference on the map's behalf;
// Get hands the caller a second, temporary reference that must be released
// once they're done reading the buffer.
type concurrentMap struct {
	segments     []*segment
	segmentShift uint
	segmentMask  uint64
}

// newConcurrentMap builds concurrency segments (rounded up to a power of
// two, capped at 65536) in parallel via errgroup, mirroring the fan-out
// pattern the teacher's retained pack uses for per-bucket setup.
func newConcurrentMap(ctx context.Context, concurrency int, loadFactor float64, maxEntriesPerSegment int) (*concurrentMap, error) {
	count, shift := segmentsFor(concurrency)

	m := &concurrentMap{
		segments:     make([]*segment, count),
		segmentShift: shift,
		segmentMask:  uint64(count - 1),
	}

	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			m.segments[i] = newSegment(loadFactor, maxEntriesPerSegment)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return m, nil
}

// segmentFor picks the segment for hash the same way
// java.util.concurrent.ConcurrentHashMap does: shift the spread hash down to
// the segment-index bits, then mask to the segment count. hash is a full
// 64-bit value, so the shift alone (sized for a 32-bit hash) is not enough —
// without the mask it walks off the end of m.segments for almost any hash.
func (m *concurrentMap) segmentFor(hash uint64) *segment {
	idx := (hash >> m.segmentShift) & m.segmentMask
	return m.segments[idx]
}

// Get looks up key, retaining an extra reference on the returned value on
// behalf of the caller. The caller must call release(slot) exactly once
// when done, whether or not it ever reads the buffer.
func (m *concurrentMap) Get(key string) (*value, bool) {
	hash := hashKey(key)
	v, ok := m.segmentFor(hash).get(hash, key)
	if !ok {
		return nil, false
	}
	if !v.retain() {
		// Lost a race with a concurrent remove/replace between the lookup
		// and the retain; treat it as a miss rather than handing back a
		// value that's about to be freed.
		return nil, false
	}
	return v, true
}

// Put installs val under key. If a previous value existed, the map's own
// reference to it is released (freeing its buffer once every reader has
// also released its reference).
func (m *concurrentMap) Put(key string, val *value, slot int) {
	hash := hashKey(key)
	old, _ := m.segmentFor(hash).put(hash, key, val)
	if old != nil {
		old.release(slot)
	}
}

// Remove deletes key, releasing the map's reference to its value. Reports
// whether key was present.
func (m *concurrentMap) Remove(key string, slot int) bool {
	hash := hashKey(key)
	v, ok := m.segmentFor(hash).remove(hash, key)
	if ok {
		v.release(slot)
	}
	return ok
}

// Exists reports whether key is present without retaining a reference or
// promoting it in the LRU beyond what the underlying get already does
// (SPEC_FULL.md supplement #4).
func (m *concurrentMap) Exists(key string) bool {
	hash := hashKey(key)
	_, ok := m.segmentFor(hash).get(hash, key)
	return ok
}

// QuickSize sums every segment's counter with no locking at all: an
// approximation that can be off by however many puts/removes race with the
// read, but never blocks (spec.md §4.9).
func (m *concurrentMap) QuickSize() int {
	total := 0
	for _, s := range m.segments {
		total += int(s.count.Load())
	}
	return total
}

// Size returns an exact count, retrying unlocked up to retriesBeforeLock
// times while every segment's modCount stays stable across two consecutive
// passes, then falling back to locking every segment as a last resort.
func (m *concurrentMap) Size() int {
	segs := m.segments
	lastModCount := make([]int32, len(segs))
	var sum int64
	locked := false

	for retry := 0; ; retry++ {
		if retry > retriesBeforeLock && !locked {
			for _, s := range segs {
				s.mu.Lock()
			}
			locked = true
		}

		sum = 0
		stable := retry > 0
		for i, s := range segs {
			mc := s.modCount.Load()
			sum += int64(s.count.Load())
			if retry == 0 || mc != lastModCount[i] {
				stable = false
			}
			lastModCount[i] = mc
		}

		if (stable && retry > 0) || locked {
			break
		}
	}

	if locked {
		for _, s := range segs {
			s.mu.Unlock()
		}
	}

	return int(sum)
}

// EvictCandidates returns up to n of the least-recently-used values from
// the segment that key hashes to (spec.md §9's third Open Question: a
// single segment's tails, not a global LRU scan), releasing the map's
// reference to each as they're evicted. keyHint only selects which segment
// to scan; it need not itself be evicted.
func (m *concurrentMap) EvictCandidates(keyHint string, n int, slot int) []*value {
	hash := hashKey(keyHint)
	evicted := m.segmentFor(hash).evictTails(n)
	for _, v := range evicted {
		v.release(slot)
	}
	return evicted
}

// Clear empties every segment, releasing the map's reference to every value
// it held.
func (m *concurrentMap) Clear(slot int) {
	for _, s := range m.segments {
		for _, v := range s.clear() {
			v.release(slot)
		}
	}
}

// Keys returns a snapshot of every key currently stored (SPEC_FULL.md
// supplement #5). It reflects no particular instant: segments are walked
// one at a time, each under its own lock.
func (m *concurrentMap) Keys() []string {
	var out []string
	for _, s := range m.segments {
		s.mu.Lock()
		t := s.tbl.Load()
		for i := range t.buckets {
			for e := t.buckets[i].Load(); e != nil; e = e.next {
				out = append(out, e.key)
			}
		}
		s.mu.Unlock()
	}
	return out
}
