package dmcache

// hashEntry is one immutable link in a segment's hash chain: once built, its
// key/hash/value never change. A remove or a rehash never mutates an
// existing chain in place: a remove clones the prefix up to the removed node
// and splices the remainder on, and a rehash copies every entry into a new
// table, so a concurrent
// lock-free reader walking the old chain head never sees a half-updated
// entry (spec.md §5's read-without-locking guarantee).
type hashEntry struct {
	key   string
	hash  uint64
	val   *value
	next  *hashEntry
}

func newHashEntry(key string, hash uint64, val *value, next *hashEntry) *hashEntry {
	return &hashEntry{key: key, hash: hash, val: val, next: next}
}
