package tesscache

import (
	"github.com/achilleasa/accel/bvh"
	"github.com/achilleasa/accel/subdiv"
)

type localEntry struct {
	valid   bool
	tag     uint64
	version uint64
	lastUse uint64
	subtree Subtree
}

// LocalCache is a small per-worker cache of subtree copies with
// least-recently-used replacement. It is not safe for concurrent use.
type LocalCache struct {
	entries []localEntry
	clock   uint64
}

// NewLocalCache creates a cache with the given number of entries.
func NewLocalCache(size int) *LocalCache {
	return &LocalCache{entries: make([]localEntry, size)}
}

func (c *LocalCache) lookup(tag, version uint64) (Subtree, bool) {
	for i := range c.entries {
		e := &c.entries[i]
		if e.valid && e.tag == tag && e.version == version {
			c.clock++
			e.lastUse = c.clock
			return e.subtree, true
		}
	}
	return Subtree{}, false
}

// victim returns the entry to overwrite and whether a valid entry is being
// replaced.
func (c *LocalCache) victim() (*localEntry, bool) {
	victim := &c.entries[0]
	for i := range c.entries {
		e := &c.entries[i]
		if !e.valid {
			return e, false
		}
		if e.lastUse < victim.lastUse {
			victim = e
		}
	}
	return victim, true
}

// store copies the shared subtree held by t into the least recently used
// entry. The caller must hold a lock on t.
func (c *LocalCache) store(t *CacheTag) (Subtree, bool, error) {
	e, evicted := c.victim()
	e.valid = false

	arena := e.subtree.Arena
	if arena == nil || arena.Capacity() < t.arena.Used() {
		arena = bvh.NewArena(t.arena.Used())
		arena.SetSegment(subtreeSegment)
	}
	if err := arena.CopyFrom(t.arena); err != nil {
		return Subtree{}, evicted, err
	}

	c.clock++
	*e = localEntry{
		valid:   true,
		tag:     t.tag,
		version: t.version,
		lastUse: c.clock,
		subtree: Subtree{
			Root:   t.root.Relative().InSegment(arena.Segment()),
			Bounds: t.bounds,
			Arena:  arena,
		},
	}
	return e.subtree, evicted, nil
}

// Worker carries the per-goroutine state used for cache lookups: the L1
// cache, a scratch grid for tessellation and the shared slot whose read
// lock is currently held. A Worker must not be shared between goroutines.
type Worker struct {
	cache *SharedCache
	l1    *LocalCache
	grid  subdiv.Grid
	held  *CacheTag
}

// Release drops the read lock retained by the last LookupShared call.
func (w *Worker) Release() {
	if w.held != nil {
		w.held.mutex.RUnlock()
		w.held = nil
	}
}
