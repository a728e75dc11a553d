package tesscache

import (
	"github.com/achilleasa/accel/bvh"
	"github.com/achilleasa/accel/log"
	"github.com/achilleasa/accel/subdiv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Options configures a SharedCache.
type Options struct {
	// Number of shared slots. Patches whose keys map to the same slot
	// evict each other.
	Slots int

	// Number of entries in each worker's local cache.
	LocalSlots int

	// Optional registerer for the cache counters.
	Registerer prometheus.Registerer
}

// DefaultOptions returns options with one shared slot per patch.
func DefaultOptions(numPatches int) Options {
	return Options{
		Slots:      numPatches,
		LocalSlots: 8,
	}
}

// SharedCache is the process-wide tessellation cache. Each slot holds the
// subtree of at most one patch and is guarded by its own reader/writer lock.
type SharedCache struct {
	logger  log.Logger
	tess    Tessellator
	tags    []CacheTag
	opts    Options
	metrics *metrics
}

// NewSharedCache creates a cache that tessellates patches with tess.
func NewSharedCache(tess Tessellator, opts Options) (*SharedCache, error) {
	if tess == nil {
		return nil, errors.Wrap(ErrInvalidOptions, "no tessellator")
	}
	if opts.Slots < 1 {
		return nil, errors.Wrapf(ErrInvalidOptions, "slot count %d", opts.Slots)
	}
	if opts.LocalSlots < 1 {
		return nil, errors.Wrapf(ErrInvalidOptions, "local slot count %d", opts.LocalSlots)
	}

	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, errors.Wrap(err, "tesscache: registering metrics")
	}

	return &SharedCache{
		logger:  log.New("tess cache"),
		tess:    tess,
		tags:    make([]CacheTag, opts.Slots),
		opts:    opts,
		metrics: m,
	}, nil
}

// NewWorker allocates a lookup handle with its own local cache.
func (c *SharedCache) NewWorker() *Worker {
	return &Worker{
		cache: c,
		l1:    NewLocalCache(c.opts.LocalSlots),
	}
}

func (c *SharedCache) slot(k Key) *CacheTag {
	index := (uint64(k.GeomID)*0x9e3779b1 + uint64(k.PrimID)) % uint64(len(c.tags))
	return &c.tags[index]
}

// Lookup returns the subtree of a patch for the given commit, copied into
// the worker's local cache. The result stays valid until the worker's
// local cache evicts it.
func (c *SharedCache) Lookup(w *Worker, key Key, commit uint64) (Subtree, error) {
	if w.cache != c {
		return Subtree{}, ErrWorkerMismatch
	}
	w.Release()
	c.metrics.accesses.Inc()

	tag := key.tag()
	if st, ok := w.l1.lookup(tag, commit); ok {
		c.metrics.hits.WithLabelValues(levelL1).Inc()
		return st, nil
	}

	t := c.slot(key)
	t.mutex.RLock()
	if t.match(tag, commit) {
		c.metrics.hits.WithLabelValues(levelL2).Inc()
		st, err := c.storeLocal(w, t)
		t.mutex.RUnlock()
		return st, err
	}
	t.mutex.RUnlock()

	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.match(tag, commit) {
		c.metrics.hits.WithLabelValues(levelL2).Inc()
	} else if err := c.rebuild(w, t, key, commit); err != nil {
		return Subtree{}, err
	}
	return c.storeLocal(w, t)
}

// LookupShared returns the subtree of a patch directly from the shared
// slot. The slot stays read-locked until the worker's next lookup or an
// explicit call to Release.
func (c *SharedCache) LookupShared(w *Worker, key Key, commit uint64) (Subtree, error) {
	if w.cache != c {
		return Subtree{}, ErrWorkerMismatch
	}
	w.Release()
	c.metrics.accesses.Inc()

	tag := key.tag()
	t := c.slot(key)
	rebuilt := false
	for {
		t.mutex.RLock()
		if t.match(tag, commit) {
			if !rebuilt {
				c.metrics.hits.WithLabelValues(levelL2).Inc()
			}
			w.held = t
			return t.subtree(), nil
		}
		t.mutex.RUnlock()

		// Another writer may replace the slot between unlocking and
		// re-acquiring the read lock; the tag is checked again above.
		t.mutex.Lock()
		if !t.match(tag, commit) {
			if err := c.rebuild(w, t, key, commit); err != nil {
				t.mutex.Unlock()
				return Subtree{}, err
			}
			rebuilt = true
		}
		t.mutex.Unlock()
	}
}

func (c *SharedCache) storeLocal(w *Worker, t *CacheTag) (Subtree, error) {
	st, evicted, err := w.l1.store(t)
	if evicted {
		c.metrics.evictions.WithLabelValues(levelL1).Inc()
	}
	return st, err
}

// rebuild tessellates the patch into the slot. The caller must hold the
// write lock on t.
func (c *SharedCache) rebuild(w *Worker, t *CacheTag, key Key, commit uint64) error {
	c.metrics.misses.Inc()
	tag := key.tag()
	if t.valid && t.tag != tag {
		c.metrics.evictions.WithLabelValues(levelL2).Inc()
	}
	t.valid = false

	if err := c.tess.Tessellate(key, &w.grid); err != nil {
		return errors.Wrapf(err, "tesscache: tessellating patch %d of geometry %d", key.PrimID, key.GeomID)
	}

	need := subdiv.SubtreeBlocks(w.grid.URes, w.grid.VRes)
	if t.arena == nil || t.arena.Capacity() < need {
		t.arena = bvh.NewArena(need)
		t.arena.SetSegment(subtreeSegment)
	} else {
		t.arena.Reset()
	}

	root, bounds, err := subdiv.BuildSubtree(&w.grid, t.arena)
	if err != nil {
		return errors.Wrapf(err, "tesscache: building subtree for patch %d of geometry %d", key.PrimID, key.GeomID)
	}

	t.valid = true
	t.tag = tag
	t.version = commit
	t.root = root
	t.bounds = bounds
	c.logger.Debugf("tessellated patch %d of geometry %d (%dx%d grid, %d blocks)", key.PrimID, key.GeomID, w.grid.URes, w.grid.VRes, need)
	return nil
}
