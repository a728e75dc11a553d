package tesscache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/achilleasa/accel/bvh"
	"github.com/achilleasa/accel/subdiv"
	"github.com/achilleasa/accel/types"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// A flat square per patch, offset along x and z by the patch id.
type flatPatch struct {
	res    int
	offset float32
}

func (p flatPatch) Resolution() (int, int) { return p.res, p.res }

func (p flatPatch) Eval(u, v float32) types.Vec3 {
	return types.XYZ(u*2+p.offset*10, v*2, p.offset)
}

func patchFor(key Key, lift float32) flatPatch {
	return flatPatch{
		res:    []int{5, 9, 17}[key.PrimID%3],
		offset: float32(key.PrimID) + lift,
	}
}

func expBounds(key Key, lift float32) types.BBox {
	o := float32(key.PrimID) + lift
	return types.BBox{
		Min: types.XYZ(o*10, 0, o),
		Max: types.XYZ(o*10+2, 2, o),
	}
}

// countingTessellator counts evaluations and can lift all patches to
// simulate an edit.
type countingTessellator struct {
	calls atomic.Int64
	lift  atomic.Int64
	fail  atomic.Bool
}

func (ct *countingTessellator) Tessellate(key Key, g *subdiv.Grid) error {
	ct.calls.Add(1)
	if ct.fail.Load() {
		return errors.New("evaluation failed")
	}
	return subdiv.Evaluate(patchFor(key, float32(ct.lift.Load())), g)
}

func newTestCache(t *testing.T, slots, localSlots int) (*SharedCache, *countingTessellator) {
	ct := &countingTessellator{}
	c, err := NewSharedCache(ct, Options{Slots: slots, LocalSlots: localSlots, Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatal(err)
	}
	return c, ct
}

func checkSubtree(t *testing.T, st Subtree, key Key, lift float32) {
	t.Helper()
	if exp := expBounds(key, lift); st.Bounds != exp {
		t.Fatalf("expected subtree bounds for patch %d to be %v; got %v", key.PrimID, exp, st.Bounds)
	}
	res := patchFor(key, lift).res
	quads, err := st.Quads()
	if err != nil {
		t.Fatal(err)
	}
	// Each axis of the grid is covered by (res-1)/2 quad leaves.
	perAxis := (res - 1) / 2
	if len(quads) != perAxis*perAxis {
		t.Fatalf("expected %d quads for patch %d; got %d", perAxis*perAxis, key.PrimID, len(quads))
	}
	for i, q := range quads {
		if !st.Bounds.Contains(q.Bounds()) {
			t.Fatalf("quad %d of patch %d escapes the subtree bounds", i, key.PrimID)
		}
	}
}

func TestNewSharedCacheValidation(t *testing.T) {
	type spec struct {
		tess Tessellator
		opts Options
	}
	ct := &countingTessellator{}
	specs := []spec{
		{nil, Options{Slots: 1, LocalSlots: 1}},
		{ct, Options{Slots: 0, LocalSlots: 1}},
		{ct, Options{Slots: 1, LocalSlots: 0}},
	}
	for specIndex, s := range specs {
		_, err := NewSharedCache(s.tess, s.opts)
		if errors.Cause(err) != ErrInvalidOptions {
			t.Fatalf("[spec %d] expected ErrInvalidOptions; got %v", specIndex, err)
		}
	}

	// Registering twice on the same registry fails.
	reg := prometheus.NewRegistry()
	if _, err := NewSharedCache(ct, Options{Slots: 1, LocalSlots: 1, Registerer: reg}); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSharedCache(ct, Options{Slots: 1, LocalSlots: 1, Registerer: reg}); err == nil {
		t.Fatal("expected duplicate metric registration to fail")
	}
}

func TestRacingWorkersTessellateOnce(t *testing.T) {
	c, ct := newTestCache(t, 4, 4)
	key := Key{PrimID: 2}

	const numWorkers = 8
	var (
		start sync.WaitGroup
		done  sync.WaitGroup
		errs  = make([]error, numWorkers)
		trees = make([]Subtree, numWorkers)
	)
	start.Add(1)
	for i := 0; i < numWorkers; i++ {
		done.Add(1)
		go func(i int) {
			defer done.Done()
			w := c.NewWorker()
			start.Wait()
			trees[i], errs[i] = c.Lookup(w, key, 1)
		}(i)
	}
	start.Done()
	done.Wait()

	for i := 0; i < numWorkers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		checkSubtree(t, trees[i], key, 0)
	}
	if got := ct.calls.Load(); got != 1 {
		t.Fatalf("expected the patch to be tessellated once; got %d", got)
	}
	if got := testutil.ToFloat64(c.metrics.misses); got != 1 {
		t.Fatalf("expected 1 miss; got %v", got)
	}
	if got := testutil.ToFloat64(c.metrics.hits.WithLabelValues(levelL2)); got != numWorkers-1 {
		t.Fatalf("expected %d shared hits; got %v", numWorkers-1, got)
	}
}

func TestLocalHitsAvoidSharedCache(t *testing.T) {
	c, ct := newTestCache(t, 4, 4)
	w := c.NewWorker()
	key := Key{PrimID: 1}

	for i := 0; i < 3; i++ {
		st, err := c.Lookup(w, key, 7)
		if err != nil {
			t.Fatal(err)
		}
		checkSubtree(t, st, key, 0)
	}

	if got := ct.calls.Load(); got != 1 {
		t.Fatalf("expected 1 tessellation; got %d", got)
	}
	if got := testutil.ToFloat64(c.metrics.accesses); got != 3 {
		t.Fatalf("expected 3 accesses; got %v", got)
	}
	if got := testutil.ToFloat64(c.metrics.hits.WithLabelValues(levelL1)); got != 2 {
		t.Fatalf("expected 2 local hits; got %v", got)
	}
}

func TestCommitChangeInvalidatesEntries(t *testing.T) {
	c, ct := newTestCache(t, 4, 4)
	w := c.NewWorker()
	key := Key{PrimID: 3}

	st, err := c.Lookup(w, key, 1)
	if err != nil {
		t.Fatal(err)
	}
	checkSubtree(t, st, key, 0)

	// Edit the geometry and bump the commit.
	ct.lift.Store(5)
	st, err = c.Lookup(w, key, 2)
	if err != nil {
		t.Fatal(err)
	}
	checkSubtree(t, st, key, 5)
	if got := ct.calls.Load(); got != 2 {
		t.Fatalf("expected a stale entry to be rebuilt; got %d tessellations", got)
	}

	shared, err := c.LookupShared(w, key, 2)
	if err != nil {
		t.Fatal(err)
	}
	w.Release()
	checkSubtree(t, shared, key, 5)
	if got := ct.calls.Load(); got != 2 {
		t.Fatalf("expected the shared slot to be current; got %d tessellations", got)
	}
}

func TestLocalCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, ct := newTestCache(t, 16, 2)
	w := c.NewWorker()
	a, b, d := Key{PrimID: 0}, Key{PrimID: 1}, Key{PrimID: 2}

	for _, key := range []Key{a, b, a, d} {
		if _, err := c.Lookup(w, key, 1); err != nil {
			t.Fatal(err)
		}
	}
	// b was least recently used when d arrived.
	if got := testutil.ToFloat64(c.metrics.evictions.WithLabelValues(levelL1)); got != 1 {
		t.Fatalf("expected 1 local eviction; got %v", got)
	}
	if _, ok := w.l1.lookup(b.tag(), 1); ok {
		t.Fatal("expected b to be evicted from the local cache")
	}
	if _, ok := w.l1.lookup(a.tag(), 1); !ok {
		t.Fatal("expected a to remain in the local cache")
	}

	// b is still in the shared cache.
	st, err := c.Lookup(w, b, 1)
	if err != nil {
		t.Fatal(err)
	}
	checkSubtree(t, st, b, 0)
	if got := ct.calls.Load(); got != 3 {
		t.Fatalf("expected 3 tessellations; got %d", got)
	}
	if got := testutil.ToFloat64(c.metrics.hits.WithLabelValues(levelL2)); got != 1 {
		t.Fatalf("expected 1 shared hit; got %v", got)
	}
}

func TestSharedSlotCollisionEvicts(t *testing.T) {
	c, ct := newTestCache(t, 1, 1)
	w := c.NewWorker()
	a, b := Key{PrimID: 0}, Key{PrimID: 2}

	for _, key := range []Key{a, b, a} {
		st, err := c.LookupShared(w, key, 1)
		if err != nil {
			t.Fatal(err)
		}
		checkSubtree(t, st, key, 0)
	}
	w.Release()

	if got := ct.calls.Load(); got != 3 {
		t.Fatalf("expected 3 tessellations; got %d", got)
	}
	if got := testutil.ToFloat64(c.metrics.evictions.WithLabelValues(levelL2)); got != 2 {
		t.Fatalf("expected 2 shared evictions; got %v", got)
	}
}

func TestLookupSharedHoldsReadLock(t *testing.T) {
	c, _ := newTestCache(t, 2, 2)
	w := c.NewWorker()
	key := Key{PrimID: 1}

	if _, err := c.LookupShared(w, key, 1); err != nil {
		t.Fatal(err)
	}
	slot := c.slot(key)
	if slot.mutex.TryLock() {
		t.Fatal("expected the slot to stay read-locked")
	}

	// A local lookup releases the shared lock first.
	if _, err := c.Lookup(w, key, 1); err != nil {
		t.Fatal(err)
	}
	if !slot.mutex.TryLock() {
		t.Fatal("expected the slot lock to be released")
	}
	slot.mutex.Unlock()

	// Release is idempotent.
	w.Release()
	w.Release()
}

func TestTessellationFailureLeavesSlotInvalid(t *testing.T) {
	c, ct := newTestCache(t, 2, 2)
	w := c.NewWorker()
	key := Key{PrimID: 1}

	ct.fail.Store(true)
	if _, err := c.Lookup(w, key, 1); err == nil {
		t.Fatal("expected lookup to fail")
	}
	if _, err := c.LookupShared(w, key, 1); err == nil {
		t.Fatal("expected shared lookup to fail")
	}
	if c.slot(key).valid {
		t.Fatal("expected the slot to stay invalid")
	}

	ct.fail.Store(false)
	st, err := c.Lookup(w, key, 1)
	if err != nil {
		t.Fatal(err)
	}
	checkSubtree(t, st, key, 0)
}

func TestWorkerFromAnotherCache(t *testing.T) {
	c1, _ := newTestCache(t, 1, 1)
	c2, _ := newTestCache(t, 1, 1)
	if _, err := c1.Lookup(c2.NewWorker(), Key{}, 1); err != ErrWorkerMismatch {
		t.Fatalf("expected ErrWorkerMismatch; got %v", err)
	}
}

func TestConcurrentLookupsNeverObservePartialSubtrees(t *testing.T) {
	// Fewer slots than patches so that workers keep evicting each other.
	c, _ := newTestCache(t, 3, 2)
	keys := []Key{{PrimID: 0}, {PrimID: 1}, {PrimID: 2}, {PrimID: 3}, {PrimID: 4}, {PrimID: 5}}

	const (
		numWorkers = 8
		numLookups = 300
	)
	var (
		wg   sync.WaitGroup
		errs = make(chan error, numWorkers)
	)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			w := c.NewWorker()
			defer w.Release()
			for n := 0; n < numLookups; n++ {
				key := keys[(seed*7+n*5)%len(keys)]
				var (
					st  Subtree
					err error
				)
				if n%2 == 0 {
					st, err = c.Lookup(w, key, 1)
				} else {
					st, err = c.LookupShared(w, key, 1)
				}
				if err != nil {
					errs <- err
					return
				}
				if exp := expBounds(key, 0); st.Bounds != exp {
					errs <- errors.Errorf("patch %d: expected bounds %v; got %v", key.PrimID, exp, st.Bounds)
					return
				}
				stats, err := bvh.CollectStats(st, st.Root, subdiv.NodeWidth)
				if err != nil {
					errs <- err
					return
				}
				perAxis := (patchFor(key, 0).res - 1) / 2
				if stats.Leaves != perAxis*perAxis {
					errs <- errors.Errorf("patch %d: expected %d leaves; got %d", key.PrimID, perAxis*perAxis, stats.Leaves)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(c.metrics.accesses); got != numWorkers*numLookups {
		t.Fatalf("expected %d accesses; got %v", numWorkers*numLookups, got)
	}
}
