package twolevel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/achilleasa/accel/builder"
	"github.com/achilleasa/accel/bvh"
	"github.com/achilleasa/accel/log"
	"github.com/achilleasa/accel/scene"
	"github.com/achilleasa/accel/types"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// BuildStats summarizes a scene build.
type BuildStats struct {
	// Geometries that contributed references and the number of object
	// hierarchies that had to be rebuilt.
	Objects int
	Rebuilt int

	// References emitted by the objects and references after opening.
	Refs       int
	OpenedRefs int
	Opened     int

	// Set if a single reference became the scene root.
	FastPath bool

	NumPrimitives int
	Duration      time.Duration
}

// The arenas of one scene build. A state is immutable once installed.
type buildState struct {
	top     *bvh.Arena
	objects []refBuilder
}

// Segment implements bvh.Space.
func (s *buildState) Segment(id uint32) *bvh.Arena {
	if id == topLevelSegment {
		return s.top
	}
	if id < firstObjectSegment {
		return nil
	}
	index := int(id - firstObjectSegment)
	if index >= len(s.objects) || s.objects[index] == nil {
		return nil
	}
	return s.objects[index].arena()
}

// Accel maintains a two-level hierarchy for a scene: one hierarchy per
// geometry and a scene level hierarchy whose leaves reference them.
type Accel struct {
	logger log.Logger
	tracer trace.Tracer
	scene  *scene.Scene
	opts   Options

	// Serializes builds.
	buildMutex sync.Mutex

	// Objects that must be rebuilt from scratch by the next build.
	dropped map[uint32]bool

	mutex sync.RWMutex
	state *buildState
	bvh   *bvh.BVH
}

// New creates a two-level builder for sc.
func New(sc *scene.Scene, opts Options) (*Accel, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &Accel{
		logger:  log.New("twolevel"),
		tracer:  otel.Tracer("github.com/achilleasa/accel/twolevel"),
		scene:   sc,
		opts:    opts,
		dropped: make(map[uint32]bool),
		state:   &buildState{},
		bvh:     bvh.New(opts.BranchingFactor),
	}, nil
}

// Root returns the scene root, its bounds and the number of primitives.
func (a *Accel) Root() (bvh.NodeRef, types.BBox, int) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.bvh.Root, a.bvh.Bounds, a.bvh.NumPrimitives
}

// Width returns the branching factor of all hierarchy nodes.
func (a *Accel) Width() int {
	return a.opts.BranchingFactor
}

// Segment implements bvh.Space for the installed hierarchy.
func (a *Accel) Segment(id uint32) *bvh.Arena {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.state.Segment(id)
}

// Object returns the hierarchy of a geometry or nil if the geometry is
// referenced directly by the scene level.
func (a *Accel) Object(geomID uint32) *bvh.BVH {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if int(geomID) >= len(a.state.objects) {
		return nil
	}
	if rb, ok := a.state.objects[geomID].(*largeRefBuilder); ok {
		return rb.bvh
	}
	return nil
}

// DeleteGeometry releases the hierarchy of a geometry. The next build
// rebuilds the geometry from scratch if it is still part of the scene.
func (a *Accel) DeleteGeometry(geomID uint32) {
	a.buildMutex.Lock()
	defer a.buildMutex.Unlock()
	a.dropped[geomID] = true
}

// Clear releases all hierarchies.
func (a *Accel) Clear() {
	a.buildMutex.Lock()
	defer a.buildMutex.Unlock()

	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.state = &buildState{}
	a.bvh.Clear()
	a.dropped = make(map[uint32]bool)
}

// Build updates the object hierarchies of changed geometries and rebuilds
// the scene level hierarchy. The installed hierarchy is only replaced if
// the build succeeds. Cancelling ctx aborts the build.
func (a *Accel) Build(ctx context.Context) (stats BuildStats, err error) {
	a.buildMutex.Lock()
	defer a.buildMutex.Unlock()

	ctx, span := a.tracer.Start(ctx, "twolevel.Build")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	progress := func(n int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.opts.Progress != nil {
			return a.opts.Progress(n)
		}
		return nil
	}

	a.mutex.RLock()
	prev := a.state
	a.mutex.RUnlock()

	next, stats, err := a.setupRefBuilders(prev, progress)
	if err != nil {
		return stats, errors.Wrap(err, "twolevel: scene build failed")
	}

	root, bounds, err := a.buildTopLevel(next, &stats, progress)
	if err != nil {
		return stats, errors.Wrap(err, "twolevel: scene build failed")
	}

	a.mutex.Lock()
	a.state = next
	a.bvh.Arena = next.top
	a.bvh.Set(root, bounds, stats.NumPrimitives)
	a.dropped = make(map[uint32]bool)
	a.mutex.Unlock()

	stats.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("objects", stats.Objects),
		attribute.Int("refs", stats.Refs),
		attribute.Int("opened_refs", stats.OpenedRefs),
		attribute.Bool("fast_path", stats.FastPath),
	)
	a.logger.Noticef(
		"built scene BVH in %d ms (objects: %d, rebuilt: %d, refs: %d, opened refs: %d, fast path: %t)",
		stats.Duration.Nanoseconds()/1e6, stats.Objects, stats.Rebuilt, stats.Refs, stats.OpenedRefs, stats.FastPath,
	)
	return stats, nil
}

// Select a ref builder for each live geometry and rebuild stale object
// hierarchies in parallel.
func (a *Accel) setupRefBuilders(prev *buildState, progress func(int) error) (*buildState, BuildStats, error) {
	var stats BuildStats

	numGeoms := a.scene.Size()
	next := &buildState{objects: make([]refBuilder, numGeoms)}

	var rebuilt int64
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for id := 0; id < numGeoms; id++ {
		geomID := uint32(id)
		geom := a.scene.Geometry(geomID)
		if geom == nil || !geom.Enabled() || geom.NumTimeSteps() != 1 || geom.NumPrimitives() == 0 {
			continue
		}
		stats.Objects++

		if geom.NumPrimitives() <= a.opts.BranchingFactor {
			next.objects[id] = &smallRefBuilder{geomID: geomID, geom: geom}
			continue
		}

		if id < len(prev.objects) && !a.dropped[geomID] {
			if rb, ok := prev.objects[id].(*largeRefBuilder); ok && !rb.stale(geom) {
				next.objects[id] = rb
				continue
			}
		}

		g.Go(func() error {
			rb, err := buildLargeRefBuilder(geomID, geom, a.opts, progress)
			if err != nil {
				return err
			}
			next.objects[geomID] = rb
			atomic.AddInt64(&rebuilt, 1)
			return nil
		})
	}

	err := g.Wait()
	stats.Rebuilt = int(rebuilt)
	if err != nil {
		return next, stats, err
	}

	// Primitives with empty bounds are never referenced by a leaf.
	for _, rb := range next.objects {
		if rb != nil {
			stats.NumPrimitives += rb.numPrimitives()
		}
	}
	return next, stats, nil
}

// Emit the object references and build the scene level hierarchy over them.
func (a *Accel) buildTopLevel(state *buildState, stats *BuildStats, progress func(int) error) (bvh.NodeRef, types.BBox, error) {
	numRefs, smallLeafBlocks := 0, 0
	for _, rb := range state.objects {
		if rb == nil {
			continue
		}
		count := rb.numRefs()
		numRefs += count
		if rb.arena() == nil {
			smallLeafBlocks += count
		}
	}
	stats.Refs = numRefs

	extSize := a.opts.extSize(numRefs, stats.NumPrimitives)
	if extSize < numRefs {
		extSize = numRefs
	}
	state.top = bvh.NewArena(builder.EstimateArenaBlocks(extSize, a.opts.BranchingFactor, 0) + smallLeafBlocks)
	state.top.SetSegment(topLevelSegment)

	if numRefs == 0 {
		return bvh.EmptyNode, types.EmptyBBox(), nil
	}

	// Each object appends to a disjoint range reserved with an atomic cursor.
	refs := make([]builder.PrimRef, numRefs, extSize)
	var cursor int64
	var g errgroup.Group
	for _, rb := range state.objects {
		if rb == nil {
			continue
		}
		rb := rb
		g.Go(func() error {
			count := int64(rb.numRefs())
			end := atomic.AddInt64(&cursor, count)
			return rb.attachRefs(refs[end-count:end], state.top)
		})
	}
	if err := g.Wait(); err != nil {
		return bvh.InvalidNode, types.EmptyBBox(), err
	}

	if len(refs) == 1 {
		stats.FastPath = true
		stats.OpenedRefs = 1
		return bvh.NodeRef(refs[0].ID), refs[0].Bounds, nil
	}

	if a.opts.Open {
		var err error
		if refs, stats.Opened, err = openRefs(state, refs, a.opts.BranchingFactor, extSize); err != nil {
			return bvh.InvalidNode, types.EmptyBBox(), err
		}
	}
	stats.OpenedRefs = len(refs)

	createLeaf := func(prims []builder.PrimRef) (bvh.NodeRef, error) {
		return bvh.NodeRef(prims[0].ID), nil
	}
	cb := builder.ArenaCallbacks(state.top, a.opts.BranchingFactor, createLeaf)
	cb.Progress = progress

	pinfo := builder.ComputePrimInfo(refs, a.opts.GrainSize)
	return builder.Build(refs, pinfo, a.opts.topLevelSettings(), cb)
}

// Query appends the primitives of all leaves whose bounds overlap box.
func (a *Accel) Query(box types.BBox, dst []bvh.PrimID) ([]bvh.PrimID, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	err := bvh.Walk(a.state, a.bvh.Root, a.bvh.Bounds, a.opts.BranchingFactor, func(ref bvh.NodeRef, bounds types.BBox, _ int) error {
		if !bounds.Overlaps(box) {
			return bvh.SkipSubtree
		}
		if ref.IsLeaf() {
			dst = bvh.ReadPrimLeaf(a.state.Segment(ref.Segment()), ref, dst)
		}
		return nil
	})
	return dst, err
}

// Flatten exports the installed hierarchy into a single arena.
func (a *Accel) Flatten() (*bvh.Arena, bvh.NodeRef, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return bvh.Flatten(a.state, a.bvh.Root, a.opts.BranchingFactor)
}

// CollectStats returns the statistics of the installed hierarchy.
func (a *Accel) CollectStats() (bvh.Stats, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return bvh.CollectStats(a.state, a.bvh.Root, a.opts.BranchingFactor)
}
