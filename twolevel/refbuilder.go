package twolevel

import (
	"github.com/achilleasa/accel/builder"
	"github.com/achilleasa/accel/bvh"
	"github.com/achilleasa/accel/scene"
	"github.com/pkg/errors"
)

const (
	// Segment of the scene level arena.
	topLevelSegment uint32 = 1

	// Object hierarchies use segment geomID + firstObjectSegment.
	firstObjectSegment uint32 = 2
)

func objectSegment(geomID uint32) uint32 {
	return geomID + firstObjectSegment
}

// A refBuilder emits the scene level build references for one geometry.
type refBuilder interface {
	geometry() scene.Geometry

	// The number of references emitted by attachRefs.
	numRefs() int

	// The number of primitives reachable through the emitted references.
	numPrimitives() int

	// Write exactly numRefs references to dst. Leaves that must be created
	// for the references are allocated in top.
	attachRefs(dst []builder.PrimRef, top *bvh.Arena) error

	// The arena backing the object hierarchy or nil.
	arena() *bvh.Arena
}

// Geometries with more primitives than the branching factor get their own
// hierarchy which is referenced by the scene level tree.
type largeRefBuilder struct {
	geomID   uint32
	geom     scene.Geometry
	modified uint64
	quality  scene.Quality
	bvh      *bvh.BVH
}

// Build the object hierarchy for a geometry into a fresh arena.
func buildLargeRefBuilder(geomID uint32, geom scene.Geometry, opts Options, progress func(int) error) (*largeRefBuilder, error) {
	rb := &largeRefBuilder{
		geomID:   geomID,
		geom:     geom,
		modified: geom.Modified(),
		quality:  geom.Quality(),
		bvh:      bvh.New(opts.BranchingFactor),
	}

	settings := opts.objectSettings(rb.quality)
	numPrims := geom.NumPrimitives()
	prims := make([]builder.PrimRef, 0, numPrims)
	for i := 0; i < numPrims; i++ {
		bounds := geom.PrimBounds(i)
		if bounds.Empty() {
			continue
		}
		prims = append(prims, builder.PrimRef{Bounds: bounds, ID: uint64(i)})
	}
	if len(prims) == 0 {
		return rb, nil
	}

	arena := bvh.NewArena(builder.EstimateArenaBlocks(len(prims), opts.BranchingFactor, bvh.PrimLeafBlocks(settings.MaxLeafSize)))
	arena.SetSegment(objectSegment(geomID))

	decode := func(id uint64) bvh.PrimID {
		return bvh.PrimID{GeomID: geomID, PrimID: uint32(id)}
	}
	cb := builder.ArenaCallbacks(arena, opts.BranchingFactor, builder.PrimLeafWriter(arena, decode))
	cb.Progress = progress

	root, bounds, err := builder.Build(prims, builder.ComputePrimInfo(prims, opts.GrainSize), settings, cb)
	if err != nil {
		return nil, errors.Wrapf(err, "geometry %d", geomID)
	}

	rb.bvh.Arena = arena
	rb.bvh.Set(root, bounds, len(prims))
	return rb, nil
}

// Returns true if the object hierarchy does not reflect the geometry.
func (rb *largeRefBuilder) stale(geom scene.Geometry) bool {
	return rb.geom != geom || rb.modified != geom.Modified() || rb.quality != geom.Quality()
}

func (rb *largeRefBuilder) geometry() scene.Geometry { return rb.geom }
func (rb *largeRefBuilder) arena() *bvh.Arena        { return rb.bvh.Arena }

func (rb *largeRefBuilder) numRefs() int {
	if rb.bvh.Root.IsEmpty() {
		return 0
	}
	return 1
}

func (rb *largeRefBuilder) numPrimitives() int { return rb.bvh.NumPrimitives }

func (rb *largeRefBuilder) attachRefs(dst []builder.PrimRef, _ *bvh.Arena) error {
	if rb.bvh.Root.IsEmpty() {
		return nil
	}
	dst[0] = builder.PrimRef{Bounds: rb.bvh.Bounds, ID: uint64(rb.bvh.Root)}
	return nil
}

// Geometries with few primitives emit one single-primitive leaf per
// primitive directly into the scene level arena.
type smallRefBuilder struct {
	geomID uint32
	geom   scene.Geometry
}

func (rb *smallRefBuilder) geometry() scene.Geometry { return rb.geom }
func (rb *smallRefBuilder) arena() *bvh.Arena        { return nil }

func (rb *smallRefBuilder) numRefs() int {
	count := 0
	for i := 0; i < rb.geom.NumPrimitives(); i++ {
		if !rb.geom.PrimBounds(i).Empty() {
			count++
		}
	}
	return count
}

// Each emitted reference is a single primitive leaf.
func (rb *smallRefBuilder) numPrimitives() int { return rb.numRefs() }

func (rb *smallRefBuilder) attachRefs(dst []builder.PrimRef, top *bvh.Arena) error {
	next := 0
	for i := 0; i < rb.geom.NumPrimitives(); i++ {
		bounds := rb.geom.PrimBounds(i)
		if bounds.Empty() {
			continue
		}
		leaf, err := bvh.WritePrimLeaf(top, []bvh.PrimID{{GeomID: rb.geomID, PrimID: uint32(i)}})
		if err != nil {
			return errors.Wrapf(err, "geometry %d", rb.geomID)
		}
		dst[next] = builder.PrimRef{Bounds: bounds, ID: uint64(leaf)}
		next++
	}
	return nil
}
