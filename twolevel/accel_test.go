package twolevel

import (
	"context"
	"math/rand"
	"testing"

	"github.com/achilleasa/accel/builder"
	"github.com/achilleasa/accel/bvh"
	"github.com/achilleasa/accel/scene"
	"github.com/achilleasa/accel/types"
	"github.com/pkg/errors"
)

func randomMesh(name string, numTris int, offset types.Vec3, seed int64) *scene.TriangleMesh {
	rng := rand.New(rand.NewSource(seed))
	vertices := make([]types.Vec3, 0, numTris*3)
	tris := make([][3]uint32, numTris)
	for i := range tris {
		base := offset.Add(types.XYZ(rng.Float32()*10, rng.Float32()*10, rng.Float32()*10))
		for j := 0; j < 3; j++ {
			tris[i][j] = uint32(len(vertices))
			vertices = append(vertices, base.Add(types.XYZ(rng.Float32()*0.5, rng.Float32()*0.5, rng.Float32()*0.5)))
		}
	}
	return scene.NewTriangleMesh(name, vertices, tris)
}

func geometryBounds(g scene.Geometry) types.BBox {
	bounds := types.EmptyBBox()
	for i := 0; i < g.NumPrimitives(); i++ {
		bounds = bounds.Extend(g.PrimBounds(i))
	}
	return bounds
}

// Walk the installed hierarchy checking containment and return the
// primitives stored in its leaves.
func collectPrims(t *testing.T, a *Accel) map[bvh.PrimID]int {
	root, rootBounds, _ := a.Root()
	seen := make(map[bvh.PrimID]int)
	err := bvh.Walk(a, root, rootBounds, a.Width(), func(ref bvh.NodeRef, bounds types.BBox, _ int) error {
		if !rootBounds.Contains(bounds) {
			return errors.Errorf("bounds %v of %s escape root bounds %v", bounds, ref, rootBounds)
		}
		if !ref.IsLeaf() {
			return nil
		}
		for _, id := range bvh.ReadPrimLeaf(a.Segment(ref.Segment()), ref, nil) {
			seen[id]++
			primBounds := a.scene.Geometry(id.GeomID).PrimBounds(int(id.PrimID))
			if !bounds.Contains(primBounds) {
				return errors.Errorf("leaf bounds %v do not contain primitive %v bounds %v", bounds, id, primBounds)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return seen
}

func TestBuildThreeObjectScene(t *testing.T) {
	sc := scene.New()
	meshes := []*scene.TriangleMesh{
		randomMesh("small", 10, types.XYZ(0, 0, 0), 1),
		randomMesh("large", 10000, types.XYZ(20, 0, 0), 2),
		randomMesh("single", 1, types.XYZ(0, 40, 0), 3),
	}
	expBounds := types.EmptyBBox()
	for _, mesh := range meshes {
		if _, err := sc.Add(mesh); err != nil {
			t.Fatal(err)
		}
		expBounds = expBounds.Extend(geometryBounds(mesh))
	}

	a, err := New(sc, DefaultOptions(4))
	if err != nil {
		t.Fatal(err)
	}
	stats, err := a.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if stats.FastPath {
		t.Fatal("expected fast path not to be taken")
	}
	if stats.Refs != 3 {
		t.Fatalf("expected 3 refs; got %d", stats.Refs)
	}
	if stats.Opened < 1 || stats.OpenedRefs <= stats.Refs {
		t.Fatalf("expected object roots to be opened; got %d openings and %d refs", stats.Opened, stats.OpenedRefs)
	}

	root, bounds, numPrims := a.Root()
	if !root.IsNode() {
		t.Fatalf("expected root to be an internal node; got %s", root)
	}
	if bounds != expBounds {
		t.Fatalf("expected scene bounds %v; got %v", expBounds, bounds)
	}
	if numPrims != 10011 {
		t.Fatalf("expected 10011 primitives; got %d", numPrims)
	}

	seen := collectPrims(t, a)
	if len(seen) != 10011 {
		t.Fatalf("expected 10011 distinct primitives in leaves; got %d", len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("primitive %v referenced by %d leaves", id, count)
		}
	}

	if a.Object(0) == nil || a.Object(1) == nil || a.Object(2) != nil {
		t.Fatal("expected object hierarchies only for geometries with more primitives than the branching factor")
	}
}

func TestFastPath(t *testing.T) {
	sc := scene.New()
	mesh := randomMesh("mesh", 100, types.XYZ(0, 0, 0), 4)
	sc.Add(mesh)

	a, err := New(sc, DefaultOptions(4))
	if err != nil {
		t.Fatal(err)
	}
	stats, err := a.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !stats.FastPath {
		t.Fatal("expected fast path to be taken")
	}
	root, bounds, _ := a.Root()
	object := a.Object(0)
	if root != object.Root || bounds != object.Bounds {
		t.Fatalf("expected scene root to be the object root %s; got %s", object.Root, root)
	}
	if len(collectPrims(t, a)) != 100 {
		t.Fatal("expected all primitives to be reachable")
	}
}

func TestEmptyScene(t *testing.T) {
	type spec struct {
		geoms []scene.Geometry
	}

	disabled := randomMesh("disabled", 50, types.XYZ(0, 0, 0), 5)
	disabled.SetEnabled(false)
	motion := randomMesh("motion", 50, types.XYZ(0, 0, 0), 6)
	motion.SetTimeSteps(2)

	specs := []spec{
		{nil},
		{[]scene.Geometry{scene.NewTriangleMesh("empty", nil, nil)}},
		{[]scene.Geometry{disabled, motion}},
	}

	for specIndex, s := range specs {
		sc := scene.New()
		for _, g := range s.geoms {
			sc.Add(g)
		}
		a, err := New(sc, DefaultOptions(4))
		if err != nil {
			t.Fatal(err)
		}
		stats, err := a.Build(context.Background())
		if err != nil {
			t.Fatalf("[spec %d] %v", specIndex, err)
		}

		root, bounds, _ := a.Root()
		if !root.IsEmpty() || !bounds.Empty() || stats.Objects != 0 {
			t.Fatalf("[spec %d] expected an empty root; got %s with bounds %v", specIndex, root, bounds)
		}
	}
}

func TestSkipsDisabledGeometry(t *testing.T) {
	sc := scene.New()
	enabled := randomMesh("enabled", 30, types.XYZ(0, 0, 0), 7)
	disabled := randomMesh("disabled", 30, types.XYZ(50, 0, 0), 8)
	disabled.SetEnabled(false)
	sc.Add(enabled)
	sc.Add(disabled)

	a, _ := New(sc, DefaultOptions(4))
	stats, err := a.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Objects != 1 || !stats.FastPath {
		t.Fatalf("expected a single contributing object; got %+v", stats)
	}
	for id := range collectPrims(t, a) {
		if id.GeomID != 0 {
			t.Fatalf("unexpected primitive %v from disabled geometry", id)
		}
	}
}

// A geometry backed by explicit primitive bounds.
type boxGeometry struct {
	boxes []types.BBox
}

func (g *boxGeometry) Type() scene.GeometryType    { return scene.TriangleMeshGeometry }
func (g *boxGeometry) NumPrimitives() int          { return len(g.boxes) }
func (g *boxGeometry) PrimBounds(i int) types.BBox { return g.boxes[i] }
func (g *boxGeometry) NumTimeSteps() int           { return 1 }
func (g *boxGeometry) Enabled() bool               { return true }
func (g *boxGeometry) Modified() uint64            { return 0 }
func (g *boxGeometry) Quality() scene.Quality      { return scene.QualityMedium }

// Every fourth box is empty.
func sparseBoxes(count int, offset types.Vec3) *boxGeometry {
	g := &boxGeometry{boxes: make([]types.BBox, count)}
	for i := range g.boxes {
		if i%4 == 3 {
			g.boxes[i] = types.EmptyBBox()
			continue
		}
		lo := offset.Add(types.Splat(float32(i)))
		g.boxes[i] = types.BBox{Min: lo, Max: lo.Add(types.Splat(0.5))}
	}
	return g
}

func TestNumPrimitivesSkipsEmptyBounds(t *testing.T) {
	sc := scene.New()
	// Built as an object hierarchy and as single primitive leaves.
	sc.Add(sparseBoxes(40, types.XYZ(0, 0, 0)))
	sc.Add(sparseBoxes(4, types.XYZ(100, 0, 0)))

	a, _ := New(sc, DefaultOptions(4))
	stats, err := a.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	const expPrims = 30 + 3
	if stats.NumPrimitives != expPrims {
		t.Fatalf("expected build stats to count %d primitives; got %d", expPrims, stats.NumPrimitives)
	}
	if _, _, numPrims := a.Root(); numPrims != expPrims {
		t.Fatalf("expected root to reference %d primitives; got %d", expPrims, numPrims)
	}
	if seen := collectPrims(t, a); len(seen) != expPrims {
		t.Fatalf("expected %d primitives in leaves; got %d", expPrims, len(seen))
	}
}

func TestObjectRebuilds(t *testing.T) {
	sc := scene.New()
	meshA := randomMesh("a", 200, types.XYZ(0, 0, 0), 9)
	meshB := randomMesh("b", 200, types.XYZ(30, 0, 0), 10)
	sc.Add(meshA)
	idB, _ := sc.Add(meshB)

	a, _ := New(sc, DefaultOptions(4))

	type spec struct {
		mutate     func()
		expRebuilt int
	}
	specs := []spec{
		{func() {}, 2},
		{func() {}, 0},
		{func() { meshA.Update() }, 1},
		{func() { meshB.SetQuality(scene.QualityHigh) }, 1},
		{func() { a.DeleteGeometry(idB) }, 1},
		{func() { sc.Delete(idB) }, 0},
	}

	for specIndex, s := range specs {
		s.mutate()
		stats, err := a.Build(context.Background())
		if err != nil {
			t.Fatalf("[spec %d] %v", specIndex, err)
		}
		if stats.Rebuilt != s.expRebuilt {
			t.Fatalf("[spec %d] expected %d rebuilt objects; got %d", specIndex, s.expRebuilt, stats.Rebuilt)
		}
	}

	if a.Object(idB) != nil {
		t.Fatal("expected hierarchy of deleted geometry to be released")
	}
	if len(collectPrims(t, a)) != 200 {
		t.Fatal("expected only the primitives of the remaining geometry")
	}
}

func TestOpeningBudget(t *testing.T) {
	sc := scene.New()
	for i := 0; i < 3; i++ {
		sc.Add(randomMesh("mesh", 500, types.XYZ(float32(i)*15, 0, 0), int64(i)))
	}

	for _, minExt := range []int{0, 3, 4, 7, 10, 64} {
		opts := DefaultOptions(4)
		opts.MinExtSpace = minExt
		opts.ExtScale = 1
		opts.ExtFactor = 1 << 20

		a, err := New(sc, opts)
		if err != nil {
			t.Fatal(err)
		}
		stats, err := a.Build(context.Background())
		if err != nil {
			t.Fatal(err)
		}

		extSize := opts.extSize(stats.Refs, stats.NumPrimitives)
		if stats.OpenedRefs > extSize {
			t.Fatalf("[minExt %d] expected at most %d refs after opening; got %d", minExt, extSize, stats.OpenedRefs)
		}
		if len(collectPrims(t, a)) != 1500 {
			t.Fatalf("[minExt %d] expected all primitives to be reachable", minExt)
		}
	}
}

func TestOpenRefsStopsAtLeaves(t *testing.T) {
	arena := bvh.NewArena(4)
	arena.SetSegment(topLevelSegment)
	leafA, _ := bvh.WritePrimLeaf(arena, []bvh.PrimID{{GeomID: 0, PrimID: 0}})
	leafB, _ := bvh.WritePrimLeaf(arena, []bvh.PrimID{{GeomID: 0, PrimID: 1}})

	refs := []builder.PrimRef{
		{Bounds: types.BBox{Min: types.Splat(0), Max: types.Splat(1)}, ID: uint64(leafA)},
		{Bounds: types.BBox{Min: types.Splat(0), Max: types.Splat(2)}, ID: uint64(leafB)},
	}
	out, opened, err := openRefs(&buildState{top: arena}, refs, 4, 100)
	if err != nil {
		t.Fatal(err)
	}
	if opened != 0 || len(out) != 2 {
		t.Fatalf("expected leaves not to be opened; got %d openings and %d refs", opened, len(out))
	}
	if bvh.NodeRef(out[0].ID) != leafB {
		t.Fatal("expected the largest reference at the top of the heap")
	}
}

func TestFailedBuildKeepsPreviousHierarchy(t *testing.T) {
	sc := scene.New()
	mesh := randomMesh("mesh", 300, types.XYZ(0, 0, 0), 11)
	sc.Add(mesh)
	sc.Add(randomMesh("other", 300, types.XYZ(20, 0, 0), 12))

	errAbort := errors.New("abort")
	fail := false
	opts := DefaultOptions(4)
	opts.Progress = func(int) error {
		if fail {
			return errAbort
		}
		return nil
	}

	a, _ := New(sc, opts)
	if _, err := a.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	prevRoot, prevBounds, _ := a.Root()
	prevObject := a.Object(0)

	fail = true
	mesh.Update()
	if _, err := a.Build(context.Background()); errors.Cause(err) != errAbort {
		t.Fatalf("expected build to abort; got %v", err)
	}

	root, bounds, _ := a.Root()
	if root != prevRoot || bounds != prevBounds || a.Object(0) != prevObject {
		t.Fatal("expected failed build to keep the previous hierarchy")
	}
	if len(collectPrims(t, a)) != 600 {
		t.Fatal("expected previous hierarchy to remain traversable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fail = false
	if _, err := a.Build(ctx); errors.Cause(err) != context.Canceled {
		t.Fatalf("expected build to be cancelled; got %v", err)
	}
}

func TestQueryAndFlatten(t *testing.T) {
	sc := scene.New()
	sc.Add(randomMesh("a", 400, types.XYZ(0, 0, 0), 13))
	sc.Add(randomMesh("b", 3, types.XYZ(5, 5, 5), 14))
	sc.Add(randomMesh("c", 400, types.XYZ(8, 0, 0), 15))

	a, _ := New(sc, DefaultOptions(4))
	if _, err := a.Build(context.Background()); err != nil {
		t.Fatal(err)
	}

	box := types.BBox{Min: types.XYZ(4, 4, 4), Max: types.XYZ(9, 9, 9)}
	found, err := a.Query(box, nil)
	if err != nil {
		t.Fatal(err)
	}
	hits := make(map[bvh.PrimID]bool)
	for _, id := range found {
		hits[id] = true
	}
	for geomID := uint32(0); geomID < 3; geomID++ {
		g := sc.Geometry(geomID)
		for i := 0; i < g.NumPrimitives(); i++ {
			if g.PrimBounds(i).Overlaps(box) && !hits[bvh.PrimID{GeomID: geomID, PrimID: uint32(i)}] {
				t.Fatalf("expected query to report primitive %d of geometry %d", i, geomID)
			}
		}
	}

	flat, flatRoot, err := a.Flatten()
	if err != nil {
		t.Fatal(err)
	}
	flat.SetSegment(topLevelSegment)
	_, rootBounds, _ := a.Root()
	count := 0
	err = bvh.Walk(bvh.SegmentList{flat}, flatRoot.InSegment(topLevelSegment), rootBounds, a.Width(), func(ref bvh.NodeRef, _ types.BBox, _ int) error {
		if ref.IsLeaf() {
			count += len(bvh.ReadPrimLeaf(flat, ref, nil))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 803 {
		t.Fatalf("expected 803 primitives in the flattened hierarchy; got %d", count)
	}
}

func TestOptionsValidate(t *testing.T) {
	type spec struct {
		mutate func(o *Options)
		valid  bool
	}
	specs := []spec{
		{func(o *Options) {}, true},
		{func(o *Options) { o.BranchingFactor = 1 }, false},
		{func(o *Options) { o.ExtScale = 0 }, false},
		{func(o *Options) { o.GrainSize = 0 }, false},
		{func(o *Options) { o.ObjectSettings[scene.QualityHigh].MaxLeafSize = bvh.MaxLeafPrims + 1 }, false},
		{func(o *Options) { o.ObjectSettings[scene.QualityLow].MinLeafSize = 0 }, false},
	}

	for specIndex, s := range specs {
		opts := DefaultOptions(4)
		s.mutate(&opts)
		_, err := New(scene.New(), opts)
		if s.valid && err != nil {
			t.Fatalf("[spec %d] expected options to be valid; got %v", specIndex, err)
		}
		if !s.valid && errors.Cause(err) != ErrInvalidOptions {
			t.Fatalf("[spec %d] expected ErrInvalidOptions; got %v", specIndex, err)
		}
	}
}
