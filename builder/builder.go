package builder

import (
	"sync/atomic"
	"time"

	"github.com/achilleasa/accel/log"
	"github.com/achilleasa/accel/types"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Callbacks decouple the builder from the node representation. R is the
// type of the references returned by the leaf and node factories.
//
// CreateLeaf, CreateNode, SetChildren and Progress may be invoked
// concurrently from multiple goroutines once a record exceeds the single
// thread threshold, so all of them must be safe for concurrent use.
type Callbacks[R any] struct {
	// Create a leaf for the supplied items.
	CreateLeaf func(prims []PrimRef) (R, error)

	// Create an internal node with room for numChildren children.
	CreateNode func(numChildren int) (R, error)

	// Populate the child slots of a node created by CreateNode.
	SetChildren func(node R, bounds []types.BBox, children []R) error

	// Invoked with the number of items placed in each new leaf. A non-nil
	// error aborts the build. Optional; see above for concurrency.
	Progress func(n int) error
}

type stats struct {
	nodes    int64
	leafs    int64
	maxDepth int64
}

const loggerModule = "sah builder"

type builder[R any] struct {
	logger   log.Logger
	prims    []PrimRef
	settings Settings
	cb       Callbacks[R]

	// Stats are only tracked when debug logging is enabled.
	collectStats bool
	stats        stats
}

// Build a hierarchy over prims. The pinfo argument must describe the
// complete prims slice (see ComputePrimInfo). Items are reordered in place
// and leaves receive sub-slices of prims.
//
// Build returns the root reference and the bounds of all items.
func Build[R any](prims []PrimRef, pinfo PrimInfo, settings Settings, cb Callbacks[R]) (R, types.BBox, error) {
	var zero R
	if err := settings.Validate(); err != nil {
		return zero, types.EmptyBBox(), err
	}
	if cb.CreateLeaf == nil || cb.CreateNode == nil || cb.SetChildren == nil {
		return zero, types.EmptyBBox(), ErrMissingCallback
	}
	if pinfo.Size() != len(prims) {
		return zero, types.EmptyBBox(), errors.Wrapf(ErrInvalidSettings, "prim info covers %d items; got %d", pinfo.Size(), len(prims))
	}

	b := &builder[R]{
		logger:       log.New(loggerModule),
		prims:        prims,
		settings:     settings,
		cb:           cb,
		collectStats: log.IsEnabledFor(log.Debug, loggerModule),
	}

	start := time.Now()
	rec := BuildRecord{PrimInfo: pinfo}
	rec.split = b.find(rec)
	root, err := b.recurse(rec)
	if err != nil {
		return zero, types.EmptyBBox(), err
	}

	if b.collectStats {
		b.logger.Debugf(
			"BVH build time: %d ms, items: %d, maxDepth: %d, nodes: %d, leafs: %d",
			time.Since(start).Nanoseconds()/1e6,
			len(prims), atomic.LoadInt64(&b.stats.maxDepth),
			atomic.LoadInt64(&b.stats.nodes), atomic.LoadInt64(&b.stats.leafs),
		)
	}
	return root, pinfo.GeomBounds, nil
}

func (b *builder[R]) find(rec BuildRecord) split {
	if rec.Size() <= b.settings.MinLeafSize {
		return invalidSplit()
	}
	return findSplit(b.prims, rec, b.settings)
}

func (b *builder[R]) recurse(rec BuildRecord) (R, error) {
	b.trackDepth(rec.Depth)

	size := rec.Size()
	if size <= b.settings.MinLeafSize || rec.Depth >= b.settings.MaxDepth {
		return b.createLargeLeaf(rec)
	}

	if size <= b.settings.MaxLeafSize {
		leafSAH := b.settings.IntCost * rec.GeomBounds.HalfArea() * b.settings.blocks(size)
		splitSAH := b.settings.TravCost*rec.GeomBounds.HalfArea() + b.settings.IntCost*rec.split.cost
		if leafSAH <= splitSAH {
			return b.createLeaf(rec)
		}
	}

	children := b.splitChildren(rec)
	return b.createNode(rec, children, size > b.settings.SingleThreadThreshold, b.recurse)
}

// Repeatedly split the child with the largest surface area until the
// branching factor is reached or no child can be split further.
func (b *builder[R]) splitChildren(rec BuildRecord) []BuildRecord {
	children := make([]BuildRecord, 1, b.settings.BranchingFactor)
	children[0] = rec

	for len(children) < b.settings.BranchingFactor {
		bestIndex := -1
		var bestArea float32 = -1
		for i, child := range children {
			if child.Size() <= b.settings.MinLeafSize {
				continue
			}
			if area := child.GeomBounds.HalfArea(); area > bestArea {
				bestIndex, bestArea = i, area
			}
		}
		if bestIndex < 0 {
			break
		}

		left, right := b.split(children[bestIndex])
		children[bestIndex] = left
		children = append(children, right)
	}

	for i := range children {
		children[i].Depth = rec.Depth + 1
	}
	return children
}

// Partition a record using its binned split or, if that is unusable, by
// item count.
func (b *builder[R]) split(rec BuildRecord) (BuildRecord, BuildRecord) {
	var lInfo, rInfo PrimInfo
	if rec.split.valid() {
		lInfo, rInfo = partition(b.prims, rec, rec.split)
	}
	if lInfo.Size() == 0 || rInfo.Size() == 0 {
		lInfo, rInfo = splitByCount(b.prims, rec)
	}

	left := BuildRecord{PrimInfo: lInfo, Depth: rec.Depth}
	right := BuildRecord{PrimInfo: rInfo, Depth: rec.Depth}
	left.split = b.find(left)
	right.split = b.find(right)
	return left, right
}

// Emit leaves for a record that reached the depth limit or is too small to
// split. Records exceeding the max leaf size are divided by item count.
func (b *builder[R]) createLargeLeaf(rec BuildRecord) (R, error) {
	b.trackDepth(rec.Depth)
	if rec.Size() <= b.settings.MaxLeafSize {
		return b.createLeaf(rec)
	}

	children := make([]BuildRecord, 1, b.settings.BranchingFactor)
	children[0] = rec
	for len(children) < b.settings.BranchingFactor {
		bestIndex, bestSize := -1, b.settings.MaxLeafSize
		for i, child := range children {
			if child.Size() > bestSize {
				bestIndex, bestSize = i, child.Size()
			}
		}
		if bestIndex < 0 {
			break
		}

		lInfo, rInfo := splitByCount(b.prims, children[bestIndex])
		children[bestIndex] = BuildRecord{PrimInfo: lInfo}
		children = append(children, BuildRecord{PrimInfo: rInfo})
	}
	for i := range children {
		children[i].Depth = rec.Depth + 1
	}
	return b.createNode(rec, children, false, b.createLargeLeaf)
}

func (b *builder[R]) createNode(rec BuildRecord, children []BuildRecord, parallel bool, build func(BuildRecord) (R, error)) (R, error) {
	var zero R
	node, err := b.cb.CreateNode(len(children))
	if err != nil {
		return zero, err
	}
	if b.collectStats {
		atomic.AddInt64(&b.stats.nodes, 1)
	}

	refs := make([]R, len(children))
	bounds := make([]types.BBox, len(children))
	for i, child := range children {
		bounds[i] = child.GeomBounds
	}

	if parallel {
		var g errgroup.Group
		for i := range children {
			i := i
			g.Go(func() error {
				ref, err := build(children[i])
				refs[i] = ref
				return err
			})
		}
		if err = g.Wait(); err != nil {
			return zero, err
		}
	} else {
		for i, child := range children {
			if refs[i], err = build(child); err != nil {
				return zero, err
			}
		}
	}

	if err = b.cb.SetChildren(node, bounds, refs); err != nil {
		return zero, err
	}
	return node, nil
}

func (b *builder[R]) createLeaf(rec BuildRecord) (R, error) {
	var zero R
	items := b.prims[rec.Begin:rec.End]
	leaf, err := b.cb.CreateLeaf(items)
	if err != nil {
		return zero, err
	}
	if b.collectStats {
		atomic.AddInt64(&b.stats.leafs, 1)
	}

	if b.cb.Progress != nil {
		if err = b.cb.Progress(len(items)); err != nil {
			return zero, err
		}
	}
	return leaf, nil
}

func (b *builder[R]) trackDepth(depth int) {
	if !b.collectStats {
		return
	}
	for {
		cur := atomic.LoadInt64(&b.stats.maxDepth)
		if int64(depth) <= cur || atomic.CompareAndSwapInt64(&b.stats.maxDepth, cur, int64(depth)) {
			return
		}
	}
}
