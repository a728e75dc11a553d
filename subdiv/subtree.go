package subdiv

import (
	"github.com/achilleasa/accel/bvh"
	"github.com/achilleasa/accel/types"
	"github.com/pkg/errors"
)

// SubtreeBlocks returns the number of arena blocks needed for the subtree
// of a uRes x vRes grid.
func SubtreeBlocks(uRes, vRes int) int {
	return rangeBlocks(FullRange(uRes, vRes))
}

func rangeBlocks(r GridRange) int {
	if r.IsLeaf() {
		return QuadLeafBlocks
	}

	var sub [4]GridRange
	blocks := bvh.NodeBlocks(NodeWidth)
	for i, n := 0, r.SplitIntoSubRanges(&sub); i < n; i++ {
		blocks += rangeBlocks(sub[i])
	}
	return blocks
}

// BuildSubtree builds a hierarchy of quad leaves over the grid into a
// single contiguous allocation from arena. Node and leaf references inside
// the subtree are segment-relative so the allocation can be moved to
// another arena with a block copy as long as it keeps its block offset.
func BuildSubtree(g *Grid, arena *bvh.Arena) (bvh.NodeRef, types.BBox, error) {
	if g.URes < 2 || g.VRes < 2 {
		return bvh.InvalidNode, types.EmptyBBox(), ErrGridTooSmall
	}

	need := SubtreeBlocks(g.URes, g.VRes)
	first, err := arena.Alloc(need)
	if err != nil {
		return bvh.InvalidNode, types.EmptyBBox(), err
	}

	b := subtreeBuilder{grid: g, arena: arena, next: first}
	root, bounds := b.build(FullRange(g.URes, g.VRes))
	if used := b.next - first; used != need {
		return bvh.InvalidNode, types.EmptyBBox(), errors.Wrapf(ErrBlockAccounting, "used %d blocks; expected %d", used, need)
	}
	return root.InSegment(arena.Segment()), bounds, nil
}

type subtreeBuilder struct {
	grid  *Grid
	arena *bvh.Arena

	// The next free block.
	next int
}

func (b *subtreeBuilder) build(r GridRange) (bvh.NodeRef, types.BBox) {
	if r.IsLeaf() {
		block := b.next
		b.next += QuadLeafBlocks

		var q Quad2x2
		q.load(b.grid, r)
		q.write(b.arena.Blocks(block, QuadLeafBlocks))
		return bvh.EncodeLeaf(bvh.LocalSegment, block, QuadLeafBlocks), q.Bounds()
	}

	block := b.next
	b.next += bvh.NodeBlocks(NodeWidth)
	bvh.ClearNode(b.arena, block, NodeWidth)

	var sub [4]GridRange
	bounds := types.EmptyBBox()
	for i, n := 0, r.SplitIntoSubRanges(&sub); i < n; i++ {
		child, childBounds := b.build(sub[i])
		bvh.SetChild(b.arena, block, i, childBounds, child)
		bounds = bounds.Extend(childBounds)
	}
	return bvh.EncodeNode(bvh.LocalSegment, block), bounds
}
