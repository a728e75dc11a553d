package builder

import (
	"github.com/achilleasa/accel/bvh"
	"github.com/achilleasa/accel/types"
	"github.com/pkg/errors"
)

// ArenaCallbacks returns callbacks that store width-wide internal nodes in
// arena. Child references that point into the arena segment are stored
// segment-relative; references into other segments are stored as-is.
func ArenaCallbacks(arena *bvh.Arena, width int, createLeaf func(prims []PrimRef) (bvh.NodeRef, error)) Callbacks[bvh.NodeRef] {
	nodeBlocks := bvh.NodeBlocks(width)
	return Callbacks[bvh.NodeRef]{
		CreateLeaf: createLeaf,
		CreateNode: func(numChildren int) (bvh.NodeRef, error) {
			if numChildren > width {
				return bvh.InvalidNode, errors.Errorf("builder: node with %d children exceeds width %d", numChildren, width)
			}
			block, err := arena.Alloc(nodeBlocks)
			if err != nil {
				return bvh.InvalidNode, err
			}
			bvh.ClearNode(arena, block, width)
			return bvh.EncodeNode(arena.Segment(), block), nil
		},
		SetChildren: func(node bvh.NodeRef, bounds []types.BBox, children []bvh.NodeRef) error {
			for i, child := range children {
				if child.Segment() == arena.Segment() {
					child = child.Relative()
				}
				bvh.SetChild(arena, node.Block(), i, bounds[i], child)
			}
			return nil
		},
	}
}

// PrimLeafWriter returns a leaf callback that stores the items of each leaf
// as primitive ids in arena. The decode function maps a PrimRef id to the
// primitive it represents.
func PrimLeafWriter(arena *bvh.Arena, decode func(id uint64) bvh.PrimID) func(prims []PrimRef) (bvh.NodeRef, error) {
	return func(prims []PrimRef) (bvh.NodeRef, error) {
		ids := make([]bvh.PrimID, len(prims))
		for i, prim := range prims {
			ids[i] = decode(prim.ID)
		}
		return bvh.WritePrimLeaf(arena, ids)
	}
}

// EstimateArenaBlocks returns the number of blocks needed to build a
// hierarchy over count items when each leaf occupies at most leafBlocks
// blocks.
func EstimateArenaBlocks(count, width, leafBlocks int) int {
	if count < 1 {
		return 0
	}
	return (count-1)*bvh.NodeBlocks(width) + count*leafBlocks
}
