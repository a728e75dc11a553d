package bvh

import (
	"github.com/achilleasa/accel/types"
	"github.com/pkg/errors"
)

// Flatten packs every segment reachable from root into a single arena. The
// segments are laid out back to back and every node reference in the copy
// is rewritten into a segment-relative reference shifted by the offset of
// the segment it pointed into. The returned root is segment-relative, so the
// flattened tree can later be relocated with a plain block copy.
func Flatten(space Space, root NodeRef, width int) (*Arena, NodeRef, error) {
	if root.IsEmpty() {
		return NewArena(0), EmptyNode, nil
	}

	// Assign an output offset to each segment in the order it is reached.
	offsets := make(map[uint32]int64)
	order := make([]*Arena, 0)
	totalBlocks := 0
	err := Walk(space, root, types.EmptyBBox(), width, func(ref NodeRef, _ types.BBox, _ int) error {
		if _, seen := offsets[ref.Segment()]; seen {
			return nil
		}
		arena := space.Segment(ref.Segment())
		if arena == nil {
			return errors.Wrapf(ErrUnknownSegment, "segment %d", ref.Segment())
		}
		offsets[ref.Segment()] = int64(totalBlocks)
		order = append(order, arena)
		totalBlocks += arena.Used()
		return nil
	})
	if err != nil {
		return nil, InvalidNode, err
	}

	out := NewArena(totalBlocks)
	for _, arena := range order {
		offset := offsets[arena.Segment()]
		copy(out.data[offset*BlockSize:], arena.Bytes())
	}
	out.next.Store(int64(totalBlocks))

	// Rewrite child references of all copied internal nodes.
	err = Walk(space, root, types.EmptyBBox(), width, func(ref NodeRef, _ types.BBox, _ int) error {
		if !ref.IsNode() {
			return nil
		}
		arena := space.Segment(ref.Segment())
		dstBlock := ref.Block() + int(offsets[ref.Segment()])
		for i := 0; i < width; i++ {
			_, child := GetChild(arena, ref.Block(), i)
			child = child.Resolve(ref.Segment())
			SetChildRef(out, dstBlock, i, child.Relative().Rebase(offsets[child.Segment()]))
		}
		return nil
	})
	if err != nil {
		return nil, InvalidNode, err
	}

	return out, root.Relative().Rebase(offsets[root.Segment()]), nil
}
