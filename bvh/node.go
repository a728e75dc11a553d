package bvh

import (
	"encoding/binary"
	"math"

	"github.com/achilleasa/accel/types"
)

// Each child slot of an internal node stores the child bounds as six
// float32 values followed by the 64-bit child reference.
const childSlotSize = 32

// NodeBlocks returns the number of blocks occupied by an internal node with
// the given branching factor.
func NodeBlocks(width int) int {
	return EstimateBlocks(width * childSlotSize)
}

// A child entry of an internal node.
type Child struct {
	Bounds types.BBox
	Ref    NodeRef
}

func childSlot(a *Arena, block, index int) []byte {
	offset := block*BlockSize + index*childSlotSize
	return a.data[offset : offset+childSlotSize]
}

// Reset all child slots of the node at block to empty.
func ClearNode(a *Arena, block, width int) {
	empty := types.EmptyBBox()
	for i := 0; i < width; i++ {
		SetChild(a, block, i, empty, EmptyNode)
	}
}

// Write the bounds and reference of a node child.
func SetChild(a *Arena, block, index int, bounds types.BBox, ref NodeRef) {
	slot := childSlot(a, block, index)
	le := binary.LittleEndian
	for axis := 0; axis < 3; axis++ {
		le.PutUint32(slot[axis*4:], math.Float32bits(bounds.Min[axis]))
		le.PutUint32(slot[12+axis*4:], math.Float32bits(bounds.Max[axis]))
	}
	le.PutUint64(slot[24:], uint64(ref))
}

// Read the bounds and reference of a node child. The reference is returned
// as stored, i.e. possibly segment-relative.
func GetChild(a *Arena, block, index int) (types.BBox, NodeRef) {
	slot := childSlot(a, block, index)
	le := binary.LittleEndian
	var bounds types.BBox
	for axis := 0; axis < 3; axis++ {
		bounds.Min[axis] = math.Float32frombits(le.Uint32(slot[axis*4:]))
		bounds.Max[axis] = math.Float32frombits(le.Uint32(slot[12+axis*4:]))
	}
	return bounds, NodeRef(le.Uint64(slot[24:]))
}

// Overwrite only the reference of a node child.
func SetChildRef(a *Arena, block, index int, ref NodeRef) {
	binary.LittleEndian.PutUint64(childSlot(a, block, index)[24:], uint64(ref))
}
