package bvh

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// PrimID identifies a primitive of a scene geometry.
type PrimID struct {
	GeomID uint32
	PrimID uint32
}

const (
	// Encoded size of a primitive id.
	primIDSize = 8

	// Number of primitive ids that fit in one leaf block.
	PrimsPerBlock = BlockSize / primIDSize

	// The max number of primitives that can be stored in a single leaf.
	MaxLeafPrims = MaxLeafBlocks * PrimsPerBlock

	unusedSlot = ^uint32(0)
)

// PrimLeafBlocks returns the number of blocks needed to store count prims.
func PrimLeafBlocks(count int) int {
	return EstimateBlocks(count * primIDSize)
}

// Allocate a primitive leaf and return its reference. The leaf reference is
// bound to the arena segment.
func WritePrimLeaf(a *Arena, prims []PrimID) (NodeRef, error) {
	if len(prims) == 0 || len(prims) > MaxLeafPrims {
		return InvalidNode, errors.Errorf("bvh: cannot store %d primitives in a leaf (max %d)", len(prims), MaxLeafPrims)
	}

	blocks := PrimLeafBlocks(len(prims))
	first, err := a.Alloc(blocks)
	if err != nil {
		return InvalidNode, err
	}

	data := a.Blocks(first, blocks)
	le := binary.LittleEndian
	for i := 0; i < blocks*PrimsPerBlock; i++ {
		geomID, primID := unusedSlot, unusedSlot
		if i < len(prims) {
			geomID, primID = prims[i].GeomID, prims[i].PrimID
		}
		le.PutUint32(data[i*primIDSize:], geomID)
		le.PutUint32(data[i*primIDSize+4:], primID)
	}

	return EncodeLeaf(a.Segment(), first, blocks), nil
}

// Decode the primitives stored in a leaf and append them to dst.
func ReadPrimLeaf(a *Arena, leaf NodeRef, dst []PrimID) []PrimID {
	data := a.Blocks(leaf.Block(), leaf.LeafBlocks())
	le := binary.LittleEndian
	for i := 0; i < len(data)/primIDSize; i++ {
		geomID := le.Uint32(data[i*primIDSize:])
		if geomID == unusedSlot {
			break
		}
		dst = append(dst, PrimID{GeomID: geomID, PrimID: le.Uint32(data[i*primIDSize+4:])})
	}
	return dst
}
