package builder

import (
	"github.com/achilleasa/accel/types"
	"golang.org/x/sync/errgroup"
)

// PrimRef pairs the bounds of a build item with an opaque id. For object
// hierarchies the id encodes a primitive; for the scene hierarchy it holds
// the NodeRef of an object hierarchy node.
type PrimRef struct {
	Bounds types.BBox
	ID     uint64
}

// PrimInfo tracks the range of a PrimRef slice together with the bounds of
// the referenced items and the bounds of their centroids.
type PrimInfo struct {
	Begin, End int

	GeomBounds types.BBox
	CentBounds types.BBox
}

// EmptyPrimInfo returns the identity element for Merge.
func EmptyPrimInfo() PrimInfo {
	return PrimInfo{
		GeomBounds: types.EmptyBBox(),
		CentBounds: types.EmptyBBox(),
	}
}

// Size returns the number of items in the range.
func (pi PrimInfo) Size() int {
	return pi.End - pi.Begin
}

// Add an item to the end of the range.
func (pi *PrimInfo) Add(bounds types.BBox) {
	pi.GeomBounds = pi.GeomBounds.Extend(bounds)
	pi.CentBounds = pi.CentBounds.ExtendPoint(bounds.Center2())
	pi.End++
}

// Merge combines the information of two ranges. The operation is
// associative and commutative on bounds and counts so it can be used by
// parallel reductions; the merged range starts at the lower begin.
func (pi PrimInfo) Merge(o PrimInfo) PrimInfo {
	begin := pi.Begin
	if o.Begin < begin {
		begin = o.Begin
	}
	return PrimInfo{
		Begin:      begin,
		End:        begin + pi.Size() + o.Size(),
		GeomBounds: pi.GeomBounds.Extend(o.GeomBounds),
		CentBounds: pi.CentBounds.Extend(o.CentBounds),
	}
}

// ComputePrimInfo calculates the aggregate bounds of prims with a parallel
// reduction over chunks of grainSize items.
func ComputePrimInfo(prims []PrimRef, grainSize int) PrimInfo {
	if grainSize < 1 {
		grainSize = 1
	}
	numChunks := (len(prims) + grainSize - 1) / grainSize
	if numChunks <= 1 {
		return sequentialPrimInfo(prims, 0)
	}

	partial := make([]PrimInfo, numChunks)
	var g errgroup.Group
	for chunk := 0; chunk < numChunks; chunk++ {
		chunk := chunk
		g.Go(func() error {
			begin := chunk * grainSize
			end := begin + grainSize
			if end > len(prims) {
				end = len(prims)
			}
			partial[chunk] = sequentialPrimInfo(prims[begin:end], begin)
			return nil
		})
	}
	_ = g.Wait()

	out := EmptyPrimInfo()
	for _, pi := range partial {
		out = out.Merge(pi)
	}
	return out
}

func sequentialPrimInfo(prims []PrimRef, begin int) PrimInfo {
	pi := EmptyPrimInfo()
	pi.Begin, pi.End = begin, begin
	for _, prim := range prims {
		pi.Add(prim.Bounds)
	}
	return pi
}

// BuildRecord is the unit of recursive work: a range of the PrimRef slice
// and the depth at which it is partitioned.
type BuildRecord struct {
	PrimInfo
	Depth int

	split split
}
