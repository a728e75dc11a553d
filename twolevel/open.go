package twolevel

import (
	"container/heap"

	"github.com/achilleasa/accel/builder"
	"github.com/achilleasa/accel/bvh"
)

// A max-heap of build references ordered by surface area. Ties are broken
// by the raw reference value.
type refHeap []builder.PrimRef

func (h refHeap) Len() int { return len(h) }

func (h refHeap) Less(i, j int) bool {
	ai, aj := h[i].Bounds.HalfArea(), h[j].Bounds.HalfArea()
	if ai != aj {
		return ai > aj
	}
	return bvh.NodeRef(h[j].ID).Less(bvh.NodeRef(h[i].ID))
}

func (h refHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *refHeap) Push(x interface{}) {
	*h = append(*h, x.(builder.PrimRef))
}

func (h *refHeap) Pop() interface{} {
	old := *h
	last := old[len(old)-1]
	*h = old[:len(old)-1]
	return last
}

// Replace the largest references with the children of the node they point
// to for as long as the expansion fits in extSize references. Opening stops
// once the largest reference is a leaf.
func openRefs(space bvh.Space, refs []builder.PrimRef, width, extSize int) ([]builder.PrimRef, int, error) {
	if len(refs) == 0 {
		return refs, 0, nil
	}

	h := refHeap(refs)
	heap.Init(&h)

	opened := 0
	children := make([]bvh.Child, 0, width)
	for len(h)+width-1 <= extSize {
		ref := bvh.NodeRef(h[0].ID)
		if !ref.IsNode() {
			break
		}

		var err error
		if children, err = bvh.Children(space, ref, width, children[:0]); err != nil {
			return h, opened, err
		}

		heap.Pop(&h)
		for _, child := range children {
			heap.Push(&h, builder.PrimRef{Bounds: child.Bounds, ID: uint64(child.Ref)})
		}
		opened++
	}
	return h, opened, nil
}
