package bvh

import "github.com/achilleasa/accel/types"

// Space resolves segment ids to the arenas that back them.
type Space interface {
	Segment(id uint32) *Arena
}

// A Space containing a fixed list of arenas, indexed by their segment id.
type SegmentList []*Arena

// Segment implements Space.
func (l SegmentList) Segment(id uint32) *Arena {
	for _, a := range l {
		if a != nil && a.Segment() == id {
			return a
		}
	}
	return nil
}

// BVH is a bounding volume hierarchy. The root, bounds and primitive count
// are always replaced together when the hierarchy is rebuilt.
type BVH struct {
	Root          NodeRef
	Bounds        types.BBox
	NumPrimitives int

	// The branching factor of internal nodes.
	Width int

	// The arena holding the nodes and leaves built for this hierarchy.
	Arena *Arena
}

// Create an empty BVH with the given branching factor.
func New(width int) *BVH {
	return &BVH{
		Root:   EmptyNode,
		Bounds: types.EmptyBBox(),
		Width:  width,
	}
}

// Install a new root, bounds and primitive count.
func (b *BVH) Set(root NodeRef, bounds types.BBox, numPrimitives int) {
	b.Root = root
	b.Bounds = bounds
	b.NumPrimitives = numPrimitives
}

// Reset the BVH to the empty state and drop its arena.
func (b *BVH) Clear() {
	b.Set(EmptyNode, types.EmptyBBox(), 0)
	b.Arena = nil
}

// Segment returns the segment id of the BVH arena or LocalSegment if the
// BVH has no arena.
func (b *BVH) Segment() uint32 {
	if b.Arena == nil {
		return LocalSegment
	}
	return b.Arena.Segment()
}

// Children returns the non-empty children of the node referenced by ref. The
// child references are resolved so they always name their segment.
func Children(space Space, ref NodeRef, width int, dst []Child) ([]Child, error) {
	if !ref.IsNode() {
		return dst, ErrInvalidRef
	}
	arena := space.Segment(ref.Segment())
	if arena == nil {
		return dst, ErrUnknownSegment
	}

	for i := 0; i < width; i++ {
		bounds, child := GetChild(arena, ref.Block(), i)
		if child.IsEmpty() {
			continue
		}
		dst = append(dst, Child{Bounds: bounds, Ref: child.Resolve(ref.Segment())})
	}
	return dst, nil
}

// A WalkFunc is invoked for every node and leaf reachable from a root with
// the bounds stored for it in its parent and its depth. Returning
// SkipSubtree from a node visit prunes its children.
type WalkFunc func(ref NodeRef, bounds types.BBox, depth int) error

// Walk performs a depth-first traversal of the hierarchy rooted at root. The
// root must name its segment.
func Walk(space Space, root NodeRef, rootBounds types.BBox, width int, fn WalkFunc) error {
	if root.IsEmpty() {
		return nil
	}
	if root.IsInvalid() {
		return ErrInvalidRef
	}
	return walk(space, root, rootBounds, width, 0, fn)
}

func walk(space Space, ref NodeRef, bounds types.BBox, width, depth int, fn WalkFunc) error {
	if err := fn(ref, bounds, depth); err == SkipSubtree {
		return nil
	} else if err != nil {
		return err
	}
	if ref.IsLeaf() {
		return nil
	}

	children, err := Children(space, ref, width, nil)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err = walk(space, child.Ref, child.Bounds, width, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Hierarchy statistics.
type Stats struct {
	Nodes      int
	Leaves     int
	LeafBlocks int
	MaxDepth   int
}

// Collect statistics for the hierarchy rooted at root.
func CollectStats(space Space, root NodeRef, width int) (Stats, error) {
	var stats Stats
	err := Walk(space, root, types.EmptyBBox(), width, func(ref NodeRef, _ types.BBox, depth int) error {
		if depth > stats.MaxDepth {
			stats.MaxDepth = depth
		}
		if ref.IsLeaf() {
			stats.Leaves++
			stats.LeafBlocks += ref.LeafBlocks()
		} else {
			stats.Nodes++
		}
		return nil
	})
	return stats, err
}
