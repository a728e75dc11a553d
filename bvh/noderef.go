package bvh

import "fmt"

// NodeRef is a tagged 64-bit reference to a node, a leaf, or one of the two
// sentinels. The layout is fixed because cached subtrees are copied as raw
// blocks and their references are reinterpreted after the copy:
//
//	bits 63..40  segment id (0 = same segment as the referencing node)
//	bits 39..4   block index inside the segment arena
//	bit  3       leaf flag
//	bits 2..0    number of blocks occupied by a leaf (1..7)
//
// Internal nodes have all four tag bits cleared. EmptyNode is a leaf with
// zero blocks at address 0 and InvalidNode has every bit set.
type NodeRef uint64

const (
	tagBits      = 4
	leafFlag     = 8
	itemsMask    = 7
	tagMask      = 15
	blockBits    = 36
	blockMask    = 1<<blockBits - 1
	segmentShift = tagBits + blockBits

	// The max number of blocks that can be packed into a leaf reference.
	MaxLeafBlocks = itemsMask

	// The max segment id that can be encoded.
	MaxSegment = 1<<(64-segmentShift) - 1

	// The max block index that can be encoded.
	MaxBlock = blockMask

	// Segment id 0 refers to the segment of the node that stores the ref.
	LocalSegment uint32 = 0
)

const (
	EmptyNode   NodeRef = leafFlag
	InvalidNode NodeRef = ^NodeRef(0)
)

// Encode a reference to an internal node.
func EncodeNode(segment uint32, block int) NodeRef {
	return NodeRef(uint64(segment)<<segmentShift | uint64(block)<<tagBits)
}

// Encode a reference to a leaf spanning the given number of blocks.
func EncodeLeaf(segment uint32, block, blocks int) NodeRef {
	return NodeRef(uint64(segment)<<segmentShift | uint64(block)<<tagBits | leafFlag | uint64(blocks&itemsMask))
}

func (r NodeRef) IsEmpty() bool   { return r == EmptyNode }
func (r NodeRef) IsInvalid() bool { return r == InvalidNode }

// IsLeaf returns true for leaf references; the sentinels are not leaves.
func (r NodeRef) IsLeaf() bool {
	return r&leafFlag != 0 && r != EmptyNode && r != InvalidNode
}

// IsNode returns true for internal node references.
func (r NodeRef) IsNode() bool {
	return r&tagMask == 0
}

// LeafBlocks returns the number of blocks occupied by a leaf.
func (r NodeRef) LeafBlocks() int {
	return int(r & itemsMask)
}

// Segment returns the segment id encoded in the reference.
func (r NodeRef) Segment() uint32 {
	return uint32(r >> segmentShift)
}

// Block returns the block index encoded in the reference.
func (r NodeRef) Block() int {
	return int((r >> tagBits) & blockMask)
}

// InSegment returns a copy of the reference bound to the given segment.
// Sentinels are returned unchanged.
func (r NodeRef) InSegment(segment uint32) NodeRef {
	if r == EmptyNode || r == InvalidNode {
		return r
	}
	return NodeRef(uint64(r)&(1<<segmentShift-1) | uint64(segment)<<segmentShift)
}

// Relative strips the segment id from the reference.
func (r NodeRef) Relative() NodeRef {
	return r.InSegment(LocalSegment)
}

// Resolve binds a segment-relative reference to the segment of the node
// that stores it. References that name a segment are returned unchanged.
func (r NodeRef) Resolve(home uint32) NodeRef {
	if r.Segment() != LocalSegment {
		return r
	}
	return r.InSegment(home)
}

// Rebase shifts the address of an internal node or leaf reference by a
// signed number of blocks. The leaf block count in the low bits is not
// affected since the delta is applied above the tag bits. Sentinels are
// returned unchanged.
func (r NodeRef) Rebase(deltaBlocks int64) NodeRef {
	if r == EmptyNode || r == InvalidNode {
		return r
	}
	return NodeRef(int64(r) + deltaBlocks<<tagBits)
}

// Less orders references by their raw encoded value.
func (r NodeRef) Less(o NodeRef) bool {
	return r < o
}

func (r NodeRef) String() string {
	switch {
	case r == EmptyNode:
		return "empty"
	case r == InvalidNode:
		return "invalid"
	case r.IsLeaf():
		return fmt.Sprintf("leaf(seg=%d, block=%d, blocks=%d)", r.Segment(), r.Block(), r.LeafBlocks())
	}
	return fmt.Sprintf("node(seg=%d, block=%d)", r.Segment(), r.Block())
}
