package bvh

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// The size of an arena block in bytes. Nodes and leaves are always
// allocated in whole blocks.
const BlockSize = 64

// Arena is a fixed-capacity block allocator. Allocation is a lock-free bump
// of a shared cursor so many builder goroutines can allocate concurrently.
// The capacity is chosen up front from an estimate; running out of space
// fails the allocation instead of growing the arena since a reallocation
// would invalidate blocks that other goroutines are still writing to.
type Arena struct {
	data    []byte
	next    atomic.Int64
	segment uint32
}

// Create an arena with room for the given number of blocks.
func NewArena(blocks int) *Arena {
	if blocks < 0 {
		blocks = 0
	}
	return &Arena{
		data: make([]byte, blocks*BlockSize),
	}
}

// EstimateBlocks returns the number of blocks needed to hold the given
// number of bytes.
func EstimateBlocks(bytes int) int {
	return (bytes + BlockSize - 1) / BlockSize
}

// Segment returns the segment id that references into this arena carry.
func (a *Arena) Segment() uint32 {
	return a.segment
}

// Assign the segment id for this arena.
func (a *Arena) SetSegment(segment uint32) {
	a.segment = segment
}

// Capacity returns the total number of blocks.
func (a *Arena) Capacity() int {
	return len(a.data) / BlockSize
}

// Used returns the number of allocated blocks.
func (a *Arena) Used() int {
	used := int(a.next.Load())
	if capacity := a.Capacity(); used > capacity {
		return capacity
	}
	return used
}

// Alloc reserves a contiguous range of blocks and returns the index of the
// first one.
func (a *Arena) Alloc(blocks int) (int, error) {
	end := a.next.Add(int64(blocks))
	if end > int64(a.Capacity()) {
		return 0, errors.Wrapf(ErrArenaExhausted, "requested %d blocks; capacity %d", blocks, a.Capacity())
	}
	return int(end) - blocks, nil
}

// Reset releases all allocations. Blocks are zeroed lazily by their next
// writer.
func (a *Arena) Reset() {
	a.next.Store(0)
}

// Blocks returns the bytes backing a block range.
func (a *Arena) Blocks(first, count int) []byte {
	return a.data[first*BlockSize : (first+count)*BlockSize]
}

// Bytes returns the bytes of all allocated blocks.
func (a *Arena) Bytes() []byte {
	return a.data[:a.Used()*BlockSize]
}

// CopyFrom replaces the contents of this arena with the allocated blocks of
// src. The arena must be large enough to hold them.
func (a *Arena) CopyFrom(src *Arena) error {
	used := src.Used()
	if used > a.Capacity() {
		return errors.Wrapf(ErrArenaExhausted, "copy needs %d blocks; capacity %d", used, a.Capacity())
	}
	copy(a.data, src.data[:used*BlockSize])
	a.next.Store(int64(used))
	return nil
}
