package tesscache

import (
	"sync"

	"github.com/achilleasa/accel/bvh"
	"github.com/achilleasa/accel/subdiv"
	"github.com/achilleasa/accel/types"
)

// The segment id shared by all cache arenas. A subtree is always resolved
// through its own arena so the ids never need to be unique.
const subtreeSegment = 1

// Subtree is a tessellated patch hierarchy stored in a cache arena.
type Subtree struct {
	Root   bvh.NodeRef
	Bounds types.BBox
	Arena  *bvh.Arena
}

// Segment implements bvh.Space.
func (s Subtree) Segment(id uint32) *bvh.Arena {
	if s.Arena != nil && s.Arena.Segment() == id {
		return s.Arena
	}
	return nil
}

// Quads decodes the quad leaves of the subtree in traversal order.
func (s Subtree) Quads() ([]subdiv.Quad2x2, error) {
	var quads []subdiv.Quad2x2
	err := bvh.Walk(s, s.Root, s.Bounds, subdiv.NodeWidth, func(ref bvh.NodeRef, _ types.BBox, _ int) error {
		if !ref.IsLeaf() {
			return nil
		}
		q, err := subdiv.ReadQuadLeaf(s.Arena, ref)
		if err != nil {
			return err
		}
		quads = append(quads, q)
		return nil
	})
	return quads, err
}

// CacheTag describes the contents of a shared cache slot. Readers hold the
// read lock while they use the slot arena; a rebuild holds the write lock.
type CacheTag struct {
	mutex sync.RWMutex

	valid   bool
	tag     uint64
	version uint64
	root    bvh.NodeRef
	bounds  types.BBox
	arena   *bvh.Arena
}

func (t *CacheTag) match(tag, version uint64) bool {
	return t.valid && t.tag == tag && t.version == version
}

func (t *CacheTag) subtree() Subtree {
	return Subtree{Root: t.root, Bounds: t.bounds, Arena: t.arena}
}
