package subdiv

import (
	"encoding/binary"
	"math"

	"github.com/achilleasa/accel/bvh"
	"github.com/achilleasa/accel/types"
)

const (
	// Blocks occupied by a quad leaf: 9 positions followed by 9 uvs.
	QuadLeafBlocks = 3

	// Width of subtree nodes.
	NodeWidth = 4
)

// Quad2x2 is a 3x3 neighbourhood of grid samples forming 2x2 quads.
type Quad2x2 struct {
	P  [3][3]types.Vec3
	UV [3][3]types.Vec2
}

// Bounds returns the bounds of the sample positions.
func (q *Quad2x2) Bounds() types.BBox {
	bounds := types.EmptyBBox()
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			bounds = bounds.ExtendPoint(q.P[y][x])
		}
	}
	return bounds
}

// Load the samples of a leaf range. Samples outside the range replicate
// the last valid column and row.
func (q *Quad2x2) load(g *Grid, r GridRange) {
	uSize, vSize := r.USize(), r.VSize()
	for y := 0; y < 3; y++ {
		v := r.VStart + min(y, vSize-1)
		for x := 0; x < 3; x++ {
			index := g.Index(r.UStart+min(x, uSize-1), v)
			q.P[y][x] = g.P[index]
			q.UV[y][x] = g.UV[index]
		}
	}
}

func (q *Quad2x2) write(data []byte) {
	le := binary.LittleEndian
	offset := 0
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			for c := 0; c < 3; c++ {
				le.PutUint32(data[offset:], math.Float32bits(q.P[y][x][c]))
				offset += 4
			}
		}
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			for c := 0; c < 2; c++ {
				le.PutUint32(data[offset:], math.Float32bits(q.UV[y][x][c]))
				offset += 4
			}
		}
	}
}

func (q *Quad2x2) read(data []byte) {
	le := binary.LittleEndian
	offset := 0
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			for c := 0; c < 3; c++ {
				q.P[y][x][c] = math.Float32frombits(le.Uint32(data[offset:]))
				offset += 4
			}
		}
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			for c := 0; c < 2; c++ {
				q.UV[y][x][c] = math.Float32frombits(le.Uint32(data[offset:]))
				offset += 4
			}
		}
	}
}

// ReadQuadLeaf decodes the quad leaf referenced by leaf.
func ReadQuadLeaf(a *bvh.Arena, leaf bvh.NodeRef) (Quad2x2, error) {
	var q Quad2x2
	if !leaf.IsLeaf() || leaf.LeafBlocks() != QuadLeafBlocks {
		return q, ErrNotQuadLeaf
	}
	q.read(a.Blocks(leaf.Block(), QuadLeafBlocks))
	return q, nil
}
