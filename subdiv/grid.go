package subdiv

import "github.com/achilleasa/accel/types"

// GridRange is an inclusive range of grid samples [UStart, UEnd] x
// [VStart, VEnd]. Adjacent ranges share their boundary samples.
type GridRange struct {
	UStart, UEnd int
	VStart, VEnd int
}

// FullRange returns the range covering a uRes x vRes grid.
func FullRange(uRes, vRes int) GridRange {
	return GridRange{UStart: 0, UEnd: uRes - 1, VStart: 0, VEnd: vRes - 1}
}

func (r GridRange) USize() int { return r.UEnd - r.UStart + 1 }
func (r GridRange) VSize() int { return r.VEnd - r.VStart + 1 }

// IsLeaf returns true if the range fits in a single 3x3 sample leaf.
func (r GridRange) IsLeaf() bool {
	return r.USize() <= 3 && r.VSize() <= 3
}

// Split the range in two by bisecting its longer side.
func (r GridRange) Split() (GridRange, GridRange) {
	first, second := r, r
	if r.UEnd-r.UStart >= r.VEnd-r.VStart {
		mid := (r.UStart + r.UEnd) / 2
		first.UEnd, second.UStart = mid, mid
	} else {
		mid := (r.VStart + r.VEnd) / 2
		first.VEnd, second.VStart = mid, mid
	}
	return first, second
}

// SplitIntoSubRanges splits a non-leaf range into 2 to 4 sub-ranges and
// returns their count.
func (r GridRange) SplitIntoSubRanges(dst *[4]GridRange) int {
	children := 0
	first, second := r.Split()
	for _, half := range [2]GridRange{first, second} {
		if half.IsLeaf() {
			dst[children] = half
			children++
			continue
		}
		dst[children], dst[children+1] = half.Split()
		children += 2
	}
	return children
}

// The Patch interface is implemented by parametric surfaces that can be
// sampled into a grid.
type Patch interface {
	// The number of grid samples along u and v.
	Resolution() (uRes, vRes int)

	// Eval returns the surface position at (u, v) in [0, 1]^2.
	Eval(u, v float32) types.Vec3
}

// Grid holds the evaluated samples of a patch in row-major order.
type Grid struct {
	URes, VRes int
	P          []types.Vec3
	UV         []types.Vec2
}

// Reset resizes the grid reusing its buffers when possible.
func (g *Grid) Reset(uRes, vRes int) {
	g.URes, g.VRes = uRes, vRes
	n := uRes * vRes
	if cap(g.P) < n {
		g.P = make([]types.Vec3, n)
		g.UV = make([]types.Vec2, n)
	}
	g.P = g.P[:n]
	g.UV = g.UV[:n]
}

// Index returns the offset of sample (u, v).
func (g *Grid) Index(u, v int) int {
	return v*g.URes + u
}

// Evaluate samples p on a uniform grid.
func Evaluate(p Patch, g *Grid) error {
	uRes, vRes := p.Resolution()
	if uRes < 2 || vRes < 2 {
		return ErrGridTooSmall
	}

	g.Reset(uRes, vRes)
	for v := 0; v < vRes; v++ {
		fv := float32(v) / float32(vRes-1)
		for u := 0; u < uRes; u++ {
			fu := float32(u) / float32(uRes-1)
			index := g.Index(u, v)
			g.P[index] = p.Eval(fu, fv)
			g.UV[index] = types.XY(fu, fv)
		}
	}
	return nil
}
