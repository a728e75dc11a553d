package builder

import (
	"github.com/achilleasa/accel/types"
	"github.com/chewxy/math32"
)

const (
	// Upper bound for the number of bins per axis.
	maxBins = 32

	// Axes whose centroid extent falls below this threshold are not binned.
	minBinExtent float32 = 1e-34
)

// Maps primitive centroids to bin indices along each axis.
type binMapping struct {
	num   int
	ofs   types.Vec3
	scale types.Vec3
}

func newBinMapping(pinfo PrimInfo) binMapping {
	num := int(4.0 + 0.05*float32(pinfo.Size()))
	if num > maxBins {
		num = maxBins
	}

	m := binMapping{num: num, ofs: pinfo.CentBounds.Min}
	for axis := 0; axis < 3; axis++ {
		if extent := pinfo.CentBounds.Axis(axis).Size(); extent > minBinExtent {
			m.scale[axis] = 0.99 * float32(num) / extent
		}
	}
	return m
}

// Returns true if centroids along axis can be separated.
func (m binMapping) valid(axis int) bool {
	return m.scale[axis] > 0
}

func (m binMapping) binOf(center2 types.Vec3, axis int) int {
	bin := int(math32.Floor((center2[axis] - m.ofs[axis]) * m.scale[axis]))
	if bin < 0 {
		return 0
	}
	if bin >= m.num {
		return m.num - 1
	}
	return bin
}

// A candidate partitioning: items whose bin along axis is < pos go left.
type split struct {
	axis int
	pos  int
	cost float32

	mapping binMapping
}

func invalidSplit() split {
	return split{axis: -1, cost: math32.Inf(1)}
}

func (s split) valid() bool {
	return s.axis >= 0
}

// Collects per-bin bounds and counts for all three axes.
type binner struct {
	bounds [maxBins][3]types.BBox
	counts [maxBins][3]int
}

func (b *binner) reset(num int) {
	for i := 0; i < num; i++ {
		for axis := 0; axis < 3; axis++ {
			b.bounds[i][axis] = types.EmptyBBox()
			b.counts[i][axis] = 0
		}
	}
}

func (b *binner) bin(prims []PrimRef, m binMapping) {
	b.reset(m.num)
	for _, prim := range prims {
		c := prim.Bounds.Center2()
		for axis := 0; axis < 3; axis++ {
			bin := m.binOf(c, axis)
			b.bounds[bin][axis] = b.bounds[bin][axis].Extend(prim.Bounds)
			b.counts[bin][axis]++
		}
	}
}

// Sweep the bins and return the split with the lowest cost. Candidates are
// evaluated in x, y, z order with ascending positions and only a strictly
// lower cost replaces the current best so results are deterministic.
// Positions leaving one side empty are never selected.
func (b *binner) best(m binMapping, s Settings) split {
	var (
		rAreas  [maxBins]float32
		rCounts [maxBins]int
		best    = invalidSplit()
	)

	for axis := 0; axis < 3; axis++ {
		if !m.valid(axis) {
			continue
		}

		rBounds := types.EmptyBBox()
		rCount := 0
		for i := m.num - 1; i > 0; i-- {
			rBounds = rBounds.Extend(b.bounds[i][axis])
			rCount += b.counts[i][axis]
			rAreas[i] = rBounds.HalfArea()
			rCounts[i] = rCount
		}

		lBounds := types.EmptyBBox()
		lCount := 0
		for pos := 1; pos < m.num; pos++ {
			lBounds = lBounds.Extend(b.bounds[pos-1][axis])
			lCount += b.counts[pos-1][axis]
			if lCount == 0 || rCounts[pos] == 0 {
				continue
			}

			cost := lBounds.HalfArea()*s.blocks(lCount) + rAreas[pos]*s.blocks(rCounts[pos])
			if cost < best.cost {
				best = split{axis: axis, pos: pos, cost: cost, mapping: m}
			}
		}
	}
	return best
}

// Find the best binned split for the record.
func findSplit(prims []PrimRef, rec BuildRecord, s Settings) split {
	if rec.Size() < 2 {
		return invalidSplit()
	}

	m := newBinMapping(rec.PrimInfo)
	var b binner
	b.bin(prims[rec.Begin:rec.End], m)
	return b.best(m, s)
}

// Reorder the record's items in place so that the left partition comes
// first and return the information for both halves.
func partition(prims []PrimRef, rec BuildRecord, sp split) (left, right PrimInfo) {
	left, right = EmptyPrimInfo(), EmptyPrimInfo()

	l, r := rec.Begin, rec.End-1
	for l <= r {
		if sp.mapping.binOf(prims[l].Bounds.Center2(), sp.axis) < sp.pos {
			left.Add(prims[l].Bounds)
			l++
			continue
		}
		right.Add(prims[l].Bounds)
		prims[l], prims[r] = prims[r], prims[l]
		r--
	}

	left.Begin, left.End = rec.Begin, l
	right.Begin, right.End = l, rec.End
	return left, right
}

// Split the record at its midpoint keeping the current item order. Used
// when no binned split separates the items.
func splitByCount(prims []PrimRef, rec BuildRecord) (left, right PrimInfo) {
	mid := (rec.Begin + rec.End) / 2
	left = sequentialPrimInfo(prims[rec.Begin:mid], rec.Begin)
	right = sequentialPrimInfo(prims[mid:rec.End], mid)
	return left, right
}
