package types

import "github.com/chewxy/math32"

// An axis-aligned bounding box.
type BBox struct {
	Min Vec3
	Max Vec3
}

// EmptyBBox returns a box that contains nothing; extending it with any point
// or box yields that point or box.
func EmptyBBox() BBox {
	return BBox{
		Min: Splat(math32.Inf(1)),
		Max: Splat(math32.Inf(-1)),
	}
}

// Create a bbox that bounds all supplied points.
func BBoxFromPoints(points ...Vec3) BBox {
	b := EmptyBBox()
	for _, p := range points {
		b = b.ExtendPoint(p)
	}
	return b
}

// Empty reports whether min > max along any axis.
func (b BBox) Empty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Extend the box so it includes another box.
func (b BBox) Extend(o BBox) BBox {
	return BBox{Min: MinVec3(b.Min, o.Min), Max: MaxVec3(b.Max, o.Max)}
}

// Extend the box so it includes a point.
func (b BBox) ExtendPoint(p Vec3) BBox {
	return BBox{Min: MinVec3(b.Min, p), Max: MaxVec3(b.Max, p)}
}

// Overlaps reports whether two boxes share at least one point.
func (b BBox) Overlaps(o BBox) bool {
	for axis := 0; axis < 3; axis++ {
		if b.Axis(axis).Intersect(o.Axis(axis)).Empty() {
			return false
		}
	}
	return true
}

// Contains reports whether o lies entirely inside b. An empty o is contained
// in every box.
func (b BBox) Contains(o BBox) bool {
	if o.Empty() {
		return true
	}
	for axis := 0; axis < 3; axis++ {
		if !b.Axis(axis).Contains(o.Axis(axis)) {
			return false
		}
	}
	return true
}

// Size of the box along each axis.
func (b BBox) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Center2 returns min+max; it avoids a multiply when centroids are only
// compared against each other.
func (b BBox) Center2() Vec3 {
	return b.Min.Add(b.Max)
}

// Axis returns the extent of the box along a single axis.
func (b BBox) Axis(axis int) Interval {
	return Interval{Lower: b.Min[axis], Upper: b.Max[axis]}
}

// HalfArea returns half of the box surface area. Empty boxes have zero area.
func (b BBox) HalfArea() float32 {
	if b.Empty() {
		return 0
	}
	d := b.Size()
	return d[0]*d[1] + d[1]*d[2] + d[0]*d[2]
}

// BBoxFromAxes assembles a box from its per-axis extents.
func BBoxFromAxes(x, y, z Interval) BBox {
	return BBox{
		Min: Vec3{x.Lower, y.Lower, z.Lower},
		Max: Vec3{x.Upper, y.Upper, z.Upper},
	}
}
