package types

import "testing"

func TestEmptyBBox(t *testing.T) {
	empty := EmptyBBox()
	if !empty.Empty() {
		t.Fatal("expected empty box to report Empty")
	}
	if empty.HalfArea() != 0 {
		t.Fatalf("expected empty box to have zero area; got %v", empty.HalfArea())
	}

	b := BBox{Min: XYZ(-1, 0, 2), Max: XYZ(1, 3, 4)}
	if got := empty.Extend(b); got != b {
		t.Fatalf("expected extend with empty to return %v; got %v", b, got)
	}
	if !b.Contains(empty) {
		t.Fatal("expected every box to contain the empty box")
	}
	if empty.Overlaps(b) {
		t.Fatal("expected empty box not to overlap anything")
	}
}

func TestBBoxFromPoints(t *testing.T) {
	b := BBoxFromPoints(XYZ(1, 5, -2), XYZ(-3, 2, 0), XYZ(0, 0, 7))
	exp := BBox{Min: XYZ(-3, 0, -2), Max: XYZ(1, 5, 7)}
	if b != exp {
		t.Fatalf("expected %v; got %v", exp, b)
	}
	if got := b.Center2(); got != XYZ(-2, 5, 5) {
		t.Fatalf("expected doubled center (-2, 5, 5); got %v", got)
	}
	if got := b.Axis(1); got != (Interval{0, 5}) {
		t.Fatalf("expected y extent [0, 5]; got %v", got)
	}
}

func TestBBoxArea(t *testing.T) {
	type spec struct {
		box     BBox
		expHalf float32
	}
	specs := []spec{
		{BBox{Min: XYZ(0, 0, 0), Max: XYZ(1, 1, 1)}, 3},
		{BBox{Min: XYZ(0, 0, 0), Max: XYZ(2, 3, 4)}, 26},
		// Flat boxes still have area.
		{BBox{Min: XYZ(0, 0, 0), Max: XYZ(2, 3, 0)}, 6},
		{BBox{Min: XYZ(1, 1, 1), Max: XYZ(1, 1, 1)}, 0},
	}
	for specIndex, s := range specs {
		if got := s.box.HalfArea(); got != s.expHalf {
			t.Fatalf("[spec %d] expected half area %v; got %v", specIndex, s.expHalf, got)
		}
	}
}

func TestBBoxOverlap(t *testing.T) {
	a := BBox{Min: XYZ(0, 0, 0), Max: XYZ(2, 2, 2)}
	type spec struct {
		b           BBox
		expOverlap  bool
		expContains bool
	}
	specs := []spec{
		{BBox{Min: XYZ(1, 1, 1), Max: XYZ(3, 3, 3)}, true, false},
		{BBox{Min: XYZ(0.5, 0.5, 0.5), Max: XYZ(1, 1, 1)}, true, true},
		// Touching faces overlap.
		{BBox{Min: XYZ(2, 0, 0), Max: XYZ(3, 2, 2)}, true, false},
		{BBox{Min: XYZ(2.5, 0, 0), Max: XYZ(3, 2, 2)}, false, false},
	}
	for specIndex, s := range specs {
		if got := a.Overlaps(s.b); got != s.expOverlap {
			t.Fatalf("[spec %d] expected Overlaps to return %t; got %t", specIndex, s.expOverlap, got)
		}
		if got := a.Contains(s.b); got != s.expContains {
			t.Fatalf("[spec %d] expected Contains to return %t; got %t", specIndex, s.expContains, got)
		}
	}
}

func TestBBoxFromAxes(t *testing.T) {
	b := BBox{Min: XYZ(-1, 0, 2), Max: XYZ(1, 3, 4)}
	if got := BBoxFromAxes(b.Axis(0), b.Axis(1), b.Axis(2)); got != b {
		t.Fatalf("expected axes to reassemble %v; got %v", b, got)
	}
	if got := BBoxFromAxes(Interval{0, 1}, EmptyInterval(), Interval{0, 1}); !got.Empty() {
		t.Fatalf("expected an empty axis to yield an empty box; got %v", got)
	}
}
