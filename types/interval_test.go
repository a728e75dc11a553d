package types

import "testing"

func TestIntervalArithmetic(t *testing.T) {
	type spec struct {
		a, b   Interval
		expAdd Interval
		expMul Interval
	}
	specs := []spec{
		{Interval{1, 2}, Interval{3, 5}, Interval{4, 7}, Interval{3, 10}},
		{Interval{-2, 1}, Interval{-1, 3}, Interval{-3, 4}, Interval{-6, 3}},
		{Interval{-3, -1}, Interval{2, 2}, Interval{-1, 1}, Interval{-6, -2}},
		// A zero-width factor scales the other interval.
		{Interval{0, 0}, Interval{-1, 4}, Interval{-1, 4}, Interval{0, 0}},
	}

	for specIndex, s := range specs {
		if got := s.a.Add(s.b); got != s.expAdd {
			t.Fatalf("[spec %d] expected Add to return %v; got %v", specIndex, s.expAdd, got)
		}
		if got := s.a.Mul(s.b); got != s.expMul {
			t.Fatalf("[spec %d] expected Mul to return %v; got %v", specIndex, s.expMul, got)
		}
	}
}

func TestEmptyIntervalIsExtendIdentity(t *testing.T) {
	empty := EmptyInterval()
	if !empty.Empty() {
		t.Fatal("expected empty interval to report Empty")
	}
	if got := empty.Extend(2).Extend(-1); got != (Interval{-1, 2}) {
		t.Fatalf("expected extend to return [-1, 2]; got %v", got)
	}

	i := Interval{-1, 4}
	if got := i.Intersect(Interval{5, 6}); !got.Empty() {
		t.Fatalf("expected disjoint intersection to be empty; got %v", got)
	}
	if got := i.Intersect(Interval{0, 10}); got != (Interval{0, 4}) {
		t.Fatalf("expected intersection [0, 4]; got %v", got)
	}
	if i.Size() != 5 {
		t.Fatalf("expected size 5; got %v", i.Size())
	}
}

func TestIntervalContains(t *testing.T) {
	outer := Interval{0, 10}
	type spec struct {
		in  Interval
		exp bool
	}
	specs := []spec{
		{Interval{1, 9}, true},
		{Interval{0, 10}, true},
		{Interval{-1, 9}, false},
		{Interval{1, 11}, false},
		{EmptyInterval(), true},
	}
	for specIndex, s := range specs {
		if got := outer.Contains(s.in); got != s.exp {
			t.Fatalf("[spec %d] expected Contains to return %t; got %t", specIndex, s.exp, got)
		}
	}
}
