package types

import "github.com/chewxy/math32"

// Interval is a closed 1D range [Lower, Upper]. An interval with Lower > Upper
// is empty.
type Interval struct {
	Lower, Upper float32
}

// EmptyInterval returns the identity element for Extend.
func EmptyInterval() Interval {
	return Interval{Lower: math32.Inf(1), Upper: math32.Inf(-1)}
}

func (i Interval) Empty() bool   { return i.Lower > i.Upper }
func (i Interval) Size() float32 { return i.Upper - i.Lower }

// Extend the interval so it includes v.
func (i Interval) Extend(v float32) Interval {
	return Interval{Lower: math32.Min(i.Lower, v), Upper: math32.Max(i.Upper, v)}
}

// Intersect returns the overlap of i and o; the result may be empty.
func (i Interval) Intersect(o Interval) Interval {
	return Interval{Lower: math32.Max(i.Lower, o.Lower), Upper: math32.Min(i.Upper, o.Upper)}
}

// Contains reports whether o lies inside i. An empty o is contained in
// every interval.
func (i Interval) Contains(o Interval) bool {
	return o.Empty() || (i.Lower <= o.Lower && o.Upper <= i.Upper)
}

func (i Interval) Add(o Interval) Interval {
	return Interval{Lower: i.Lower + o.Lower, Upper: i.Upper + o.Upper}
}

func (i Interval) Mul(o Interval) Interval {
	ll, lu := i.Lower*o.Lower, i.Lower*o.Upper
	ul, uu := i.Upper*o.Lower, i.Upper*o.Upper
	return Interval{
		Lower: math32.Min(math32.Min(ll, lu), math32.Min(ul, uu)),
		Upper: math32.Max(math32.Max(ll, lu), math32.Max(ul, uu)),
	}
}
