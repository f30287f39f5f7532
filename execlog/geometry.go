package execlog

import (
	"math"
	"sort"

	"github.com/sarchlab/itch/sim"
)

// Epsilon is the tolerance of geometric equality.
const Epsilon = 0.01

// IsEqual tells whether two lengths or coordinates are equal within Epsilon.
func IsEqual(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// NumericEquals compares two numbers with an optional tolerance that
// defaults to Epsilon.
func NumericEquals(a, b float64, epsilon ...float64) bool {
	eps := Epsilon
	if len(epsilon) > 0 {
		eps = epsilon[0]
	}

	return math.Abs(a-b) < eps
}

// BoundsOverlap tells whether two bounding boxes intersect. Boxes that only
// touch overlap.
func BoundsOverlap(a, b sim.Rect) bool {
	return a.Intersects(b)
}

// A Segment is a straight line between two points.
type Segment struct {
	From sim.Point `json:"from"`
	To   sim.Point `json:"to"`
}

// Length returns the length of the segment.
func (s Segment) Length() float64 {
	return distance(s.From, s.To)
}

// SegmentsOf converts pen lines to segments.
func SegmentsOf(lines []sim.PenLine) []Segment {
	segments := make([]Segment, len(lines))
	for i, l := range lines {
		segments[i] = Segment{From: l.From, To: l.To}
	}

	return segments
}

// A Square is a shape of four equal sides with equal diagonals.
type Square struct {
	Corners [4]sim.Point `json:"corners"`
	Side    float64      `json:"side"`
}

// A Triangle is a shape of three sides meeting at three corners.
type Triangle struct {
	Corners [3]sim.Point `json:"corners"`
}

func distance(a, b sim.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func samePoint(a, b sim.Point) bool {
	return IsEqual(a.X, b.X) && IsEqual(a.Y, b.Y)
}

// line identifies the infinite line a segment lies on.
type line struct {
	vertical  bool
	x         float64
	slope     float64
	intercept float64
}

func lineOf(s Segment) line {
	dx := s.To.X - s.From.X
	if IsEqual(dx, 0) {
		return line{vertical: true, x: (s.From.X + s.To.X) / 2}
	}

	slope := (s.To.Y - s.From.Y) / dx

	return line{slope: slope, intercept: s.From.Y - slope*s.From.X}
}

func (l line) same(other line) bool {
	if l.vertical != other.vertical {
		return false
	}

	if l.vertical {
		return IsEqual(l.x, other.x)
	}

	return IsEqual(l.slope, other.slope) && IsEqual(l.intercept, other.intercept)
}

// param projects a point onto the axis a line is parameterized by.
func (l line) param(p sim.Point) float64 {
	if l.vertical {
		return p.Y
	}

	return p.X
}

type span struct {
	from, to sim.Point
	lo, hi   float64
}

// MergeSegments merges segments that lie on the same line and overlap or
// share an endpoint. Segments shorter than Epsilon are dropped.
func MergeSegments(segments []Segment) []Segment {
	var (
		lines  []line
		groups [][]span
	)

	for _, s := range segments {
		if s.Length() < Epsilon {
			continue
		}

		l := lineOf(s)
		sp := span{from: s.From, to: s.To, lo: l.param(s.From), hi: l.param(s.To)}
		if sp.lo > sp.hi {
			sp.from, sp.to = sp.to, sp.from
			sp.lo, sp.hi = sp.hi, sp.lo
		}

		found := false
		for i := range lines {
			if lines[i].same(l) {
				groups[i] = append(groups[i], sp)
				found = true

				break
			}
		}

		if !found {
			lines = append(lines, l)
			groups = append(groups, []span{sp})
		}
	}

	var merged []Segment
	for _, group := range groups {
		merged = append(merged, mergeSpans(group)...)
	}

	return merged
}

func mergeSpans(spans []span) []Segment {
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].lo < spans[j].lo
	})

	var merged []Segment

	cur := spans[0]
	for _, next := range spans[1:] {
		if next.lo <= cur.hi+Epsilon {
			if next.hi > cur.hi {
				cur.hi = next.hi
				cur.to = next.to
			}

			continue
		}

		merged = append(merged, Segment{From: cur.from, To: cur.to})
		cur = next
	}

	return append(merged, Segment{From: cur.from, To: cur.to})
}

// corners collects the distinct endpoints of some segments.
func corners(segments ...Segment) []sim.Point {
	var points []sim.Point

	for _, s := range segments {
		for _, p := range []sim.Point{s.From, s.To} {
			known := false
			for _, q := range points {
				if samePoint(p, q) {
					known = true
					break
				}
			}

			if !known {
				points = append(points, p)
			}
		}
	}

	return points
}

// Squares finds every four segments that form a square.
func Squares(segments []Segment) []Square {
	var squares []Square

	n := len(segments)
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			for c := b + 1; c < n; c++ {
				for d := c + 1; d < n; d++ {
					sq, ok := squareOf(segments[a], segments[b], segments[c], segments[d])
					if ok {
						squares = append(squares, sq)
					}
				}
			}
		}
	}

	return squares
}

func squareOf(segments ...Segment) (Square, bool) {
	points := corners(segments...)
	if len(points) != 4 {
		return Square{}, false
	}

	var ds []float64
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			ds = append(ds, distance(points[i], points[j]))
		}
	}

	sort.Float64s(ds)

	side := ds[0]
	if side < Epsilon {
		return Square{}, false
	}

	for _, d := range ds[1:4] {
		if !IsEqual(d, side) {
			return Square{}, false
		}
	}

	diagonal := side * math.Sqrt2
	if !IsEqual(ds[4], diagonal) || !IsEqual(ds[5], diagonal) {
		return Square{}, false
	}

	for _, s := range segments {
		if !IsEqual(s.Length(), side) {
			return Square{}, false
		}
	}

	sq := Square{Side: side}
	copy(sq.Corners[:], points)

	return sq, true
}

// Triangles finds every three segments that form a triangle.
func Triangles(segments []Segment) []Triangle {
	var triangles []Triangle

	n := len(segments)
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			for c := b + 1; c < n; c++ {
				tri, ok := triangleOf(segments[a], segments[b], segments[c])
				if ok {
					triangles = append(triangles, tri)
				}
			}
		}
	}

	return triangles
}

func triangleOf(segments ...Segment) (Triangle, bool) {
	points := corners(segments...)
	if len(points) != 3 {
		return Triangle{}, false
	}

	p, q, r := points[0], points[1], points[2]

	area := math.Abs((q.X-p.X)*(r.Y-p.Y)-(r.X-p.X)*(q.Y-p.Y)) / 2
	if area < Epsilon {
		return Triangle{}, false
	}

	tri := Triangle{}
	copy(tri.Corners[:], points)

	return tri, true
}
