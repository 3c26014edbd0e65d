// Package geometry provides the 2D primitives used for line-crossing
// detection: points, boxes, the counting line with its side classification,
// and polygon containment for region-of-interest gating.
package geometry

import (
	"errors"
	"fmt"
)

// ErrDegenerateLine is returned when a line is constructed from coincident endpoints.
var ErrDegenerateLine = errors.New("line endpoints must be distinct")

// Side identifies which region of the counting line a point occupies.
type Side int

const (
	// SideUnknown means the side could not be determined (point exactly on
	// the line, or a box straddling it).
	SideUnknown Side = iota
	// SideIn is the region configured as "in".
	SideIn
	// SideOut is the region opposite the configured "in" side.
	SideOut
)

// String returns a human-readable side name.
func (s Side) String() string {
	switch s {
	case SideIn:
		return "in"
	case SideOut:
		return "out"
	default:
		return "unknown"
	}
}

// Point is a 2D point. The counting core works in normalized [0,1]
// coordinates; boxes and drawing work in pixels. The type is unit-agnostic.
type Point struct {
	X float64
	Y float64
}

// Box is an axis-aligned bounding box given as top-left corner plus size,
// in pixel coordinates with y growing downward.
type Box struct {
	X float64
	Y float64
	W float64
	H float64
}

// Center returns the centroid of the box.
func (b Box) Center() Point {
	return Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Corners returns the four corners in top-left, top-right, bottom-right,
// bottom-left order.
func (b Box) Corners() [4]Point {
	return [4]Point{
		{X: b.X, Y: b.Y},
		{X: b.X + b.W, Y: b.Y},
		{X: b.X + b.W, Y: b.Y + b.H},
		{X: b.X, Y: b.Y + b.H},
	}
}

// IoU returns the intersection-over-union of two boxes, 0 when they do not
// overlap or either box is empty.
func (b Box) IoU(o Box) float64 {
	ix := max(b.X, o.X)
	iy := max(b.Y, o.Y)
	iw := min(b.X+b.W, o.X+o.W) - ix
	ih := min(b.Y+b.H, o.Y+o.H) - iy
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := b.W*b.H + o.W*o.H - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Line is a counting line: a segment with a designated "in" side.
//
// Endpoints are stored ordered by ascending y (top to bottom in image
// coordinates) so that side classification does not depend on the order the
// endpoints were configured in. Exactly-horizontal lines are ordered by
// ascending x instead, which makes "left" select the region below the line.
type Line struct {
	a      Point
	b      Point
	inLeft bool
}

// NewLine builds a Line from two endpoints and the configured in side
// ("left" or "right", relative to the line walked from its upper endpoint).
// For horizontal lines "left" means below the line.
func NewLine(a, b Point, inSide string) (Line, error) {
	if a == b {
		return Line{}, ErrDegenerateLine
	}

	var inLeft bool
	switch inSide {
	case "left":
		inLeft = true
	case "right":
		inLeft = false
	default:
		return Line{}, fmt.Errorf("in_side must be either %q or %q, got %q", "left", "right", inSide)
	}

	// Order endpoints top to bottom. Horizontal lines have no top endpoint,
	// so order them left to right; with y growing downward this pins "left"
	// to the region below the line regardless of configuration order.
	if a.Y > b.Y || (a.Y == b.Y && a.X > b.X) {
		a, b = b, a
	}

	return Line{a: a, b: b, inLeft: inLeft}, nil
}

// Endpoints returns the ordered endpoints of the line.
func (l Line) Endpoints() (Point, Point) {
	return l.a, l.b
}

// InOnLeft reports whether the configured in side is the left side of the
// ordered segment.
func (l Line) InOnLeft() bool {
	return l.inLeft
}

// Side classifies which side of the line the point is on. It returns
// SideUnknown when the point lies exactly on the infinite line through the
// segment; callers decide how to resolve that (the decision engine reuses
// the previous known side).
func (l Line) Side(p Point) Side {
	d := l.cross(p)
	if d == 0 {
		return SideUnknown
	}

	// With endpoints ordered top to bottom and y growing downward, a
	// positive cross product places the point on the viewer's left.
	onLeft := d > 0
	if onLeft == l.inLeft {
		return SideIn
	}
	return SideOut
}

// cross returns the 2D cross product of the line's direction vector and the
// vector from the line start to p.
func (l Line) cross(p Point) float64 {
	dx := l.b.X - l.a.X
	dy := l.b.Y - l.a.Y
	return dx*(p.Y-l.a.Y) - dy*(p.X-l.a.X)
}

// SegmentCrosses reports whether the segment p-q intersects the line
// segment. It is used to confirm that a track's frame-to-frame path actually
// passed through the counting line, as opposed to the side label flipping
// from detection noise.
func (l Line) SegmentCrosses(p, q Point) bool {
	return segmentsIntersect(l.a, l.b, p, q)
}

// segmentsIntersect is the standard orientation-based segment intersection
// test, including the collinear overlap cases.
func segmentsIntersect(a, b, c, d Point) bool {
	d1 := crossABC(c, d, a)
	d2 := crossABC(c, d, b)
	d3 := crossABC(a, b, c)
	d4 := crossABC(a, b, d)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	if d1 == 0 && onSegment(c, d, a) {
		return true
	}
	if d2 == 0 && onSegment(c, d, b) {
		return true
	}
	if d3 == 0 && onSegment(a, b, c) {
		return true
	}
	if d4 == 0 && onSegment(a, b, d) {
		return true
	}

	return false
}

// crossABC returns the cross product of (b-a) and (c-a).
func crossABC(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// onSegment reports whether p, known to be collinear with segment a-b, lies
// within its bounding box.
func onSegment(a, b, p Point) bool {
	return min(a.X, b.X) <= p.X && p.X <= max(a.X, b.X) &&
		min(a.Y, b.Y) <= p.Y && p.Y <= max(a.Y, b.Y)
}
