package counting

import (
	"fmt"

	"github.com/zzzrenn/HeadCountGuard/internal/geometry"
)

// Criteria selects which part of a bounding box is compared against the
// counting line.
type Criteria string

const (
	// CriteriaCenter uses the box centroid.
	CriteriaCenter Criteria = "center"
	// CriteriaTop uses the midpoint of the top edge.
	CriteriaTop Criteria = "top"
	// CriteriaBottom uses the midpoint of the bottom edge.
	CriteriaBottom Criteria = "bottom"
	// CriteriaLeft uses the midpoint of the left edge.
	CriteriaLeft Criteria = "left"
	// CriteriaRight uses the midpoint of the right edge.
	CriteriaRight Criteria = "right"
	// CriteriaWholeBox requires all four corners to agree on a side before
	// the track's side is updated. While the box straddles the line the
	// side is treated as unchanged.
	CriteriaWholeBox Criteria = "whole_bbox"
)

// ParseCriteria validates a configuration string and returns the Criteria.
func ParseCriteria(s string) (Criteria, error) {
	switch c := Criteria(s); c {
	case CriteriaCenter, CriteriaTop, CriteriaBottom, CriteriaLeft, CriteriaRight, CriteriaWholeBox:
		return c, nil
	default:
		return "", fmt.Errorf("unknown crossing criteria %q", s)
	}
}

// referencePoint returns the normalized single reference point for the
// given box under every criteria except whole_bbox.
func (c Criteria) referencePoint(b geometry.Box, width, height float64) geometry.Point {
	var p geometry.Point
	switch c {
	case CriteriaTop:
		p = geometry.Point{X: b.X + b.W/2, Y: b.Y}
	case CriteriaBottom:
		p = geometry.Point{X: b.X + b.W/2, Y: b.Y + b.H}
	case CriteriaLeft:
		p = geometry.Point{X: b.X, Y: b.Y + b.H/2}
	case CriteriaRight:
		p = geometry.Point{X: b.X + b.W, Y: b.Y + b.H/2}
	default:
		p = b.Center()
	}
	return geometry.Point{X: p.X / width, Y: p.Y / height}
}

// corners returns all four box corners normalized to [0,1] coordinates.
func corners(b geometry.Box, width, height float64) [4]geometry.Point {
	pts := b.Corners()
	for i := range pts {
		pts[i] = geometry.Point{X: pts[i].X / width, Y: pts[i].Y / height}
	}
	return pts
}
