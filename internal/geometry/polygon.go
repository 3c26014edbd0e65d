package geometry

// Polygon is a closed region given by its vertices in order. It is used for
// region-of-interest gating: crossings outside the polygon are ignored.
type Polygon []Point

// Contains reports whether the point is inside the polygon using the ray
// casting rule. Polygons with fewer than three vertices contain nothing.
// Points exactly on an edge may resolve to either side; the counting rules
// do not depend on edge-exact containment.
func (pg Polygon) Contains(p Point) bool {
	if len(pg) < 3 {
		return false
	}

	inside := false
	j := len(pg) - 1
	for i := 0; i < len(pg); i++ {
		vi, vj := pg[i], pg[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) {
			xCross := vj.X + (p.Y-vj.Y)*(vi.X-vj.X)/(vi.Y-vj.Y)
			if p.X < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
