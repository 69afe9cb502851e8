package geometry

import "math"

// Orientation classifies the turn p→q→r: 0 collinear, 1 clockwise,
// 2 counter-clockwise.
func Orientation(p, q, r Point) int {
	val := (q.Y-p.Y)*(r.X-q.X) - (q.X-p.X)*(r.Y-q.Y)
	switch {
	case val == 0:
		return 0
	case val > 0:
		return 1
	default:
		return 2
	}
}

// ConvexHull returns the convex hull of points by gift wrapping, starting at
// the leftmost point and walking counter-clockwise. Fewer than 3 points are
// returned unchanged.
func ConvexHull(points []Point) []Point {
	if len(points) < 3 {
		return append([]Point(nil), points...)
	}

	leftmost := 0
	for i, p := range points {
		if p.X < points[leftmost].X {
			leftmost = i
		}
	}

	var hull []Point
	p := leftmost
	for {
		hull = append(hull, points[p])

		q := (p + 1) % len(points)
		for i := range points {
			if Orientation(points[p], points[i], points[q]) == 2 {
				q = i
			}
		}
		p = q

		// Duplicate points could otherwise keep the walk from returning to the start.
		if p == leftmost || len(hull) > len(points) {
			break
		}
	}
	return hull
}

// PolygonArea returns the area of an ordered polygon by the shoelace formula.
func PolygonArea(points []Point) float64 {
	if len(points) < 3 {
		return 0
	}
	var area float64
	for i := range points {
		j := (i + 1) % len(points)
		area += points[i].X*points[j].Y - points[j].X*points[i].Y
	}
	return math.Abs(area) / 2
}

// Perimeter returns the closed perimeter length of an ordered polygon.
func Perimeter(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	var total float64
	for i := range points {
		total += Distance(points[i], points[(i+1)%len(points)])
	}
	return total
}
