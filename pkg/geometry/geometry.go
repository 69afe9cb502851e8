// Package geometry holds the 2D primitives used to place word senses and
// discourse participants on the meaning grid.
package geometry

import "math"

// Tolerance is the absolute tolerance used for float comparisons.
const Tolerance = 1.0e-6

// Point is a position on the meaning grid.
type Point struct {
	X float64
	Y float64
}

// Vector is a directed segment. Position vectors start at the origin.
type Vector struct {
	Start Point
	End   Point
}

// PositionVector returns the vector from the origin to p.
func PositionVector(p Point) Vector {
	return Vector{End: p}
}

// Add adds two vectors component-wise on both endpoints.
func Add(a, b Vector) Vector {
	return Vector{
		Start: Point{X: a.Start.X + b.Start.X, Y: a.Start.Y + b.Start.Y},
		End:   Point{X: a.End.X + b.End.X, Y: a.End.Y + b.End.Y},
	}
}

// Sum adds position vectors for every point.
func Sum(points ...Point) Vector {
	var total Vector
	for _, p := range points {
		total = Add(total, PositionVector(p))
	}
	return total
}

// Magnitude returns the length of v.
func Magnitude(v Vector) float64 {
	return math.Hypot(v.End.X-v.Start.X, v.End.Y-v.Start.Y)
}

// ToPolar converts p to (radius, angle). The angle is atan2(y, x): it equals
// atan(y/x) for x > 0 and is 0 at the origin.
func ToPolar(p Point) (radius, angle float64) {
	return math.Hypot(p.X, p.Y), math.Atan2(p.Y, p.X)
}

// FromPolar converts (radius, angle) back to a cartesian point.
func FromPolar(radius, angle float64) Point {
	return Point{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)}
}

// Distance is the euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// ApproxEqual reports whether a and b are within Tolerance of each other.
func ApproxEqual(a, b float64) bool {
	return math.Abs(a-b) <= Tolerance
}

// Finite reports whether f is neither NaN nor infinite.
func Finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// LawOfCosinesAngle returns the angle opposite side c in a triangle with sides
// a, b, c. ok is false when a or b is zero or the result is not finite; the
// returned angle is then 0.
func LawOfCosinesAngle(a, b, c float64) (angle float64, ok bool) {
	denominator := 2 * a * b
	if denominator == 0 || !Finite(denominator) {
		return 0, false
	}
	cos := (a*a + b*b - c*c) / denominator
	if !Finite(cos) {
		return 0, false
	}
	// Rounding can push cos just outside [-1, 1].
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos), true
}
