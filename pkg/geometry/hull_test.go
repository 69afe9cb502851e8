package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrientation(t *testing.T) {
	assert.Equal(t, 0, Orientation(Point{0, 0}, Point{1, 1}, Point{2, 2}))
	assert.Equal(t, 1, Orientation(Point{0, 0}, Point{0, 1}, Point{1, 1}))
	assert.Equal(t, 2, Orientation(Point{0, 0}, Point{1, 0}, Point{1, 1}))
}

func TestConvexHullUnitSquareWithCentre(t *testing.T) {
	points := []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0.5, 0.5}}

	hull := ConvexHull(points)

	assert.ElementsMatch(t, []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, hull)
	assert.Equal(t, Point{0, 0}, hull[0], "walk starts at the leftmost point")
}

func TestConvexHullTriangleWithInterior(t *testing.T) {
	points := []Point{{2, 1}, {0, 0}, {4, 0}, {2, 3}, {1, 0.5}}

	hull := ConvexHull(points)

	assert.ElementsMatch(t, []Point{{0, 0}, {4, 0}, {2, 3}}, hull)
}

func TestConvexHullFewPoints(t *testing.T) {
	assert.Empty(t, ConvexHull(nil))
	two := []Point{{1, 1}, {2, 2}}
	assert.Equal(t, two, ConvexHull(two))
}

func TestPolygonArea(t *testing.T) {
	square := []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	assert.InDelta(t, 1.0, PolygonArea(square), Tolerance)

	triangle := []Point{{0, 0}, {4, 0}, {0, 3}}
	assert.InDelta(t, 6.0, PolygonArea(triangle), Tolerance)

	assert.Zero(t, PolygonArea(square[:2]))
}

func TestPerimeter(t *testing.T) {
	square := []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	assert.InDelta(t, 4.0, Perimeter(square), Tolerance)
	assert.InDelta(t, 12.0, Perimeter([]Point{{0, 0}, {4, 0}, {0, 3}}), Tolerance)
}
