// Package influence peels concentric convex-hull layers off a set of
// positions and shortlists the strongest hash items of a fingerprint.
package influence

import (
	"sort"

	"github.com/japaniel/discoursehash/pkg/db"
	"github.com/japaniel/discoursehash/pkg/geometry"
)

// Layers repeatedly extracts and removes the convex hull of points, outermost
// first, until fewer than 3 points remain.
func Layers(points []geometry.Point) [][]geometry.Point {
	remaining := append([]geometry.Point(nil), points...)

	var layers [][]geometry.Point
	for len(remaining) >= 3 {
		hull := geometry.ConvexHull(remaining)
		next := without(remaining, hull)
		if len(next) == len(remaining) {
			break
		}
		layers = append(layers, hull)
		remaining = next
	}
	return layers
}

// without removes one occurrence of every point of drop from points.
func without(points, drop []geometry.Point) []geometry.Point {
	pending := make(map[geometry.Point]int, len(drop))
	for _, p := range drop {
		pending[p]++
	}
	out := make([]geometry.Point, 0, len(points))
	for _, p := range points {
		if pending[p] > 0 {
			pending[p]--
			continue
		}
		out = append(out, p)
	}
	return out
}

// PositionVectors returns every layer as origin-anchored vectors.
func PositionVectors(layers [][]geometry.Point) [][]geometry.Vector {
	out := make([][]geometry.Vector, len(layers))
	for i, layer := range layers {
		out[i] = make([]geometry.Vector, len(layer))
		for j, p := range layer {
			out[i][j] = geometry.PositionVector(p)
		}
	}
	return out
}

// ItemPoints returns the cartesian positions of the non-hypernym items, in
// their excited or ground state.
func ItemPoints(items []db.HashItem, excited bool) []geometry.Point {
	var points []geometry.Point
	for _, item := range items {
		if item.IsHypernym {
			continue
		}
		if excited {
			points = append(points, geometry.FromPolar(item.ExcitedRadius, item.ExcitedAngle))
		} else {
			points = append(points, geometry.FromPolar(item.Radius, item.Angle))
		}
	}
	return points
}

// TopContributors ranks items by excited radius, descending, and returns the
// items up to the sharpest bend of the (rank, excited radius) curve. The bend
// is the point whose triangle with the first and last points has the smallest
// apex angle. Fewer than 3 items are returned ranked but otherwise unchanged.
func TopContributors(items []db.HashItem) []db.HashItem {
	ranked := append([]db.HashItem(nil), items...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ExcitedRadius > ranked[j].ExcitedRadius
	})
	if len(ranked) < 3 {
		return ranked
	}

	last := len(ranked) - 1
	first := geometry.Point{X: 0, Y: ranked[0].ExcitedRadius}
	end := geometry.Point{X: float64(last), Y: ranked[last].ExcitedRadius}
	span := geometry.Distance(first, end)

	bend := -1
	var sharpest float64
	for i := 1; i < last; i++ {
		p := geometry.Point{X: float64(i), Y: ranked[i].ExcitedRadius}
		apex, ok := geometry.LawOfCosinesAngle(geometry.Distance(p, first), geometry.Distance(p, end), span)
		if !ok {
			continue
		}
		if bend < 0 || apex < sharpest {
			bend, sharpest = i, apex
		}
	}
	if bend < 0 {
		return ranked
	}
	return ranked[:bend+1]
}
