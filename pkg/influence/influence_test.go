package influence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/discoursehash/pkg/db"
	"github.com/japaniel/discoursehash/pkg/geometry"
)

func TestLayers_SquareWithCentre(t *testing.T) {
	points := []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0.5, Y: 0.5}}

	layers := Layers(points)
	require.Len(t, layers, 1)
	assert.ElementsMatch(t, points[:4], layers[0])
}

func TestLayers_Nested(t *testing.T) {
	outer := []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	inner := []geometry.Point{{X: 4, Y: 4}, {X: 6, Y: 4}, {X: 5, Y: 6}}
	points := append(append([]geometry.Point{}, outer...), inner...)

	layers := Layers(points)
	require.Len(t, layers, 2)
	assert.ElementsMatch(t, outer, layers[0])
	assert.ElementsMatch(t, inner, layers[1])
}

func TestLayers_TooFewPoints(t *testing.T) {
	assert.Empty(t, Layers(nil))
	assert.Empty(t, Layers([]geometry.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}))
}

func TestPositionVectors(t *testing.T) {
	vectors := PositionVectors([][]geometry.Point{{{X: 3, Y: 4}}})
	require.Len(t, vectors, 1)
	assert.Equal(t, geometry.Vector{End: geometry.Point{X: 3, Y: 4}}, vectors[0][0])
	assert.InDelta(t, 5, geometry.Magnitude(vectors[0][0]), 1e-9)
}

func TestItemPoints(t *testing.T) {
	items := []db.HashItem{
		{IsHypernym: true, Radius: 1, ExcitedRadius: 1},
		{Radius: 2, Angle: 0, ExcitedRadius: 5, ExcitedAngle: math.Atan2(4, 3)},
	}
	ground := ItemPoints(items, false)
	require.Len(t, ground, 1)
	assert.InDelta(t, 2, ground[0].X, 1e-9)

	excited := ItemPoints(items, true)
	require.Len(t, excited, 1)
	assert.InDelta(t, 3, excited[0].X, 1e-9)
	assert.InDelta(t, 4, excited[0].Y, 1e-9)
}

func radii(items []db.HashItem) []float64 {
	out := make([]float64, len(items))
	for i, item := range items {
		out[i] = item.ExcitedRadius
	}
	return out
}

func TestTopContributors(t *testing.T) {
	var items []db.HashItem
	for _, r := range []float64{1, 9, 2, 10, 1.5} {
		items = append(items, db.HashItem{ExcitedRadius: r})
	}

	top := TopContributors(items)
	assert.Equal(t, []float64{10, 9, 2}, radii(top))
}

func TestTopContributors_FewItems(t *testing.T) {
	items := []db.HashItem{{ExcitedRadius: 1}, {ExcitedRadius: 3}}
	assert.Equal(t, []float64{3, 1}, radii(TopContributors(items)))
	assert.Empty(t, TopContributors(nil))
}
