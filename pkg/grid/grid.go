// Package grid provides the meaning grid: the fixed 2D position of every known
// word sense. A Grid is loaded once and shared read-only by the encoder and the
// hash composer.
package grid

import (
	"github.com/japaniel/discoursehash/pkg/db"
	"github.com/japaniel/discoursehash/pkg/geometry"
)

// Grid maps synset ids to positions. It is immutable after construction and
// safe for concurrent use.
type Grid struct {
	positions map[int64]geometry.Point
	maxX      float64
	maxY      float64
}

// New builds a grid from items. Later items with the same synset id win.
func New(items []db.MeaningGridItem) *Grid {
	g := &Grid{positions: make(map[int64]geometry.Point, len(items))}
	for _, item := range items {
		g.positions[item.SynsetID] = geometry.Point{X: item.X, Y: item.Y}
	}
	for _, p := range g.positions {
		if p.X > g.maxX {
			g.maxX = p.X
		}
		if p.Y > g.maxY {
			g.maxY = p.Y
		}
	}
	return g
}

// Load reads every meaning grid item from the store.
func Load(conn db.DBExecutor) (*Grid, error) {
	items, err := db.ListMeaningGrid(conn)
	if err != nil {
		return nil, err
	}
	return New(items), nil
}

// Position returns the position of a synset. ok is false for unknown senses,
// for synset id 0 and on a nil Grid.
func (g *Grid) Position(synsetID int64) (geometry.Point, bool) {
	if g == nil || synsetID == 0 {
		return geometry.Point{}, false
	}
	p, ok := g.positions[synsetID]
	return p, ok
}

// MaxX is the largest x of any sense; the hash composer uses it as its reference length.
func (g *Grid) MaxX() float64 { return g.maxX }

// MaxY is the largest y of any sense.
func (g *Grid) MaxY() float64 { return g.maxY }

// Len returns the number of senses on the grid.
func (g *Grid) Len() int { return len(g.positions) }
