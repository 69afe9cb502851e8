// Package hash serializes ranked hash items into the fixed-width discourse
// fingerprint.
//
// Each item becomes one 9-character token
//
//	{lean}!{upper:02}!{leanExcited}!{upperExcited:02}
//
// and a fingerprint is always 20 tokens joined by "-". Missing tokens are
// filled with PadToken.
package hash

import (
	"fmt"
	"math"
	"strings"

	"github.com/japaniel/discoursehash/pkg/db"
	"github.com/japaniel/discoursehash/pkg/geometry"
)

const (
	// TokenCount is the number of tokens in every fingerprint.
	TokenCount = 20
	// TokenLength is the width of a single token.
	TokenLength = 9
	// PadToken fills the slots of a fingerprint with fewer than TokenCount items.
	PadToken = "#!##!#!##"
	// Separator joins tokens.
	Separator = "-"
	// Length is the length of every fingerprint.
	Length = TokenCount*TokenLength + TokenCount - 1
)

// Lean classifies where an item sits relative to the reference triangle.
type Lean int

const (
	LeanTowardOrigin Lean = 0
	LeanLevel        Lean = 1
	LeanAway         Lean = 2
)

// State is the preformatted form of one polar position.
type State struct {
	Lean       Lean
	UpperAngle float64
	// Degenerate is set when a zero or non-finite side forced a zero angle.
	Degenerate bool
}

// Preformatted holds the ground and excited states of a hash item.
type Preformatted struct {
	Ground  State
	Excited State
}

// Degenerate reports whether either state hit degenerate geometry.
func (p Preformatted) Degenerate() bool {
	return p.Ground.Degenerate || p.Excited.Degenerate
}

// Preformat computes both states of item against the reference length, the
// meaning grid's maximum x.
func Preformat(item db.HashItem, reference float64) Preformatted {
	return Preformatted{
		Ground:  PreformatState(item.Radius, item.Angle, reference),
		Excited: PreformatState(item.ExcitedRadius, item.ExcitedAngle, reference),
	}
}

// PreformatState places the point (radius, angle) in the triangle formed with
// the origin and (reference, 0). The side opposite the origin, a, follows from
// the law of cosines. The upper angle is the angle at the point itself,
// π − angle − β, where β is the angle at the reference vertex. The upper angle
// is in radians.
func PreformatState(radius, angle, reference float64) State {
	var s State
	if !geometry.Finite(radius) || !geometry.Finite(angle) {
		s.Degenerate = true
		s.Lean = LeanLevel
		return s
	}

	aSquared := radius*radius + reference*reference - 2*radius*reference*math.Cos(angle)
	a := math.Sqrt(math.Max(0, aSquared))

	beta, ok := geometry.LawOfCosinesAngle(a, reference, radius)
	if !ok {
		s.Degenerate = true
	}

	s.UpperAngle = math.Pi - angle - beta
	if !geometry.Finite(s.UpperAngle) {
		s.UpperAngle = 0
		s.Degenerate = true
	}

	switch {
	case geometry.ApproxEqual(a, radius):
		s.Lean = LeanLevel
	case a > radius:
		s.Lean = LeanTowardOrigin
	default:
		s.Lean = LeanAway
	}
	return s
}

// Token renders a preformatted item. Angles are rounded to the nearest integer.
func Token(p Preformatted) string {
	return fmt.Sprintf("%d!%02d!%d!%02d",
		p.Ground.Lean, int(math.Round(p.Ground.UpperAngle)),
		p.Excited.Lean, int(math.Round(p.Excited.UpperAngle)))
}

// Compose renders items, already in output order, into a fingerprint. Only the
// first TokenCount items are used.
func Compose(items []db.HashItem, reference float64) string {
	tokens := make([]string, 0, TokenCount)
	for _, item := range items {
		if len(tokens) == TokenCount {
			break
		}
		tokens = append(tokens, Token(Preformat(item, reference)))
	}
	for len(tokens) < TokenCount {
		tokens = append(tokens, PadToken)
	}
	return strings.Join(tokens, Separator)
}

// CountDegenerate returns how many of the items that Compose would render
// have a degenerate ground or excited state.
func CountDegenerate(items []db.HashItem, reference float64) int {
	n := 0
	for i, item := range items {
		if i == TokenCount {
			break
		}
		if Preformat(item, reference).Degenerate() {
			n++
		}
	}
	return n
}

// Tokens splits a fingerprint into its tokens by position. It returns nil when
// fingerprint is not Length characters long.
func Tokens(fingerprint string) []string {
	if len(fingerprint) != Length {
		return nil
	}
	tokens := make([]string, TokenCount)
	for i := range tokens {
		start := i * (TokenLength + len(Separator))
		tokens[i] = fingerprint[start : start+TokenLength]
	}
	return tokens
}

// Padding returns how many trailing tokens of fingerprint are PadToken.
func Padding(fingerprint string) int {
	tokens := Tokens(fingerprint)
	n := 0
	for i := len(tokens) - 1; i >= 0 && tokens[i] == PadToken; i-- {
		n++
	}
	return n
}
