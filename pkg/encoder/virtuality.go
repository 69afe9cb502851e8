package encoder

import (
	"sort"
	"strings"

	"github.com/japaniel/discoursehash/pkg/db"
)

// MoodIndicative is the mood of every real triplet without an exemption.
const MoodIndicative = "ind"

// LocationType classifies the object of a triplet by its case marking.
type LocationType int

const (
	LocationNone                LocationType = 1
	LocationGeographic          LocationType = 2
	LocationTemporal            LocationType = 3
	LocationTemporalTerminative LocationType = 4
)

// Temporal reports whether the location fills the "when" slot.
func (l LocationType) Temporal() bool {
	return l == LocationTemporal || l == LocationTemporalTerminative
}

// Virtuality is the mood classification of a triplet.
type Virtuality struct {
	Virtual bool
	Mood    string
}

// ClassifyMood scans the features of a triplet's words for a non-indicative
// mood. A mood named by a discourse exemption keeps the triplet real but is
// still reported.
func ClassifyMood(features []db.WordFeature, exemptions []db.ExemptFeature) Virtuality {
	exempt := make(map[string]bool)
	for _, e := range exemptions {
		if strings.EqualFold(e.Feature, "mood") {
			exempt[strings.ToLower(e.Value)] = true
		}
	}

	result := Virtuality{Mood: MoodIndicative}
	for _, f := range features {
		if !strings.EqualFold(f.Relation, "mood") && !strings.EqualFold(f.Feature, "mood") {
			continue
		}
		mood := strings.ToLower(f.Value)
		if mood == "" || mood == MoodIndicative {
			continue
		}
		if !exempt[mood] {
			return Virtuality{Virtual: true, Mood: mood}
		}
		if result.Mood == MoodIndicative {
			result.Mood = mood
		}
	}
	return result
}

var caseLocations = map[string]LocationType{
	"loc": LocationGeographic,
	"tem": LocationTemporal,
	"ter": LocationTemporalTerminative,
}

// ClassifyLocation reads the object word's "case" feature when a case marker
// attaches directly to the object (an edge whose relation contains "case").
// Otherwise it looks for a "case" feature on a word directly related to the
// object, in either direction, visiting words in sentence order; the first
// honored feature wins. Markers reached through an intermediate word do not count.
func ClassifyLocation(objectWordID int64, words map[int64]db.Word, features map[int64][]db.WordFeature, relations []db.WordRelation) LocationType {
	linked := make(map[int64]bool)
	marked := false
	for _, r := range relations {
		var other int64
		switch objectWordID {
		case r.WordID:
			other = r.WordIDModified
		case r.WordIDModified:
			other = r.WordID
		default:
			continue
		}
		if other == objectWordID {
			continue
		}
		linked[other] = true
		if strings.Contains(strings.ToLower(r.Relation), "case") {
			marked = true
		}
	}
	if len(linked) == 0 {
		return LocationNone
	}

	if marked {
		if loc, ok := caseLocation(features[objectWordID]); ok {
			return loc
		}
	}
	for _, w := range inSentenceOrder(words) {
		if !linked[w.ID] {
			continue
		}
		if loc, ok := caseLocation(features[w.ID]); ok {
			return loc
		}
	}
	return LocationNone
}

// caseLocation maps the first known "case" feature value to a location type.
func caseLocation(features []db.WordFeature) (LocationType, bool) {
	for _, f := range features {
		if !strings.EqualFold(f.Feature, "case") {
			continue
		}
		if loc, ok := caseLocations[strings.ToLower(f.Value)]; ok {
			return loc, true
		}
	}
	return LocationNone, false
}

func inSentenceOrder(words map[int64]db.Word) []db.Word {
	out := make([]db.Word, 0, len(words))
	for _, w := range words {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IndexOfWord != out[j].IndexOfWord {
			return out[i].IndexOfWord < out[j].IndexOfWord
		}
		return out[i].ID < out[j].ID
	})
	return out
}
