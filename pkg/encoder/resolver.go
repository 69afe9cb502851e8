package encoder

import (
	"sort"
	"strings"

	"github.com/japaniel/discoursehash/pkg/db"
	"github.com/japaniel/discoursehash/pkg/errors"
)

// RelationClass groups dependency relations that are equally likely to carry
// the focus of a section.
type RelationClass int

const (
	RelationUngraded RelationClass = iota
	RelationModifier               // nmod, appos, nummod, amod, acl
	RelationClausal                // csubj, ccomp, xcomp
	RelationCore                   // nsubj, obj, iobj
)

var relationTags = []struct {
	class RelationClass
	tags  []string
}{
	{RelationCore, []string{"nsubj", "obj", "iobj"}},
	{RelationClausal, []string{"csubj", "ccomp", "xcomp"}},
	{RelationModifier, []string{"nmod", "appos", "nummod", "amod", "acl"}},
}

// Grade returns the ranking grade of the class.
func (c RelationClass) Grade() int {
	switch c {
	case RelationCore:
		return 40
	case RelationClausal:
		return 39
	case RelationModifier:
		return 38
	default:
		return 0
	}
}

// ClassifyRelation returns the best class whose tag occurs in the relation,
// so subtypes such as "nsubj:pass" and "acl:relcl" are graded.
func ClassifyRelation(relation string) RelationClass {
	relation = strings.ToLower(relation)
	for _, group := range relationTags {
		for _, tag := range group.tags {
			if strings.Contains(relation, tag) {
				return group.class
			}
		}
	}
	return RelationUngraded
}

// FeatureClass ranks the morphological features that single out a section focus.
type FeatureClass int

const (
	FeatureNone FeatureClass = iota
	FeatureAnimacy
	FeatureReflex
	FeaturePronTypePrs
	FeaturePoss
	FeaturePerson
)

// Weight returns the ranking weight of the class.
func (c FeatureClass) Weight() int { return int(c) }

// ClassifyFeature maps a feature tag and value to its class. PronType counts
// only for personal pronouns.
func ClassifyFeature(feature, value string) FeatureClass {
	switch strings.ToLower(feature) {
	case "person":
		return FeaturePerson
	case "poss":
		return FeaturePoss
	case "prontype":
		if strings.ToLower(value) == "prs" {
			return FeaturePronTypePrs
		}
	case "reflex":
		return FeatureReflex
	case "animacy":
		return FeatureAnimacy
	}
	return FeatureNone
}

var animacyOrder = []string{"hum", "anim", "nhum", "inan"}

// featureOrdinal returns the position of value within a class's gradient,
// lower being stronger. ok is false for classes without a gradient or
// unknown values.
func featureOrdinal(class FeatureClass, value string) (int, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch class {
	case FeaturePerson:
		if len(value) > 0 && value[0] >= '1' && value[0] <= '5' {
			return int(value[0] - '1'), true
		}
	case FeatureAnimacy:
		for i, v := range animacyOrder {
			if v == value {
				return i, true
			}
		}
	}
	return 0, false
}

// Resolved is a triplet reduced to one focus word per role.
type Resolved struct {
	TripletID       int64
	SentenceID      int64
	Tense           db.Tense
	IsPassive       bool
	SubjectWordID   int64
	PredicateWordID int64
	ObjectWordID    int64
}

// WordIDs returns the subject, predicate and object word ids.
func (r Resolved) WordIDs() [3]int64 {
	return [3]int64{r.SubjectWordID, r.PredicateWordID, r.ObjectWordID}
}

// Resolver picks the focus word of every section group of a triplet.
type Resolver struct {
	// outgoing relation tags keyed by word id
	outgoing map[int64][]string
	features map[int64][]db.WordFeature
}

// NewResolver builds a resolver over one sentence's relations and features.
func NewResolver(relations []db.WordRelation, features map[int64][]db.WordFeature) *Resolver {
	outgoing := make(map[int64][]string)
	for _, r := range relations {
		outgoing[r.WordID] = append(outgoing[r.WordID], r.Relation)
	}
	return &Resolver{outgoing: outgoing, features: features}
}

// grade is the best relation grade over the word's outgoing edges.
func (r *Resolver) grade(wordID int64) int {
	best := 0
	for _, rel := range r.outgoing[wordID] {
		if g := ClassifyRelation(rel).Grade(); g > best {
			best = g
		}
	}
	return best
}

// strongest returns the word's strongest feature class and its value.
func (r *Resolver) strongest(wordID int64) (FeatureClass, string) {
	best, value := FeatureNone, ""
	for _, f := range r.features[wordID] {
		if c := ClassifyFeature(f.Feature, f.Value); c > best {
			best, value = c, f.Value
		}
	}
	return best, value
}

// valueOf returns the value the word carries for a feature class.
func (r *Resolver) valueOf(wordID int64, class FeatureClass) (string, bool) {
	for _, f := range r.features[wordID] {
		if ClassifyFeature(f.Feature, f.Value) == class {
			return f.Value, true
		}
	}
	return "", false
}

// Resolve reduces a triplet's sections to a Resolved triplet. A triplet
// lacking a section type returns an error marked ErrUnresolvableTriplet.
// Passive triplets have subject and object swapped.
func (r *Resolver) Resolve(t db.Triplet, sections []db.Section) (Resolved, error) {
	groups := make(map[db.SectionType][]int64)
	for _, s := range sections {
		groups[s.SectionType] = append(groups[s.SectionType], s.WordID)
	}

	res := Resolved{TripletID: t.ID, SentenceID: t.SentenceID, Tense: t.Tense, IsPassive: t.IsPassive}
	for _, st := range []db.SectionType{db.SectionSubject, db.SectionPredicate, db.SectionObject} {
		words := groups[st]
		if len(words) == 0 {
			return Resolved{}, errors.Wrapf(errors.ErrUnresolvableTriplet, "triplet %d has no %s", t.ID, st)
		}
		focus := r.focus(words)
		switch st {
		case db.SectionSubject:
			res.SubjectWordID = focus
		case db.SectionPredicate:
			res.PredicateWordID = focus
		case db.SectionObject:
			res.ObjectWordID = focus
		}
	}

	if res.IsPassive {
		res.SubjectWordID, res.ObjectWordID = res.ObjectWordID, res.SubjectWordID
	}
	return res, nil
}

// focus ranks the words of one section group by relation grade and refines
// the provisional choice by feature weight.
func (r *Resolver) focus(words []int64) int64 {
	ranked := uniqueIDs(words)
	sort.SliceStable(ranked, func(i, j int) bool {
		gi, gj := r.grade(ranked[i]), r.grade(ranked[j])
		if gi != gj {
			return gi > gj
		}
		return ranked[i] < ranked[j]
	})
	return r.refine(ranked[0], ranked[1:])
}

// refine lets a candidate with a stronger feature class replace the
// provisional focus. At equal strength only Person and Animacy decide, by
// their value gradients.
func (r *Resolver) refine(provisional int64, others []int64) int64 {
	base, _ := r.strongest(provisional)

	type candidate struct {
		wordID int64
		class  FeatureClass
		value  string
	}
	var candidates []candidate
	for _, id := range others {
		class, value := r.strongest(id)
		if class != FeatureNone && class >= base {
			candidates = append(candidates, candidate{id, class, value})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].class != candidates[j].class {
			return candidates[i].class > candidates[j].class
		}
		return candidates[i].wordID < candidates[j].wordID
	})

	for _, c := range candidates {
		if c.class > base {
			return c.wordID
		}
		candidateRank, ok := featureOrdinal(c.class, c.value)
		if !ok {
			continue
		}
		provisionalValue, _ := r.valueOf(provisional, c.class)
		provisionalRank, ok := featureOrdinal(c.class, provisionalValue)
		if !ok {
			// An unranked provisional value loses to any ranked one.
			provisionalRank = len(animacyOrder) + 5
		}
		if candidateRank < provisionalRank {
			return c.wordID
		}
	}
	return provisional
}

// Failure is a triplet that could not be resolved.
type Failure struct {
	TripletID int64
	Err       error
}

// ResolveAll resolves a sentence's triplets in ascending id order, each id
// once. Unresolvable triplets are returned separately, in the same order.
func (r *Resolver) ResolveAll(triplets []db.Triplet, sections map[int64][]db.Section) ([]Resolved, []Failure) {
	ordered := append([]db.Triplet(nil), triplets...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var resolved []Resolved
	var failed []Failure
	seen := make(map[int64]bool, len(ordered))
	for _, t := range ordered {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true

		res, err := r.Resolve(t, sections[t.ID])
		if err != nil {
			failed = append(failed, Failure{TripletID: t.ID, Err: err})
			continue
		}
		resolved = append(resolved, res)
	}
	return resolved, failed
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
