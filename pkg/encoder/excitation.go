package encoder

import (
	"sort"

	"github.com/japaniel/discoursehash/pkg/db"
	"github.com/japaniel/discoursehash/pkg/geometry"
)

// Excitation is the summed position of a triplet's participants.
type Excitation struct {
	Vector    geometry.Vector
	Magnitude float64
}

// End is the endpoint of the excitation vector.
func (e Excitation) End() geometry.Point { return e.Vector.End }

// TripletExcitation sums the position vectors of the distinct words of a
// triplet, leaving out the resolved subject word.
func TripletExcitation(words []db.Word, subjectWordID int64) Excitation {
	seen := make(map[int64]bool, len(words))
	var total geometry.Vector
	for _, w := range words {
		if w.ID == subjectWordID || seen[w.ID] {
			continue
		}
		seen[w.ID] = true
		total = geometry.Add(total, geometry.PositionVector(geometry.Point{X: w.X, Y: w.Y}))
	}
	return Excitation{Vector: total, Magnitude: geometry.Magnitude(total)}
}

// Partition selects the unit tensors of one hash type: virtual tensors lie in
// an ethereal interval, real ones do not.
func Partition(tensors []db.UnitTensor, intervals []db.EtherealInterval, virtual bool) []db.UnitTensor {
	var out []db.UnitTensor
	for _, u := range tensors {
		if inInterval(u.ID, intervals) == virtual {
			out = append(out, u)
		}
	}
	return out
}

func inInterval(id int64, intervals []db.EtherealInterval) bool {
	for _, iv := range intervals {
		if iv.Contains(id) {
			return true
		}
	}
	return false
}

// Centrality counts, per entity id, the slots of tensors that reference a
// coreferenced entity (instance index > 0).
func Centrality(tensors []db.UnitTensor, entities map[int64]db.Entity) map[int64]int {
	support := make(map[int64]int)
	for _, u := range tensors {
		for _, id := range u.EntityIDs() {
			if id == 0 {
				continue
			}
			if e, ok := entities[id]; ok && e.InstanceIndex > 0 {
				support[id]++
			}
		}
	}
	return support
}

// Aggregation is the input of one hash type's aggregation.
type Aggregation struct {
	Tensors   []db.UnitTensor
	Entities  map[int64]db.Entity
	Questions map[int64]bool // keyed by sentence id
	Hypernym  geometry.Point
}

// Aggregate turns a partition's unit tensors into ranked hash items. Excited
// positions accumulate into the subject entity of each tensor that has
// centrality support in any slot. The hypernym item comes first with
// OrderBy 0; the rest follow by excited radius, descending, numbered from 1.
// RunID, DiscourseID and HashType are left for the caller.
func Aggregate(in Aggregation) []db.HashItem {
	support := Centrality(in.Tensors, in.Entities)

	totals := make(map[int64]geometry.Vector)
	for _, u := range in.Tensors {
		if in.Questions[u.SentenceID] {
			continue
		}
		supported := false
		for _, id := range u.EntityIDs() {
			if id != 0 && support[id] > 0 {
				supported = true
				break
			}
		}
		if !supported {
			continue
		}
		excited := geometry.PositionVector(geometry.Point{X: u.ExcitedX, Y: u.ExcitedY})
		totals[u.SubjectEntityID] = geometry.Add(totals[u.SubjectEntityID], excited)
	}

	ids := make([]int64, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var summed geometry.Vector
	items := make([]db.HashItem, 0, len(ids)+1)
	for _, id := range ids {
		entity, ok := in.Entities[id]
		if !ok {
			continue
		}
		ground := geometry.Point{X: entity.X, Y: entity.Y}
		combined := geometry.Add(geometry.PositionVector(ground), totals[id])
		summed = geometry.Add(summed, combined)

		var item db.HashItem
		item.Radius, item.Angle = geometry.ToPolar(ground)
		item.ExcitedRadius, item.ExcitedAngle = geometry.ToPolar(combined.End)
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].ExcitedRadius > items[j].ExcitedRadius })

	hypernym := db.HashItem{IsHypernym: true}
	hypernym.Radius, hypernym.Angle = geometry.ToPolar(in.Hypernym)
	excited := geometry.Add(geometry.PositionVector(in.Hypernym), summed)
	hypernym.ExcitedRadius, hypernym.ExcitedAngle = geometry.ToPolar(excited.End)

	out := append([]db.HashItem{hypernym}, items...)
	for i := range out {
		out[i].OrderBy = i
	}
	return out
}
