// Package encoder turns a parsed discourse into entities, an ordered event
// sequence with ethereal intervals, and ranked hash items for the real and
// virtual fingerprints.
//
// Encode runs against a DBExecutor, normally the transaction that the caller
// commits only when the whole discourse is encoded:
//
//	tx, _ := conn.Begin()
//	report, err := enc.Encode(ctx, tx, discourseID)
//	if err != nil {
//	    tx.Rollback()
//	}
package encoder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/japaniel/discoursehash/pkg/db"
	"github.com/japaniel/discoursehash/pkg/errors"
	"github.com/japaniel/discoursehash/pkg/geometry"
	"github.com/japaniel/discoursehash/pkg/grid"
	"github.com/japaniel/discoursehash/pkg/logger"
)

// Encoder encodes one discourse per call. It holds no per-discourse state
// and may be shared, but callers must not encode the same discourse
// concurrently.
type Encoder struct {
	grid   *grid.Grid
	logger *zap.SugaredLogger

	// Now and NewRunID are replaceable in tests.
	Now      func() time.Time
	NewRunID func() string
}

// New returns an encoder placing words with g.
func New(g *grid.Grid, log *zap.SugaredLogger) *Encoder {
	return &Encoder{
		grid:     g,
		logger:   logger.Component(log, "encoder"),
		Now:      time.Now,
		NewRunID: uuid.NewString,
	}
}

// Report summarizes one encode.
type Report struct {
	RunID        string
	DiscourseID  int64
	Sentences    int
	UnitTensors  int
	Intervals    int
	Entities     int
	RealItems    int
	VirtualItems int
	Skipped      []db.Diagnostic
	Duration     time.Duration
}

// run carries the state of one encode across sentences.
type run struct {
	id         string
	discourse  db.Discourse
	exemptions []db.ExemptFeature
	questions  map[int64]bool
	entities   map[int64]bool
	virtual    bool
	openID     int64 // open interval id, 0 when none
	report     *Report
}

// Encode encodes the discourse and writes its output under a new encoding
// run. Store failures abort the encode and are returned marked
// ErrCollaboratorFailure. Unresolvable triplets are skipped and reported.
func (e *Encoder) Encode(ctx context.Context, conn db.DBExecutor, discourseID int64) (*Report, error) {
	start := e.Now()
	log := e.logger.With(logger.FieldDiscourseID, discourseID)

	discourse, err := db.GetDiscourse(conn, discourseID)
	if err != nil {
		return nil, err
	}
	exemptions, err := db.ListExemptFeatures(conn, discourseID)
	if err != nil {
		return nil, err
	}

	r := &run{
		id:         e.NewRunID(),
		discourse:  discourse,
		exemptions: exemptions,
		questions:  make(map[int64]bool),
		entities:   make(map[int64]bool),
		report:     &Report{DiscourseID: discourseID},
	}
	r.report.RunID = r.id
	if err := db.CreateEncodingRun(conn, r.id, discourseID, start); err != nil {
		return nil, err
	}
	log = log.With(logger.FieldRunID, r.id)

	sentences, err := db.ListSentences(conn, discourseID)
	if err != nil {
		return nil, err
	}
	for _, s := range sentences {
		if s.IsQuestion {
			r.questions[s.ID] = true
		}
		if err := e.encodeSentence(ctx, conn, r, s, log); err != nil {
			return nil, err
		}
		r.report.Sentences++
	}
	if r.openID != 0 {
		log.Debugw("Discourse ends inside an ethereal interval", "interval_id", r.openID)
	}

	if err := e.writeHashItems(conn, r); err != nil {
		return nil, err
	}

	r.report.Entities = len(r.entities)
	r.report.Duration = e.Now().Sub(start)
	log.Infow("Encoded discourse",
		"unit_tensors", r.report.UnitTensors,
		"intervals", r.report.Intervals,
		"entities", r.report.Entities,
		"skipped", len(r.report.Skipped),
		logger.FieldDurationMS, r.report.Duration.Milliseconds())
	return r.report, nil
}

func (e *Encoder) encodeSentence(ctx context.Context, conn db.DBExecutor, r *run, s db.Sentence, log *zap.SugaredLogger) error {
	log = log.With(logger.FieldSentenceID, s.ID)
	words, err := db.ListWordsBySentence(conn, s.ID)
	if err != nil {
		return err
	}
	e.placeWords(words)

	features, err := db.ListFeaturesBySentence(conn, s.ID)
	if err != nil {
		return err
	}
	relations, err := db.ListRelationsBySentence(conn, s.ID)
	if err != nil {
		return err
	}
	triplets, err := db.ListTriplets(conn, s.ID)
	if err != nil {
		return err
	}
	sections, err := db.ListSectionsBySentence(conn, s.ID)
	if err != nil {
		return err
	}

	resolver := NewResolver(relations, features)
	resolved, failures := resolver.ResolveAll(triplets, sections)
	for _, f := range failures {
		d := db.Diagnostic{RunID: r.id, TripletID: f.TripletID, Reason: f.Err.Error()}
		if err := db.AddDiagnostic(conn, d); err != nil {
			return err
		}
		r.report.Skipped = append(r.report.Skipped, d)
		log.Warnw("Skipping triplet", logger.FieldTripletID, f.TripletID, logger.FieldReason, d.Reason)
	}

	for _, t := range resolved {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "encode discourse %d", r.discourse.ID)
		}
		if err := e.encodeTriplet(conn, r, t, words, features, relations, sections[t.TripletID], log); err != nil {
			return err
		}
	}
	return nil
}

// placeWords fills in grid positions for words on the meaning grid that
// arrived without one.
func (e *Encoder) placeWords(words map[int64]db.Word) {
	for id, w := range words {
		if w.SynsetID == 0 || w.X != 0 || w.Y != 0 {
			continue
		}
		if p, ok := e.grid.Position(w.SynsetID); ok {
			w.X, w.Y = p.X, p.Y
			words[id] = w
		}
	}
}

func (e *Encoder) encodeTriplet(
	conn db.DBExecutor,
	r *run,
	t Resolved,
	words map[int64]db.Word,
	features map[int64][]db.WordFeature,
	relations []db.WordRelation,
	sections []db.Section,
	log *zap.SugaredLogger,
) error {
	var tripletWords []db.Word
	var tripletFeatures []db.WordFeature
	seen := make(map[int64]bool)
	for _, s := range sections {
		if seen[s.WordID] {
			continue
		}
		seen[s.WordID] = true
		tripletWords = append(tripletWords, words[s.WordID])
		tripletFeatures = append(tripletFeatures, features[s.WordID]...)
	}

	excitation := TripletExcitation(tripletWords, t.SubjectWordID)
	mood := ClassifyMood(tripletFeatures, r.exemptions)
	location := ClassifyLocation(t.ObjectWordID, words, features, relations)

	subject := words[t.SubjectWordID]
	predicate := words[t.PredicateWordID]
	object := words[t.ObjectWordID]

	subjectID, err := e.entity(conn, r, subject, t.TripletID, excitation.Magnitude)
	if err != nil {
		return err
	}
	predicateID, err := e.entity(conn, r, predicate, t.TripletID, predicate.X*predicate.Y)
	if err != nil {
		return err
	}
	objectID, err := e.entity(conn, r, object, t.TripletID, object.X*object.Y)
	if err != nil {
		return err
	}

	u := db.UnitTensor{
		RunID:             r.id,
		SentenceID:        t.SentenceID,
		DiscourseID:       r.discourse.ID,
		SubjectEntityID:   subjectID,
		PredicateEntityID: predicateID,
		ObjectEntityID:    objectID,
		Tense:             t.Tense,
		Mood:              mood.Mood,
		ExcitedX:          excitation.End().X,
		ExcitedY:          excitation.End().Y,
	}
	switch {
	case location == LocationGeographic:
		u.WhereEntityID = objectID
	case location.Temporal():
		u.WhenEntityID = objectID
	}

	id, err := db.InsertUnitTensor(conn, u)
	if err != nil {
		return err
	}
	r.report.UnitTensors++
	log.Debugw("Wrote unit tensor",
		logger.FieldUnitTensor, id,
		logger.FieldTripletID, t.TripletID,
		logger.FieldEntityID, subjectID,
		"mood", mood.Mood,
		"virtual", mood.Virtual)
	return e.track(conn, r, id, mood.Virtual)
}

func (e *Encoder) entity(conn db.DBExecutor, r *run, w db.Word, tripletID int64, rank float64) (int64, error) {
	id, err := db.InsertOrFoldEntity(conn, db.Entity{
		DiscourseID:   r.discourse.ID,
		InstanceIndex: w.InstanceIndex,
		SynsetID:      w.SynsetID,
		WordID:        w.ID,
		TripletID:     tripletID,
		Rank:          rank,
		X:             w.X,
		Y:             w.Y,
	})
	if err != nil {
		return 0, err
	}
	r.entities[id] = true
	return id, nil
}

// track opens an interval on a real to virtual transition and closes it on
// the next virtual to real one.
func (e *Encoder) track(conn db.DBExecutor, r *run, unitTensorID int64, virtual bool) error {
	switch {
	case virtual && !r.virtual:
		id, err := db.OpenInterval(conn, r.id, unitTensorID)
		if err != nil {
			return err
		}
		r.openID = id
		r.report.Intervals++
	case !virtual && r.virtual && r.openID != 0:
		if err := db.CloseInterval(conn, r.openID, unitTensorID); err != nil {
			return err
		}
		r.openID = 0
	}
	r.virtual = virtual
	return nil
}

func (e *Encoder) writeHashItems(conn db.DBExecutor, r *run) error {
	tensors, err := db.ListUnitTensors(conn, r.id)
	if err != nil {
		return err
	}
	intervals, err := db.ListIntervals(conn, r.id)
	if err != nil {
		return err
	}
	entities, err := db.ListEntities(conn, r.discourse.ID)
	if err != nil {
		return err
	}

	hypernym := geometry.Point{X: r.discourse.X, Y: r.discourse.Y}
	if hypernym.X == 0 && hypernym.Y == 0 {
		if p, ok := e.grid.Position(r.discourse.HypernymSynsetID); ok {
			hypernym = p
		}
	}

	for _, hashType := range []db.HashType{db.HashReal, db.HashVirtual} {
		items := Aggregate(Aggregation{
			Tensors:   Partition(tensors, intervals, hashType == db.HashVirtual),
			Entities:  entities,
			Questions: r.questions,
			Hypernym:  hypernym,
		})
		for _, item := range items {
			item.RunID = r.id
			item.DiscourseID = r.discourse.ID
			item.HashType = hashType
			if err := db.InsertHashItem(conn, item); err != nil {
				return err
			}
		}
		if hashType == db.HashReal {
			r.report.RealItems = len(items)
		} else {
			r.report.VirtualItems = len(items)
		}
	}
	return nil
}
