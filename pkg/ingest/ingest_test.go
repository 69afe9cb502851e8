package ingest

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/japaniel/discoursehash/pkg/db"
	"github.com/japaniel/discoursehash/pkg/grid"
	"github.com/japaniel/discoursehash/pkg/intake"
)

func setupDB(t testing.TB) *sql.DB {
	conn, err := db.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// sampleDocument is a one-sentence discourse: "dogs chase cats".
func sampleDocument(id int64) intake.Document {
	return intake.Document{
		Discourse:      intake.DiscourseMeta{ID: id, HypernymSynsetID: 100},
		ExemptFeatures: []intake.Feature{{Feature: "Mood", Value: "Imp"}},
		Sentences: []intake.Sentence{{
			Words: []intake.Word{
				{ID: 3, Index: 3, Lexeme: "cats", SynsetID: 30},
				{ID: 1, Index: 1, Lexeme: "dogs", InstanceIndex: 1, X: 1, Y: 1,
					Features: []intake.Feature{{Relation: "nsubj", Feature: "Number", Value: "Plur"}}},
				{ID: 2, Index: 2, Lexeme: "chase", X: 2, Y: 2},
			},
			Relations: []intake.Relation{{WordID: 2, WordIDModified: 1, Relation: "nsubj"}},
			Triplets: []intake.Triplet{{
				Tense: "present", Subject: []int64{1}, Predicate: []int64{2}, Object: []int64{3},
			}},
		}},
	}
}

func TestIngestWritesDocuments(t *testing.T) {
	conn := setupDB(t)
	g := grid.New([]db.MeaningGridItem{{SynsetID: 30, X: 7, Y: 8}})

	ingester := NewIngester(conn, g, nil)
	ingester.BatchSize = 2
	var progress int
	ingester.OnProgress = func(current, total int) { progress = current }

	docs := []intake.Document{sampleDocument(0), sampleDocument(0), sampleDocument(0)}
	res, err := ingester.Ingest(context.Background(), docs)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(res.DiscourseIDs) != 3 {
		t.Fatalf("expected 3 discourses, got %d", len(res.DiscourseIDs))
	}
	if progress != 3 {
		t.Errorf("expected progress 3, got %d", progress)
	}
	for i := 1; i < len(res.DiscourseIDs); i++ {
		if res.DiscourseIDs[i] <= res.DiscourseIDs[i-1] {
			t.Fatalf("discourses not written in input order: %v", res.DiscourseIDs)
		}
	}

	sentences, err := db.ListSentences(conn, res.DiscourseIDs[0])
	if err != nil || len(sentences) != 1 {
		t.Fatalf("expected 1 sentence, got %d (%v)", len(sentences), err)
	}
	words, err := db.ListWordsBySentence(conn, sentences[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 3 {
		t.Fatalf("expected 3 words, got %d", len(words))
	}
	for _, w := range words {
		if w.Lexeme == "cats" && (w.X != 7 || w.Y != 8) {
			t.Errorf("expected cats placed from the grid, got (%v, %v)", w.X, w.Y)
		}
	}

	triplets, err := db.ListTriplets(conn, sentences[0].ID)
	if err != nil || len(triplets) != 1 {
		t.Fatalf("expected 1 triplet, got %d (%v)", len(triplets), err)
	}
	sections, err := db.ListSectionsBySentence(conn, sentences[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sections[triplets[0].ID]) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections[triplets[0].ID]))
	}
	relations, err := db.ListRelationsBySentence(conn, sentences[0].ID)
	if err != nil || len(relations) != 1 {
		t.Fatalf("expected 1 relation, got %d (%v)", len(relations), err)
	}
	if words[relations[0].WordIDModified].Lexeme != "dogs" {
		t.Errorf("relation not remapped to store ids")
	}
	exempt, err := db.ListExemptFeatures(conn, res.DiscourseIDs[0])
	if err != nil || len(exempt) != 1 {
		t.Fatalf("expected 1 exempt feature, got %d (%v)", len(exempt), err)
	}
}

func TestIngestResume(t *testing.T) {
	conn := setupDB(t)
	ingester := NewIngester(conn, nil, nil)

	first := []intake.Document{sampleDocument(10), sampleDocument(11)}
	if _, err := ingester.Ingest(context.Background(), first); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	// Documents 10 and 11 already exist; only 12 is new.
	again := []intake.Document{sampleDocument(10), sampleDocument(11), sampleDocument(12)}
	res, err := ingester.Ingest(context.Background(), again)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if res.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", res.Skipped)
	}
	if len(res.DiscourseIDs) != 1 || res.DiscourseIDs[0] != 12 {
		t.Errorf("expected [12], got %v", res.DiscourseIDs)
	}
}

func TestIngestRejectsInvalidDocument(t *testing.T) {
	conn := setupDB(t)
	bad := sampleDocument(0)
	bad.Sentences[0].Triplets[0].Object = []int64{99}

	_, err := NewIngester(conn, nil, nil).Ingest(context.Background(), []intake.Document{sampleDocument(0), bad})
	if err == nil {
		t.Fatal("expected validation error")
	}

	ids, err := db.ListDiscourseIDs(conn)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) > 1 {
		t.Errorf("expected at most the valid document to be written, got %v", ids)
	}
}

func TestIngestNamesFailingDocument(t *testing.T) {
	conn := setupDB(t)
	if _, err := conn.Exec("DROP TABLE exempt_features"); err != nil {
		t.Fatal(err)
	}

	plain := sampleDocument(21)
	plain.ExemptFeatures = nil
	ingester := NewIngester(conn, nil, nil)
	ingester.BatchSize = 1

	_, err := ingester.Ingest(context.Background(), []intake.Document{plain, sampleDocument(22)})
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected *WriteError, got %v", err)
	}
	if we.Index != 1 || we.DiscourseID != 22 {
		t.Errorf("expected document 1 (discourse 22), got document %d (discourse %d)", we.Index, we.DiscourseID)
	}

	ids, err := db.ListDiscourseIDs(conn)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != 21 {
		t.Errorf("expected only discourse 21 to be committed, got %v", ids)
	}
}

func TestIngestContextCancel(t *testing.T) {
	conn := setupDB(t)

	docs := make([]intake.Document, 100)
	for i := range docs {
		docs[i] = sampleDocument(0)
	}

	ingester := NewIngester(conn, nil, nil)
	ingester.BatchSize = 10

	// Create a context that is ALREADY canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := ingester.Ingest(ctx, docs)
	if len(res.DiscourseIDs) != 0 {
		t.Errorf("Expected 0 documents with cancelled context, got %d", len(res.DiscourseIDs))
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

func TestIngestEmpty(t *testing.T) {
	conn := setupDB(t)
	res, err := NewIngester(conn, nil, nil).Ingest(context.Background(), nil)
	if err != nil || len(res.DiscourseIDs) != 0 {
		t.Fatalf("expected empty result, got %v, %v", res, err)
	}
}
