package db

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/discoursehash/pkg/errors"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// seedSentence creates a discourse with one sentence and returns both ids.
func seedSentence(t *testing.T, conn DBExecutor) (int64, int64) {
	t.Helper()
	dID, err := CreateDiscourse(conn, Discourse{HypernymSynsetID: 7, X: 3, Y: 4})
	require.NoError(t, err)
	sID, err := CreateSentence(conn, Sentence{DiscourseID: dID})
	require.NoError(t, err)
	return dID, sID
}

func TestInitDB_Idempotent(t *testing.T) {
	conn := setupTestDB(t)
	require.NoError(t, InitDB(conn, nil))

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestGetDiscourse(t *testing.T) {
	conn := setupTestDB(t)
	id, err := CreateDiscourse(conn, Discourse{ID: 42, HypernymSynsetID: 9, X: 1.5, Y: -2, AuthorSurname: "Doe"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	d, err := GetDiscourse(conn, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(9), d.HypernymSynsetID)
	assert.Equal(t, 1.5, d.X)
	assert.Equal(t, "Doe", d.AuthorSurname)

	_, err = GetDiscourse(conn, 43)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsCollaboratorFailure(err))
}

func TestSentenceRecords(t *testing.T) {
	conn := setupTestDB(t)
	dID, sID := seedSentence(t, conn)

	w1, err := CreateWord(conn, Word{SentenceID: sID, SynsetID: 11, Lexeme: "dog", InstanceIndex: 1, X: 1, Y: 2})
	require.NoError(t, err)
	w2, err := CreateWord(conn, Word{SentenceID: sID, SynsetID: 12, Lexeme: "runs", X: 3, Y: 4})
	require.NoError(t, err)

	require.NoError(t, AddWordFeature(conn, WordFeature{WordID: w1, Relation: "nsubj", Feature: "Person", Value: "3"}))
	require.NoError(t, AddWordRelation(conn, WordRelation{WordID: w2, WordIDModified: w1, Relation: "nsubj"}))

	tID, err := CreateTriplet(conn, Triplet{SentenceID: sID, Tense: TensePresent})
	require.NoError(t, err)
	_, err = AddSection(conn, Section{TripletID: tID, WordID: w1, SectionType: SectionSubject})
	require.NoError(t, err)
	_, err = AddSection(conn, Section{TripletID: tID, WordID: w2, SectionType: SectionPredicate})
	require.NoError(t, err)
	require.NoError(t, AddExemptFeature(conn, ExemptFeature{DiscourseID: dID, Feature: "mood", Value: "imp"}))

	sentences, err := ListSentences(conn, dID)
	require.NoError(t, err)
	require.Len(t, sentences, 1)

	words, err := ListWordsBySentence(conn, sID)
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "dog", words[w1].Lexeme)
	assert.Equal(t, int64(1), words[w1].InstanceIndex)

	features, err := ListFeaturesBySentence(conn, sID)
	require.NoError(t, err)
	require.Len(t, features[w1], 1)
	assert.Equal(t, "Person", features[w1][0].Feature)

	relations, err := ListRelationsBySentence(conn, sID)
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, w1, relations[0].WordIDModified)

	triplets, err := ListTriplets(conn, sID)
	require.NoError(t, err)
	require.Len(t, triplets, 1)
	assert.Equal(t, TensePresent, triplets[0].Tense)

	sections, err := ListSectionsBySentence(conn, sID)
	require.NoError(t, err)
	require.Len(t, sections[tID], 2)
	assert.Equal(t, SectionSubject, sections[tID][0].SectionType)

	exempt, err := ListExemptFeatures(conn, dID)
	require.NoError(t, err)
	assert.Equal(t, []ExemptFeature{{DiscourseID: dID, Feature: "mood", Value: "imp"}}, exempt)
}

func TestSectionTypeConstraint(t *testing.T) {
	conn := setupTestDB(t)
	_, sID := seedSentence(t, conn)
	wID, err := CreateWord(conn, Word{SentenceID: sID})
	require.NoError(t, err)
	tID, err := CreateTriplet(conn, Triplet{SentenceID: sID, Tense: TensePast})
	require.NoError(t, err)

	_, err = AddSection(conn, Section{TripletID: tID, WordID: wID, SectionType: 4})
	require.Error(t, err)
	assert.True(t, errors.IsCollaboratorFailure(err))
}

func TestUpsertMeaningGridItem(t *testing.T) {
	conn := setupTestDB(t)
	require.NoError(t, UpsertMeaningGridItem(conn, MeaningGridItem{SynsetID: 5, X: 1, Y: 1}))
	require.NoError(t, UpsertMeaningGridItem(conn, MeaningGridItem{SynsetID: 5, X: 2, Y: 3}))
	require.NoError(t, UpsertMeaningGridItem(conn, MeaningGridItem{SynsetID: 1, X: 9, Y: 9}))

	items, err := ListMeaningGrid(conn)
	require.NoError(t, err)
	assert.Equal(t, []MeaningGridItem{{SynsetID: 1, X: 9, Y: 9}, {SynsetID: 5, X: 2, Y: 3}}, items)
}

func TestInsertOrFoldEntity(t *testing.T) {
	conn := setupTestDB(t)
	dID, _ := seedSentence(t, conn)

	first, err := InsertOrFoldEntity(conn, Entity{DiscourseID: dID, InstanceIndex: 3, SynsetID: 1, Rank: 1, X: 1, Y: 1})
	require.NoError(t, err)
	folded, err := InsertOrFoldEntity(conn, Entity{DiscourseID: dID, InstanceIndex: 3, SynsetID: 2, Rank: 5, X: 2, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, first, folded)

	// Instance index 0 never folds.
	a, err := InsertOrFoldEntity(conn, Entity{DiscourseID: dID, SynsetID: 4})
	require.NoError(t, err)
	b, err := InsertOrFoldEntity(conn, Entity{DiscourseID: dID, SynsetID: 4})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	entities, err := ListEntities(conn, dID)
	require.NoError(t, err)
	require.Len(t, entities, 3)
	assert.Equal(t, 5.0, entities[first].Rank)
	assert.Equal(t, int64(2), entities[first].SynsetID)
}

func TestEncodingRuns(t *testing.T) {
	conn := setupTestDB(t)
	dID, _ := seedSentence(t, conn)

	_, err := LatestRun(conn, dID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoEncoding))

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, CreateEncodingRun(conn, "run-a", dID, now))
	require.NoError(t, CreateEncodingRun(conn, "run-b", dID, now))
	require.Error(t, CreateEncodingRun(conn, "", dID, now))

	run, err := LatestRun(conn, dID)
	require.NoError(t, err)
	assert.Equal(t, "run-b", run.ID)

	var seq int
	require.NoError(t, conn.QueryRow(`SELECT seq FROM encoding_runs WHERE id = 'run-b'`).Scan(&seq))
	assert.Equal(t, 2, seq)
}

func TestRunScopedOutput(t *testing.T) {
	conn := setupTestDB(t)
	dID, sID := seedSentence(t, conn)
	require.NoError(t, CreateEncodingRun(conn, "run", dID, time.Now()))

	_, err := InsertUnitTensor(conn, UnitTensor{RunID: "run", SentenceID: sID, DiscourseID: dID, WhereEntityID: 1, WhenEntityID: 2})
	require.Error(t, err)

	u1, err := InsertUnitTensor(conn, UnitTensor{RunID: "run", SentenceID: sID, DiscourseID: dID, SubjectEntityID: 1,
		PredicateEntityID: 2, ObjectEntityID: 3, Tense: TensePast, Mood: "ind"})
	require.NoError(t, err)
	u2, err := InsertUnitTensor(conn, UnitTensor{RunID: "run", SentenceID: sID, DiscourseID: dID, SubjectEntityID: 1,
		PredicateEntityID: 2, ObjectEntityID: 3, WhenEntityID: 4, Tense: TenseFuture, Mood: "sub"})
	require.NoError(t, err)

	tensors, err := ListUnitTensors(conn, "run")
	require.NoError(t, err)
	require.Len(t, tensors, 2)
	assert.Equal(t, "sub", tensors[1].Mood)
	assert.Equal(t, [5]int64{3, 2, 1, 4, 0}, tensors[1].EntityIDs())

	ivID, err := OpenInterval(conn, "run", u2)
	require.NoError(t, err)
	require.NoError(t, CloseInterval(conn, ivID, u2+1))
	require.Error(t, CloseInterval(conn, ivID, u2+2), "closing twice")

	intervals, err := ListIntervals(conn, "run")
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.False(t, intervals[0].Contains(u1))
	assert.True(t, intervals[0].Contains(u2))
	assert.False(t, intervals[0].Contains(u2+1))

	require.NoError(t, InsertHashItem(conn, HashItem{RunID: "run", DiscourseID: dID, HashType: HashReal, OrderBy: 1, Radius: 2}))
	require.NoError(t, InsertHashItem(conn, HashItem{RunID: "run", DiscourseID: dID, HashType: HashReal, IsHypernym: true, OrderBy: 0, Radius: 5}))
	require.NoError(t, InsertHashItem(conn, HashItem{RunID: "run", DiscourseID: dID, HashType: HashVirtual, OrderBy: 0}))
	require.Error(t, InsertHashItem(conn, HashItem{RunID: "run", DiscourseID: dID, HashType: HashReal, OrderBy: 1}), "duplicate order")

	items, err := ListHashItems(conn, "run", HashReal)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].IsHypernym)
	assert.Equal(t, 5.0, items[0].Radius)

	require.NoError(t, AddDiagnostic(conn, Diagnostic{RunID: "run", TripletID: 9, Reason: "no subject"}))
	diags, err := ListDiagnostics(conn, "run")
	require.NoError(t, err)
	assert.Equal(t, []Diagnostic{{RunID: "run", TripletID: 9, Reason: "no subject"}}, diags)
}

func TestListDiscourseIDs(t *testing.T) {
	conn := setupTestDB(t)
	for _, id := range []int64{5, 2, 9} {
		_, err := CreateDiscourse(conn, Discourse{ID: id})
		require.NoError(t, err)
	}
	ids, err := ListDiscourseIDs(conn)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5, 9}, ids)
}

func TestTransactionRollback(t *testing.T) {
	conn := setupTestDB(t)
	dID, _ := seedSentence(t, conn)

	tx, err := conn.Begin()
	require.NoError(t, err)
	_, err = InsertOrFoldEntity(tx, Entity{DiscourseID: dID, InstanceIndex: 1})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	entities, err := ListEntities(conn, dID)
	require.NoError(t, err)
	assert.Empty(t, entities)
}
