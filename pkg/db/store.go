package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/japaniel/discoursehash/pkg/errors"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// collect runs a query and scans every row with scan.
func collect[T any](db DBExecutor, what string, scan func(*sql.Rows) (T, error), query string, args ...interface{}) ([]T, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.MarkCollaborator(err, what)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, errors.MarkCollaboratorf(err, "scan %s", what)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.MarkCollaborator(err, what)
	}
	return out, nil
}

func insertID(db DBExecutor, what, query string, args ...interface{}) (int64, error) {
	res, err := db.Exec(query, args...)
	if err != nil {
		return 0, errors.MarkCollaborator(err, what)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.MarkCollaborator(err, what)
	}
	return id, nil
}

// --- input records -----------------------------------------------------------

// CreateDiscourse inserts a discourse and returns its id. A positive d.ID is kept.
func CreateDiscourse(db DBExecutor, d Discourse) (int64, error) {
	return insertID(db, "insert discourse",
		`INSERT INTO discourses (id, hypernym_synset_id, x, y, document_hash, author_public_hash, author_title,
		  author_first_name, author_middle_name, author_surname, author_zone, date_unix_epoch)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableID(d.ID), d.HypernymSynsetID, d.X, d.Y, d.DocumentHash, d.AuthorPublicHash, d.AuthorTitle,
		d.AuthorFirstName, d.AuthorMiddleName, d.AuthorSurname, d.AuthorZone, d.DateUnixEpoch)
}

// GetDiscourse returns a discourse by id. A missing row is marked ErrNotFound.
func GetDiscourse(db DBExecutor, id int64) (Discourse, error) {
	var d Discourse
	err := db.QueryRow(
		`SELECT id, hypernym_synset_id, x, y, document_hash, author_public_hash, author_title,
		  author_first_name, author_middle_name, author_surname, author_zone, date_unix_epoch
		 FROM discourses WHERE id = ?`, id,
	).Scan(&d.ID, &d.HypernymSynsetID, &d.X, &d.Y, &d.DocumentHash, &d.AuthorPublicHash, &d.AuthorTitle,
		&d.AuthorFirstName, &d.AuthorMiddleName, &d.AuthorSurname, &d.AuthorZone, &d.DateUnixEpoch)
	if err != nil {
		return Discourse{}, errors.MarkCollaboratorf(err, "select discourse %d", id)
	}
	return d, nil
}

// ListDiscourseIDs returns every discourse id in ascending order.
func ListDiscourseIDs(db DBExecutor) ([]int64, error) {
	return collect(db, "select discourse ids", func(rows *sql.Rows) (int64, error) {
		var id int64
		return id, rows.Scan(&id)
	}, `SELECT id FROM discourses ORDER BY id`)
}

// CreateSentence inserts a sentence and returns its id.
func CreateSentence(db DBExecutor, s Sentence) (int64, error) {
	return insertID(db, "insert sentence",
		`INSERT INTO sentences (id, discourse_id, is_question) VALUES (?, ?, ?)`,
		nullableID(s.ID), s.DiscourseID, s.IsQuestion)
}

// ListSentences returns a discourse's sentences in id order.
func ListSentences(db DBExecutor, discourseID int64) ([]Sentence, error) {
	return collect(db, "select sentences", func(rows *sql.Rows) (Sentence, error) {
		var s Sentence
		return s, rows.Scan(&s.ID, &s.DiscourseID, &s.IsQuestion)
	}, `SELECT id, discourse_id, is_question FROM sentences WHERE discourse_id = ? ORDER BY id`, discourseID)
}

// CreateWord inserts a word and returns its id.
func CreateWord(db DBExecutor, w Word) (int64, error) {
	return insertID(db, "insert word",
		`INSERT INTO words (id, sentence_id, synset_id, index_of_word, lexeme, instance_name, instance_index,
		  pos, x, y, is_transition, new_word_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableID(w.ID), w.SentenceID, w.SynsetID, w.IndexOfWord, w.Lexeme, w.InstanceName, w.InstanceIndex,
		w.POS, w.X, w.Y, w.IsTransition, w.NewWordID)
}

// ListWordsBySentence returns a sentence's words keyed by word id.
func ListWordsBySentence(db DBExecutor, sentenceID int64) (map[int64]Word, error) {
	words, err := collect(db, "select words", func(rows *sql.Rows) (Word, error) {
		var w Word
		return w, rows.Scan(&w.ID, &w.SentenceID, &w.SynsetID, &w.IndexOfWord, &w.Lexeme, &w.InstanceName,
			&w.InstanceIndex, &w.POS, &w.X, &w.Y, &w.IsTransition, &w.NewWordID)
	}, `SELECT id, sentence_id, synset_id, index_of_word, lexeme, instance_name, instance_index,
	     pos, x, y, is_transition, new_word_id
	    FROM words WHERE sentence_id = ? ORDER BY id`, sentenceID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Word, len(words))
	for _, w := range words {
		out[w.ID] = w
	}
	return out, nil
}

// AddWordFeature records a feature of a word.
func AddWordFeature(db DBExecutor, f WordFeature) error {
	_, err := db.Exec(`INSERT INTO word_features (word_id, relation, feature, value) VALUES (?, ?, ?, ?)`,
		f.WordID, f.Relation, f.Feature, f.Value)
	return errors.MarkCollaborator(err, "insert word feature")
}

// ListFeaturesBySentence returns the features of a sentence's words keyed by word id.
func ListFeaturesBySentence(db DBExecutor, sentenceID int64) (map[int64][]WordFeature, error) {
	features, err := collect(db, "select word features", func(rows *sql.Rows) (WordFeature, error) {
		var f WordFeature
		return f, rows.Scan(&f.WordID, &f.Relation, &f.Feature, &f.Value)
	}, `SELECT f.word_id, f.relation, f.feature, f.value
	    FROM word_features f
	    INNER JOIN words w ON w.id = f.word_id
	    WHERE w.sentence_id = ?
	    ORDER BY f.word_id, f.id`, sentenceID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]WordFeature)
	for _, f := range features {
		out[f.WordID] = append(out[f.WordID], f)
	}
	return out, nil
}

// AddWordRelation records a dependency edge.
func AddWordRelation(db DBExecutor, r WordRelation) error {
	_, err := db.Exec(`INSERT INTO word_relations (word_id, word_id_modified, relation) VALUES (?, ?, ?)`,
		r.WordID, r.WordIDModified, r.Relation)
	return errors.MarkCollaborator(err, "insert word relation")
}

// ListRelationsBySentence returns the dependency edges leaving a sentence's words.
func ListRelationsBySentence(db DBExecutor, sentenceID int64) ([]WordRelation, error) {
	return collect(db, "select word relations", func(rows *sql.Rows) (WordRelation, error) {
		var r WordRelation
		return r, rows.Scan(&r.WordID, &r.WordIDModified, &r.Relation)
	}, `SELECT r.word_id, r.word_id_modified, r.relation
	    FROM word_relations r
	    INNER JOIN words w ON w.id = r.word_id
	    WHERE w.sentence_id = ?
	    ORDER BY r.id`, sentenceID)
}

// CreateTriplet inserts a triplet and returns its id.
func CreateTriplet(db DBExecutor, t Triplet) (int64, error) {
	return insertID(db, "insert triplet",
		`INSERT INTO triplets (id, sentence_id, tense, is_passive) VALUES (?, ?, ?, ?)`,
		nullableID(t.ID), t.SentenceID, t.Tense, t.IsPassive)
}

// ListTriplets returns a sentence's triplets in id order.
func ListTriplets(db DBExecutor, sentenceID int64) ([]Triplet, error) {
	return collect(db, "select triplets", func(rows *sql.Rows) (Triplet, error) {
		var t Triplet
		return t, rows.Scan(&t.ID, &t.SentenceID, &t.Tense, &t.IsPassive)
	}, `SELECT id, sentence_id, tense, is_passive FROM triplets WHERE sentence_id = ? ORDER BY id`, sentenceID)
}

// AddSection places a word in a triplet role.
func AddSection(db DBExecutor, s Section) (int64, error) {
	return insertID(db, "insert section",
		`INSERT INTO sections (triplet_id, word_id, section_type) VALUES (?, ?, ?)`,
		s.TripletID, s.WordID, s.SectionType)
}

// ListSectionsBySentence returns the sections of a sentence's triplets keyed by triplet id.
func ListSectionsBySentence(db DBExecutor, sentenceID int64) (map[int64][]Section, error) {
	sections, err := collect(db, "select sections", func(rows *sql.Rows) (Section, error) {
		var s Section
		return s, rows.Scan(&s.ID, &s.TripletID, &s.WordID, &s.SectionType)
	}, `SELECT s.id, s.triplet_id, s.word_id, s.section_type
	    FROM sections s
	    INNER JOIN triplets t ON t.id = s.triplet_id
	    WHERE t.sentence_id = ?
	    ORDER BY s.triplet_id, s.section_type, s.word_id`, sentenceID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]Section)
	for _, s := range sections {
		out[s.TripletID] = append(out[s.TripletID], s)
	}
	return out, nil
}

// AddExemptFeature records a discourse-level virtuality exemption.
func AddExemptFeature(db DBExecutor, e ExemptFeature) error {
	_, err := db.Exec(`INSERT INTO exempt_features (discourse_id, feature, value) VALUES (?, ?, ?)`,
		e.DiscourseID, e.Feature, e.Value)
	return errors.MarkCollaborator(err, "insert exempt feature")
}

// ListExemptFeatures returns a discourse's exemptions.
func ListExemptFeatures(db DBExecutor, discourseID int64) ([]ExemptFeature, error) {
	return collect(db, "select exempt features", func(rows *sql.Rows) (ExemptFeature, error) {
		var e ExemptFeature
		return e, rows.Scan(&e.DiscourseID, &e.Feature, &e.Value)
	}, `SELECT discourse_id, feature, value FROM exempt_features WHERE discourse_id = ? ORDER BY id`, discourseID)
}

// UpsertMeaningGridItem sets the position of a word sense.
func UpsertMeaningGridItem(db DBExecutor, item MeaningGridItem) error {
	_, err := db.Exec(`INSERT INTO meaning_grid (synset_id, x, y) VALUES (?, ?, ?)
		ON CONFLICT(synset_id) DO UPDATE SET x = excluded.x, y = excluded.y`,
		item.SynsetID, item.X, item.Y)
	return errors.MarkCollaborator(err, "upsert meaning grid item")
}

// ListMeaningGrid returns every meaning grid item.
func ListMeaningGrid(db DBExecutor) ([]MeaningGridItem, error) {
	return collect(db, "select meaning grid", func(rows *sql.Rows) (MeaningGridItem, error) {
		var m MeaningGridItem
		return m, rows.Scan(&m.SynsetID, &m.X, &m.Y)
	}, `SELECT synset_id, x, y FROM meaning_grid ORDER BY synset_id`)
}

// --- encoder output ----------------------------------------------------------

// InsertOrFoldEntity inserts e, or folds it into the discourse's existing
// entity with the same positive instance index. It returns the entity id.
// Call it inside a transaction so the check and the write are atomic.
func InsertOrFoldEntity(db DBExecutor, e Entity) (int64, error) {
	if e.InstanceIndex > 0 {
		var id int64
		err := db.QueryRow(`SELECT id FROM entities WHERE discourse_id = ? AND instance_index = ?`,
			e.DiscourseID, e.InstanceIndex).Scan(&id)
		switch {
		case err == nil:
			_, err := db.Exec(`UPDATE entities SET synset_id = ?, word_id = ?, triplet_id = ?, rank = ?, x = ?, y = ?
				WHERE id = ?`, e.SynsetID, e.WordID, e.TripletID, e.Rank, e.X, e.Y, id)
			if err != nil {
				return 0, errors.MarkCollaboratorf(err, "fold entity %d", id)
			}
			return id, nil
		case !errors.Is(err, sql.ErrNoRows):
			return 0, errors.MarkCollaborator(err, "select entity by instance")
		}
	}

	return insertID(db, "insert entity",
		`INSERT INTO entities (discourse_id, instance_index, synset_id, word_id, triplet_id, rank, x, y)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.DiscourseID, e.InstanceIndex, e.SynsetID, e.WordID, e.TripletID, e.Rank, e.X, e.Y)
}

// ListEntities returns a discourse's entities keyed by id.
func ListEntities(db DBExecutor, discourseID int64) (map[int64]Entity, error) {
	entities, err := collect(db, "select entities", func(rows *sql.Rows) (Entity, error) {
		var e Entity
		return e, rows.Scan(&e.ID, &e.DiscourseID, &e.InstanceIndex, &e.SynsetID, &e.WordID, &e.TripletID,
			&e.Rank, &e.X, &e.Y)
	}, `SELECT id, discourse_id, instance_index, synset_id, word_id, triplet_id, rank, x, y
	    FROM entities WHERE discourse_id = ? ORDER BY id`, discourseID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Entity, len(entities))
	for _, e := range entities {
		out[e.ID] = e
	}
	return out, nil
}

// CreateEncodingRun records a new run for a discourse, numbered after the previous one.
func CreateEncodingRun(db DBExecutor, runID string, discourseID int64, at time.Time) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("runID must be non-empty")
	}
	_, err := db.Exec(`INSERT INTO encoding_runs (id, discourse_id, seq, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM encoding_runs WHERE discourse_id = ?), ?)`,
		runID, discourseID, discourseID, at.UTC())
	return errors.MarkCollaboratorf(err, "insert encoding run for discourse %d", discourseID)
}

// LatestRun returns the most recent run of a discourse. A discourse never
// encoded yields an error marked ErrNoEncoding.
func LatestRun(db DBExecutor, discourseID int64) (EncodingRun, error) {
	var run EncodingRun
	err := db.QueryRow(`SELECT id, discourse_id, created_at FROM encoding_runs
		WHERE discourse_id = ? ORDER BY seq DESC LIMIT 1`, discourseID).Scan(&run.ID, &run.DiscourseID, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return EncodingRun{}, errors.Wrapf(errors.ErrNoEncoding, "discourse %d", discourseID)
	}
	if err != nil {
		return EncodingRun{}, errors.MarkCollaboratorf(err, "select latest run of discourse %d", discourseID)
	}
	return run, nil
}

// InsertUnitTensor appends a unit tensor and returns its id.
func InsertUnitTensor(db DBExecutor, u UnitTensor) (int64, error) {
	if u.WhereEntityID != 0 && u.WhenEntityID != 0 {
		return 0, errors.Newf("unit tensor has both where (%d) and when (%d) entities", u.WhereEntityID, u.WhenEntityID)
	}
	return insertID(db, "insert unit tensor",
		`INSERT INTO unit_tensors (run_id, sentence_id, discourse_id, subject_entity_id, predicate_entity_id,
		  object_entity_id, where_entity_id, when_entity_id, tense, mood, excited_x, excited_y)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.RunID, u.SentenceID, u.DiscourseID, u.SubjectEntityID, u.PredicateEntityID,
		u.ObjectEntityID, u.WhereEntityID, u.WhenEntityID, u.Tense, u.Mood, u.ExcitedX, u.ExcitedY)
}

// ListUnitTensors returns a run's unit tensors in id order.
func ListUnitTensors(db DBExecutor, runID string) ([]UnitTensor, error) {
	return collect(db, "select unit tensors", func(rows *sql.Rows) (UnitTensor, error) {
		var u UnitTensor
		return u, rows.Scan(&u.ID, &u.RunID, &u.SentenceID, &u.DiscourseID, &u.SubjectEntityID,
			&u.PredicateEntityID, &u.ObjectEntityID, &u.WhereEntityID, &u.WhenEntityID, &u.Tense, &u.Mood,
			&u.ExcitedX, &u.ExcitedY)
	}, `SELECT id, run_id, sentence_id, discourse_id, subject_entity_id, predicate_entity_id, object_entity_id,
	     where_entity_id, when_entity_id, tense, mood, excited_x, excited_y
	    FROM unit_tensors WHERE run_id = ? ORDER BY id`, runID)
}

// OpenInterval starts an ethereal interval at branchID and returns the interval id.
func OpenInterval(db DBExecutor, runID string, branchID int64) (int64, error) {
	return insertID(db, "insert ethereal interval",
		`INSERT INTO ethereal_intervals (run_id, branch_id) VALUES (?, ?)`, runID, branchID)
}

// CloseInterval sets the rejoin id of an open interval.
func CloseInterval(db DBExecutor, intervalID, rejoinID int64) error {
	res, err := db.Exec(`UPDATE ethereal_intervals SET rejoin_id = ? WHERE id = ? AND rejoin_id = 0`, rejoinID, intervalID)
	if err != nil {
		return errors.MarkCollaboratorf(err, "close ethereal interval %d", intervalID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.MarkCollaboratorf(err, "close ethereal interval %d", intervalID)
	}
	if n != 1 {
		return errors.Newf("ethereal interval %d is not open", intervalID)
	}
	return nil
}

// ListIntervals returns a run's ethereal intervals in branch order.
func ListIntervals(db DBExecutor, runID string) ([]EtherealInterval, error) {
	return collect(db, "select ethereal intervals", func(rows *sql.Rows) (EtherealInterval, error) {
		var e EtherealInterval
		return e, rows.Scan(&e.ID, &e.RunID, &e.BranchID, &e.RejoinID)
	}, `SELECT id, run_id, branch_id, rejoin_id FROM ethereal_intervals WHERE run_id = ? ORDER BY branch_id`, runID)
}

// InsertHashItem stores a hash item of a run.
func InsertHashItem(db DBExecutor, h HashItem) error {
	_, err := db.Exec(`INSERT INTO hash_items (run_id, discourse_id, hash_type, is_hypernym, order_by,
		  radius, angle, excited_radius, excited_angle)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.RunID, h.DiscourseID, h.HashType, h.IsHypernym, h.OrderBy, h.Radius, h.Angle, h.ExcitedRadius, h.ExcitedAngle)
	return errors.MarkCollaborator(err, "insert hash item")
}

// ListHashItems returns a run's hash items of one type in output order.
func ListHashItems(db DBExecutor, runID string, hashType HashType) ([]HashItem, error) {
	return collect(db, "select hash items", func(rows *sql.Rows) (HashItem, error) {
		var h HashItem
		return h, rows.Scan(&h.ID, &h.RunID, &h.DiscourseID, &h.HashType, &h.IsHypernym, &h.OrderBy,
			&h.Radius, &h.Angle, &h.ExcitedRadius, &h.ExcitedAngle)
	}, `SELECT id, run_id, discourse_id, hash_type, is_hypernym, order_by, radius, angle, excited_radius, excited_angle
	    FROM hash_items WHERE run_id = ? AND hash_type = ? ORDER BY order_by`, runID, hashType)
}

// AddDiagnostic records a skipped triplet.
func AddDiagnostic(db DBExecutor, d Diagnostic) error {
	_, err := db.Exec(`INSERT INTO encode_diagnostics (run_id, triplet_id, reason) VALUES (?, ?, ?)`,
		d.RunID, d.TripletID, d.Reason)
	return errors.MarkCollaborator(err, "insert diagnostic")
}

// ListDiagnostics returns a run's diagnostics.
func ListDiagnostics(db DBExecutor, runID string) ([]Diagnostic, error) {
	return collect(db, "select diagnostics", func(rows *sql.Rows) (Diagnostic, error) {
		var d Diagnostic
		return d, rows.Scan(&d.RunID, &d.TripletID, &d.Reason)
	}, `SELECT run_id, triplet_id, reason FROM encode_diagnostics WHERE run_id = ? ORDER BY id`, runID)
}

// nullableID returns nil for 0 (let SQLite assign the id) else the value.
func nullableID(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
