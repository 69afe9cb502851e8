// Package intake reads parsed discourses and meaning grid files produced by
// the upstream linguistic parse.
package intake

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/japaniel/discoursehash/pkg/db"
	"github.com/japaniel/discoursehash/pkg/errors"
)

// Document is one parsed discourse. Word ids are local to the document and
// are mapped to store ids on import.
type Document struct {
	Discourse      DiscourseMeta `json:"discourse"`
	ExemptFeatures []Feature     `json:"exempt_features,omitempty"`
	Sentences      []Sentence    `json:"sentences"`
}

// DiscourseMeta is the discourse record. A zero ID lets the store assign one.
type DiscourseMeta struct {
	ID               int64   `json:"id,omitempty"`
	HypernymSynsetID int64   `json:"hypernym_synset_id"`
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	DocumentHash     string  `json:"document_hash,omitempty"`
	Author           Author  `json:"author"`
	DateUnixEpoch    int64   `json:"date_unix_epoch,omitempty"`
}

// Author describes who wrote the discourse.
type Author struct {
	PublicHash string `json:"public_hash,omitempty"`
	Title      string `json:"title,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	MiddleName string `json:"middle_name,omitempty"`
	Surname    string `json:"surname,omitempty"`
	Zone       string `json:"zone,omitempty"`
}

// Sentence is a parsed sentence.
type Sentence struct {
	IsQuestion bool       `json:"is_question,omitempty"`
	Words      []Word     `json:"words"`
	Relations  []Relation `json:"relations,omitempty"`
	Triplets   []Triplet  `json:"triplets"`
}

// Word is a token placed on the meaning grid.
type Word struct {
	ID            int64     `json:"id"`
	SynsetID      int64     `json:"synset_id,omitempty"`
	Index         int       `json:"index"`
	Lexeme        string    `json:"lexeme"`
	InstanceName  string    `json:"instance_name,omitempty"`
	InstanceIndex int64     `json:"instance_index,omitempty"`
	POS           string    `json:"pos,omitempty"`
	X             float64   `json:"x,omitempty"`
	Y             float64   `json:"y,omitempty"`
	IsTransition  bool      `json:"is_transition,omitempty"`
	NewWordID     int64     `json:"new_word_id,omitempty"`
	Features      []Feature `json:"features,omitempty"`
}

// Feature is a morphological feature with the word's dependency relation.
type Feature struct {
	Relation string `json:"relation,omitempty"`
	Feature  string `json:"feature"`
	Value    string `json:"value"`
}

// Relation is a dependency edge between two words of the sentence.
type Relation struct {
	WordID         int64  `json:"word_id"`
	WordIDModified int64  `json:"word_id_modified"`
	Relation       string `json:"relation"`
}

// Triplet lists the words of each section by local word id.
type Triplet struct {
	Tense     string  `json:"tense"`
	Passive   bool    `json:"passive,omitempty"`
	Subject   []int64 `json:"subject"`
	Predicate []int64 `json:"predicate"`
	Object    []int64 `json:"object"`
}

// ParseTense maps a tense name to db.Tense. Empty means present.
func ParseTense(name string) (db.Tense, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "past":
		return db.TensePast, nil
	case "", "present", "pres":
		return db.TensePresent, nil
	case "future", "fut":
		return db.TenseFuture, nil
	default:
		return 0, errors.Newf("unknown tense %q", name)
	}
}

// Validate checks that every local word reference resolves within its
// sentence and that word ids are unique in the document.
func (d *Document) Validate() error {
	seen := make(map[int64]bool)
	for si, s := range d.Sentences {
		local := make(map[int64]bool, len(s.Words))
		for _, w := range s.Words {
			if w.ID <= 0 {
				return errors.Newf("sentence %d: word %q has no id", si, w.Lexeme)
			}
			if seen[w.ID] {
				return errors.Newf("sentence %d: duplicate word id %d", si, w.ID)
			}
			seen[w.ID] = true
			local[w.ID] = true
		}
		for _, r := range s.Relations {
			if !local[r.WordID] || !local[r.WordIDModified] {
				return errors.Newf("sentence %d: relation %d->%d references an unknown word", si, r.WordID, r.WordIDModified)
			}
		}
		for ti, t := range s.Triplets {
			if _, err := ParseTense(t.Tense); err != nil {
				return errors.Wrapf(err, "sentence %d triplet %d", si, ti)
			}
			for _, ids := range [][]int64{t.Subject, t.Predicate, t.Object} {
				for _, id := range ids {
					if !local[id] {
						return errors.Newf("sentence %d triplet %d: unknown word id %d", si, ti, id)
					}
				}
			}
		}
	}
	return nil
}

// DecodeDocuments reads documents in any of three layouts:
// {"discourses": [...]}, a bare array, or a single document.
func DecodeDocuments(r io.Reader) ([]Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read documents")
	}

	var wrapper struct {
		Discourses []Document `json:"discourses"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Discourses) > 0 {
		return wrapper.Discourses, nil
	}

	var docs []Document
	if err := json.Unmarshal(raw, &docs); err == nil {
		return docs, nil
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "parse documents as object, array or single document")
	}
	if len(doc.Sentences) == 0 && doc.Discourse == (DiscourseMeta{}) {
		return nil, errors.New("no documents found")
	}
	return []Document{doc}, nil
}

// LoadDocuments reads documents from a file, which may be gzip or tar.gz compressed.
func LoadDocuments(path string) ([]Document, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := DecodeDocuments(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return docs, nil
}
