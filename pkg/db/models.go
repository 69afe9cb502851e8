package db

import "time"

// Tense of a triplet.
type Tense int

const (
	TensePast    Tense = 1
	TensePresent Tense = 2
	TenseFuture  Tense = 3
)

// SectionType is the role a section plays in its triplet.
type SectionType int

const (
	SectionSubject   SectionType = 1
	SectionPredicate SectionType = 2
	SectionObject    SectionType = 3
)

// String returns the section type name.
func (s SectionType) String() string {
	switch s {
	case SectionSubject:
		return "subject"
	case SectionPredicate:
		return "predicate"
	case SectionObject:
		return "object"
	default:
		return "unknown"
	}
}

// HashType partitions hash items into real and virtual fingerprints.
type HashType int

const (
	HashReal    HashType = 1
	HashVirtual HashType = 2
)

// HashTypeFor maps the virtual flag to a HashType.
func HashTypeFor(isVirtual bool) HashType {
	if isVirtual {
		return HashVirtual
	}
	return HashReal
}

// String returns "real" or "virtual".
func (h HashType) String() string {
	if h == HashVirtual {
		return "virtual"
	}
	return "real"
}

// Discourse is the document-level unit being encoded.
type Discourse struct {
	ID               int64
	HypernymSynsetID int64
	X                float64
	Y                float64
	DocumentHash     string
	AuthorPublicHash string
	AuthorTitle      string
	AuthorFirstName  string
	AuthorMiddleName string
	AuthorSurname    string
	AuthorZone       string
	DateUnixEpoch    int64
}

// Sentence belongs to a discourse.
type Sentence struct {
	ID          int64
	DiscourseID int64
	IsQuestion  bool
}

// Word is a token of a sentence placed on the meaning grid.
type Word struct {
	ID            int64
	SentenceID    int64
	SynsetID      int64 // 0 = not on the meaning grid
	IndexOfWord   int
	Lexeme        string
	InstanceName  string
	InstanceIndex int64 // 0 = not a coreference instance
	POS           string
	X             float64
	Y             float64
	IsTransition  bool
	NewWordID     int64
}

// WordFeature is one morphological feature of a word, with the word's relation tag.
type WordFeature struct {
	WordID   int64
	Relation string
	Feature  string
	Value    string
}

// WordRelation is a directed dependency edge.
type WordRelation struct {
	WordID         int64
	WordIDModified int64
	Relation       string
}

// Section places a word in a triplet role.
type Section struct {
	ID          int64
	TripletID   int64
	WordID      int64
	SectionType SectionType
}

// Triplet is a subject-predicate-object unit of one sentence.
type Triplet struct {
	ID         int64
	SentenceID int64
	Tense      Tense
	IsPassive  bool
}

// ExemptFeature keeps matching moods from marking triplets virtual.
type ExemptFeature struct {
	DiscourseID int64
	Feature     string
	Value       string
}

// MeaningGridItem is the fixed position of a word sense.
type MeaningGridItem struct {
	SynsetID int64
	X        float64
	Y        float64
}

// Entity is a discourse-scoped participant, possibly folded from coreferences.
type Entity struct {
	ID            int64
	DiscourseID   int64
	InstanceIndex int64
	SynsetID      int64
	WordID        int64
	TripletID     int64
	Rank          float64
	X             float64
	Y             float64
}

// EncodingRun groups the output of one encode of a discourse.
type EncodingRun struct {
	ID          string
	DiscourseID int64
	CreatedAt   time.Time
}

// UnitTensor is one node of the discourse's event sequence.
// Exactly one of WhereEntityID and WhenEntityID may be non-zero.
type UnitTensor struct {
	ID                int64
	RunID             string
	SentenceID        int64
	DiscourseID       int64
	SubjectEntityID   int64
	PredicateEntityID int64
	ObjectEntityID    int64
	WhereEntityID     int64
	WhenEntityID      int64
	Tense             Tense
	Mood              string
	ExcitedX          float64
	ExcitedY          float64
}

// EntityIDs returns the five entity slots.
func (u UnitTensor) EntityIDs() [5]int64 {
	return [5]int64{u.ObjectEntityID, u.PredicateEntityID, u.SubjectEntityID, u.WhenEntityID, u.WhereEntityID}
}

// EtherealInterval marks a run of virtual unit tensors. RejoinID is 0 while open.
type EtherealInterval struct {
	ID       int64
	RunID    string
	BranchID int64
	RejoinID int64
}

// Open reports whether the interval has not rejoined the real timeline.
func (e EtherealInterval) Open() bool { return e.RejoinID == 0 }

// Contains reports whether a unit tensor id lies in the interval. The rejoin
// node is the first real node after the run and is not contained.
func (e EtherealInterval) Contains(unitTensorID int64) bool {
	if unitTensorID < e.BranchID {
		return false
	}
	return e.Open() || unitTensorID < e.RejoinID
}

// HashItem is one ranked participant of a fingerprint in polar coordinates.
type HashItem struct {
	ID            int64
	RunID         string
	DiscourseID   int64
	HashType      HashType
	IsHypernym    bool
	OrderBy       int
	Radius        float64
	Angle         float64
	ExcitedRadius float64
	ExcitedAngle  float64
}

// Diagnostic records a triplet the encoder skipped.
type Diagnostic struct {
	RunID     string
	TripletID int64
	Reason    string
}
