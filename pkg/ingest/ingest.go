// Package ingest writes parsed discourse documents into the record store.
// Documents are validated and normalised on a worker pool and written in
// input order through a BatchWriter.
package ingest

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/discoursehash/pkg/db"
	"github.com/japaniel/discoursehash/pkg/errors"
	"github.com/japaniel/discoursehash/pkg/grid"
	"github.com/japaniel/discoursehash/pkg/intake"
	"github.com/japaniel/discoursehash/pkg/logger"
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	// SubmitCtx attempts to enqueue a job but returns promptly if ctx is canceled.
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// Ingester imports documents into the database.
type Ingester struct {
	DB *sql.DB
	// Grid, if set, places words that carry a synset id but no position.
	Grid          *grid.Grid
	BatchSize     int
	FlushInterval time.Duration
	Workers       int
	Logger        *zap.SugaredLogger
	// OnProgress is called with the number of documents queued for writing and the total.
	OnProgress func(current, total int)

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewIngester creates a new Ingester.
func NewIngester(conn *sql.DB, g *grid.Grid, log *zap.SugaredLogger) *Ingester {
	return &Ingester{
		DB:            conn,
		Grid:          g,
		BatchSize:     50,
		FlushInterval: 100 * time.Millisecond,
		Workers:       4,
		Logger:        logger.Component(log, "ingest"),
	}
}

// Result summarizes an ingest.
type Result struct {
	// DiscourseIDs lists the imported discourses in input order.
	DiscourseIDs []int64
	// Skipped counts documents whose discourse id already existed.
	Skipped int
}

// preparedDocument holds the result of processing a document before it is written.
type preparedDocument struct {
	Index int
	Doc   intake.Document
	Error error
}

// Ingest validates and writes docs. A document carrying a discourse id
// that already exists is skipped, so re-running an import resumes it.
// The first validation, submission or write error is returned.
func (ig *Ingester) Ingest(ctx context.Context, docs []intake.Document) (Result, error) {
	log := logger.OrNop(ig.Logger)
	var result Result
	var resultMu sync.Mutex

	if len(docs) == 0 {
		return result, nil
	}

	workers := ig.Workers
	if workers <= 0 {
		workers = 1
	}
	var wp WorkerPoolInterface
	if ig.PoolFactory != nil {
		wp = ig.PoolFactory(workers, workers*2)
	} else {
		wp = NewWorkerPool(workers, workers*2)
	}
	resultCh := make(chan preparedDocument, workers*2)
	doneCh := make(chan error, 1)

	bw := NewBatchWriter(ig.DB, ig.BatchSize, ig.FlushInterval)
	bw.OnError = func(e error) {
		log.Debugw("Batch failed", logger.FieldError, e)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp.Start(ctx)

	// Consumer: restore input order and hand documents to the batch writer.
	go func() {
		defer close(doneCh)
		buffer := make(map[int]preparedDocument)
		next := 0
		for res := range resultCh {
			if res.Error != nil {
				cancel()
				doneCh <- res.Error
				return
			}
			buffer[res.Index] = res

			for {
				item, ok := buffer[next]
				if !ok {
					break
				}
				delete(buffer, next)

				doc := item.Doc
				err := bw.Submit(DocumentWrite{
					Index:       item.Index,
					DiscourseID: doc.Discourse.ID,
					Write: func(ctx context.Context, tx *sql.Tx) error {
						id, skipped, err := WriteDocument(tx, doc)
						if err != nil {
							return err
						}
						resultMu.Lock()
						defer resultMu.Unlock()
						if skipped {
							result.Skipped++
							return nil
						}
						result.DiscourseIDs = append(result.DiscourseIDs, id)
						return nil
					},
				})
				if err != nil {
					cancel()
					doneCh <- err
					return
				}
				next++
				if ig.OnProgress != nil {
					ig.OnProgress(next, len(docs))
				}
			}
		}
		doneCh <- ctx.Err()
	}()

	var submitErr error
Loop:
	for i := range docs {
		select {
		case <-ctx.Done():
			break Loop
		default:
		}

		idx := i
		job := func(ctx context.Context) error {
			res := ig.prepare(idx, docs[idx])
			select {
			case resultCh <- res:
			case <-ctx.Done():
			}
			return nil
		}

		if err := wp.SubmitCtx(ctx, job); err != nil {
			if errors.Is(err, ctx.Err()) || errors.Is(err, ErrPoolClosed) {
				break Loop
			}
			submitErr = err
			cancel()
			break Loop
		}
	}

	// No worker can send after Close returns, so closing resultCh is safe.
	wp.Close()
	close(resultCh)
	consumerErr := <-doneCh

	closeErr := bw.Close()

	for _, err := range []error{submitErr, consumerErr, closeErr} {
		if err != nil {
			log.Warnw("Ingest failed", logger.FieldError, err)
			return Result{}, err
		}
	}

	stats := bw.Stats()
	log.Infow("Ingested documents",
		logger.FieldCount, len(result.DiscourseIDs),
		"skipped", result.Skipped,
		"batches", stats.Batches)
	return result, nil
}

// prepare validates a document and places its words. It runs on a worker.
func (ig *Ingester) prepare(index int, doc intake.Document) preparedDocument {
	if err := doc.Validate(); err != nil {
		return preparedDocument{Index: index, Error: errors.Wrapf(err, "document %d", index)}
	}

	sentences := make([]intake.Sentence, len(doc.Sentences))
	for i, s := range doc.Sentences {
		words := append([]intake.Word(nil), s.Words...)
		for j, w := range words {
			if ig.Grid == nil || w.SynsetID == 0 || w.X != 0 || w.Y != 0 {
				continue
			}
			if p, ok := ig.Grid.Position(w.SynsetID); ok {
				words[j].X, words[j].Y = p.X, p.Y
			}
		}
		sort.SliceStable(words, func(a, b int) bool { return words[a].Index < words[b].Index })
		s.Words = words
		sentences[i] = s
	}
	doc.Sentences = sentences
	return preparedDocument{Index: index, Doc: doc}
}

// WriteDocument writes a validated document and returns the discourse id.
// skipped is true when the document's discourse id already exists.
func WriteDocument(conn db.DBExecutor, doc intake.Document) (id int64, skipped bool, err error) {
	meta := doc.Discourse
	if meta.ID > 0 {
		_, err := db.GetDiscourse(conn, meta.ID)
		if err == nil {
			return meta.ID, true, nil
		}
		if !errors.IsNotFound(err) {
			return 0, false, err
		}
	}

	discourseID, err := db.CreateDiscourse(conn, db.Discourse{
		ID:               meta.ID,
		HypernymSynsetID: meta.HypernymSynsetID,
		X:                meta.X,
		Y:                meta.Y,
		DocumentHash:     meta.DocumentHash,
		AuthorPublicHash: meta.Author.PublicHash,
		AuthorTitle:      meta.Author.Title,
		AuthorFirstName:  meta.Author.FirstName,
		AuthorMiddleName: meta.Author.MiddleName,
		AuthorSurname:    meta.Author.Surname,
		AuthorZone:       meta.Author.Zone,
		DateUnixEpoch:    meta.DateUnixEpoch,
	})
	if err != nil {
		return 0, false, err
	}

	for _, e := range doc.ExemptFeatures {
		if err := db.AddExemptFeature(conn, db.ExemptFeature{DiscourseID: discourseID, Feature: e.Feature, Value: e.Value}); err != nil {
			return 0, false, err
		}
	}

	for _, s := range doc.Sentences {
		if err := writeSentence(conn, discourseID, s); err != nil {
			return 0, false, err
		}
	}
	return discourseID, false, nil
}

func writeSentence(conn db.DBExecutor, discourseID int64, s intake.Sentence) error {
	sentenceID, err := db.CreateSentence(conn, db.Sentence{DiscourseID: discourseID, IsQuestion: s.IsQuestion})
	if err != nil {
		return err
	}

	// local word id -> store word id
	ids := make(map[int64]int64, len(s.Words))
	for _, w := range s.Words {
		id, err := db.CreateWord(conn, db.Word{
			SentenceID:    sentenceID,
			SynsetID:      w.SynsetID,
			IndexOfWord:   w.Index,
			Lexeme:        w.Lexeme,
			InstanceName:  w.InstanceName,
			InstanceIndex: w.InstanceIndex,
			POS:           w.POS,
			X:             w.X,
			Y:             w.Y,
			IsTransition:  w.IsTransition,
			NewWordID:     w.NewWordID,
		})
		if err != nil {
			return err
		}
		ids[w.ID] = id
		for _, f := range w.Features {
			if err := db.AddWordFeature(conn, db.WordFeature{WordID: id, Relation: f.Relation, Feature: f.Feature, Value: f.Value}); err != nil {
				return err
			}
		}
	}

	for _, r := range s.Relations {
		if err := db.AddWordRelation(conn, db.WordRelation{WordID: ids[r.WordID], WordIDModified: ids[r.WordIDModified], Relation: r.Relation}); err != nil {
			return err
		}
	}

	for _, t := range s.Triplets {
		tense, err := intake.ParseTense(t.Tense)
		if err != nil {
			return err
		}
		tripletID, err := db.CreateTriplet(conn, db.Triplet{SentenceID: sentenceID, Tense: tense, IsPassive: t.Passive})
		if err != nil {
			return err
		}
		for _, group := range []struct {
			st    db.SectionType
			words []int64
		}{{db.SectionSubject, t.Subject}, {db.SectionPredicate, t.Predicate}, {db.SectionObject, t.Object}} {
			for _, local := range group.words {
				if _, err := db.AddSection(conn, db.Section{TripletID: tripletID, WordID: ids[local], SectionType: group.st}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
