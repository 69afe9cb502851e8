package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/japaniel/discoursehash/pkg/errors"
)

// WriteFunc writes one document inside a batch transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// DocumentWrite is a queued write tagged with the document it belongs to.
type DocumentWrite struct {
	// Index is the document's position in the ingest input.
	Index int
	// DiscourseID is the discourse id the document declares, 0 when the store assigns it.
	DiscourseID int64
	Write       WriteFunc
}

// WriteError names the document whose write failed. The batch holding it is
// rolled back as a whole.
type WriteError struct {
	Index       int
	DiscourseID int64
	Err         error
}

func (e *WriteError) Error() string {
	if e.DiscourseID > 0 {
		return fmt.Sprintf("document %d (discourse %d): %v", e.Index, e.DiscourseID, e.Err)
	}
	return fmt.Sprintf("document %d: %v", e.Index, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// BatchStats counts what a BatchWriter committed.
type BatchStats struct {
	Batches   int
	Documents int
}

// BatchWriter groups document writes into transactions of up to size
// documents. Batches commit in submission order on a single goroutine, so
// documents reach the store in the order they were submitted.
type BatchWriter struct {
	db   *sql.DB
	size int
	// OnError is called for every failed or dropped batch.
	OnError func(error)

	mu      sync.Mutex
	pending []DocumentWrite
	closed  bool

	batches chan []DocumentWrite
	ticker  *time.Ticker
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// guarded by stateMu
	stateMu  sync.Mutex
	firstErr error
	stats    BatchStats
}

// NewBatchWriter starts a writer over conn. A batch is flushed once it holds
// size documents, and every flushInterval if that is positive. A nil conn
// runs writes with a nil transaction.
func NewBatchWriter(conn *sql.DB, size int, flushInterval time.Duration) *BatchWriter {
	if size <= 0 {
		size = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	bw := &BatchWriter{
		db:      conn,
		size:    size,
		pending: make([]DocumentWrite, 0, size),
		batches: make(chan []DocumentWrite, 2),
		ctx:     ctx,
		cancel:  cancel,
	}

	bw.wg.Add(1)
	go bw.commitLoop()

	if flushInterval > 0 {
		bw.ticker = time.NewTicker(flushInterval)
		bw.wg.Add(1)
		go bw.flushLoop()
	}
	return bw
}

// Submit queues a document write. It blocks while two batches already wait
// for the committer.
func (bw *BatchWriter) Submit(w DocumentWrite) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.pending = append(bw.pending, w)
	if len(bw.pending) >= bw.size {
		bw.enqueueLocked()
	}
	return nil
}

// enqueueLocked hands the pending documents to the committer. bw.mu must be held.
func (bw *BatchWriter) enqueueLocked() {
	if len(bw.pending) == 0 {
		return
	}
	batch := bw.pending
	bw.pending = make([]DocumentWrite, 0, bw.size)

	select {
	case bw.batches <- batch:
	case <-bw.ctx.Done():
		bw.fail(errors.Newf("batch writer: dropping batch of %d documents (first: document %d) after cancellation",
			len(batch), batch[0].Index))
	}
}

// fail records the first error and reports every error to OnError.
func (bw *BatchWriter) fail(err error) {
	bw.stateMu.Lock()
	if bw.firstErr == nil {
		bw.firstErr = err
	}
	bw.stateMu.Unlock()
	if bw.OnError != nil {
		bw.OnError(err)
	}
}

func (bw *BatchWriter) commitLoop() {
	defer bw.wg.Done()
	for batch := range bw.batches {
		if err := bw.commit(batch); err != nil {
			bw.fail(err)
			continue
		}
		bw.stateMu.Lock()
		bw.stats.Batches++
		bw.stats.Documents += len(batch)
		bw.stateMu.Unlock()
	}
}

// commit writes a batch in one transaction. The first failing document
// rolls back the batch and is named in the returned *WriteError.
func (bw *BatchWriter) commit(batch []DocumentWrite) error {
	// Pending batches are still committed after cancel, so the writes use
	// their own context.
	ctx := context.Background()
	if bw.db == nil {
		for _, w := range batch {
			if err := w.Write(ctx, nil); err != nil {
				return &WriteError{Index: w.Index, DiscourseID: w.DiscourseID, Err: err}
			}
		}
		return nil
	}

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.MarkCollaborator(err, "begin batch")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, w := range batch {
		if err := w.Write(ctx, tx); err != nil {
			return &WriteError{Index: w.Index, DiscourseID: w.DiscourseID, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.MarkCollaboratorf(err, "commit batch of documents %d..%d",
			batch[0].Index, batch[len(batch)-1].Index)
	}
	committed = true
	return nil
}

func (bw *BatchWriter) flushLoop() {
	defer bw.wg.Done()
	for {
		select {
		case <-bw.ctx.Done():
			return
		case <-bw.ticker.C:
			bw.mu.Lock()
			bw.enqueueLocked()
			bw.mu.Unlock()
		}
	}
}

// Stats returns what has been committed so far.
func (bw *BatchWriter) Stats() BatchStats {
	bw.stateMu.Lock()
	defer bw.stateMu.Unlock()
	return bw.stats
}

// Close flushes pending documents, waits for every batch to commit and
// returns the first error the writer saw.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	if bw.ticker != nil {
		bw.ticker.Stop()
	}
	bw.enqueueLocked()
	bw.mu.Unlock()

	bw.cancel()
	close(bw.batches)
	bw.wg.Wait()

	bw.stateMu.Lock()
	defer bw.stateMu.Unlock()
	return bw.firstErr
}

// ErrBatchWriterClosed is returned by Submit and Close after Close.
var ErrBatchWriterClosed = errors.New("batch writer closed")
