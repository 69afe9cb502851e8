package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/japaniel/discoursehash/pkg/db"
	"github.com/japaniel/discoursehash/pkg/intake"
)

var errQueueRejected = errors.New("queue rejected job")

// rejectingPool accepts no jobs.
type rejectingPool struct {
	attempts atomic.Int32
	closed   atomic.Bool
}

func (p *rejectingPool) Start(ctx context.Context) {}
func (p *rejectingPool) Submit(job Job) error      { return p.SubmitCtx(context.Background(), job) }
func (p *rejectingPool) SubmitCtx(ctx context.Context, job Job) error {
	p.attempts.Add(1)
	return errQueueRejected
}
func (p *rejectingPool) Close() { p.closed.Store(true) }

func TestIngestStopsOnSubmitError(t *testing.T) {
	conn := setupDB(t)

	docs := make([]intake.Document, 10)
	for i := range docs {
		docs[i] = sampleDocument(0)
	}

	pool := &rejectingPool{}
	ingester := NewIngester(conn, nil, nil)
	ingester.PoolFactory = func(workers, queue int) WorkerPoolInterface { return pool }

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := ingester.Ingest(ctx, docs)
	if !errors.Is(err, errQueueRejected) {
		t.Fatalf("expected the submit error, got %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("ingest ran until the deadline instead of stopping")
	}
	if n := pool.attempts.Load(); n != 1 {
		t.Errorf("expected ingest to stop after the first rejected document, got %d attempts", n)
	}
	if !pool.closed.Load() {
		t.Error("expected the pool to be closed")
	}

	ids, err := db.ListDiscourseIDs(conn)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no documents written, got %v", ids)
	}
}
