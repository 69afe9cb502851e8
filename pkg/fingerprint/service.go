// Package fingerprint is the public entry point of discoursehash: it encodes
// stored discourses and serves their real and virtual fingerprints.
//
// Every operation requires the caller's consent to the usage policy and
// fails with errors.ErrConsentDenied, before touching the store, without it.
package fingerprint

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/discoursehash/pkg/db"
	"github.com/japaniel/discoursehash/pkg/encoder"
	"github.com/japaniel/discoursehash/pkg/errors"
	"github.com/japaniel/discoursehash/pkg/geometry"
	"github.com/japaniel/discoursehash/pkg/grid"
	"github.com/japaniel/discoursehash/pkg/hash"
	"github.com/japaniel/discoursehash/pkg/influence"
	"github.com/japaniel/discoursehash/pkg/ingest"
	"github.com/japaniel/discoursehash/pkg/logger"
)

// version is the fixed build identifier reported by Version.
const version = "discoursehash 1.0.0"

// Service encodes discourses stored in conn.
type Service struct {
	db      *sql.DB
	grid    *grid.Grid
	encoder *encoder.Encoder
	logger  *zap.SugaredLogger
}

// New returns a service over conn. g places words without a position and
// supplies the hash reference length; nil means an empty grid.
func New(conn *sql.DB, g *grid.Grid, log *zap.SugaredLogger) *Service {
	if g == nil {
		g = grid.New(nil)
	}
	return &Service{
		db:      conn,
		grid:    g,
		encoder: encoder.New(g, log),
		logger:  logger.Component(log, "fingerprint"),
	}
}

// Version returns the build identifier.
func (s *Service) Version() string { return version }

// EncodeDiscourse encodes one discourse in a single transaction. Nothing is
// written unless the whole discourse encodes.
func (s *Service) EncodeDiscourse(ctx context.Context, discourseID int64, consent bool) (*encoder.Report, error) {
	if !consent {
		return nil, errors.ErrConsentDenied
	}
	return s.encode(ctx, discourseID)
}

func (s *Service) encode(ctx context.Context, discourseID int64) (*encoder.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.MarkCollaborator(err, "begin encode")
	}
	report, err := s.encoder.Encode(ctx, tx, discourseID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.MarkCollaboratorf(err, "commit encode of discourse %d", discourseID)
	}
	return report, nil
}

// GetHash returns the 199-character fingerprint of the discourse's latest
// encoding. It fails with ErrNoEncoding if the discourse was never encoded.
func (s *Service) GetHash(ctx context.Context, discourseID int64, consent bool, isVirtual bool) (string, error) {
	if !consent {
		return "", errors.ErrConsentDenied
	}
	items, err := s.items(ctx, discourseID, isVirtual)
	if err != nil {
		return "", err
	}
	reference := s.grid.MaxX()
	if n := hash.CountDegenerate(items, reference); n > 0 {
		s.logger.Debugw("Degenerate geometry in fingerprint",
			logger.FieldDiscourseID, discourseID,
			logger.FieldHashType, db.HashTypeFor(isVirtual).String(),
			logger.FieldCount, n,
			logger.FieldError, errors.ErrDegenerateGeometry)
	}
	return hash.Compose(items, reference), nil
}

// InfluenceLayers returns the concentric hull layers of the excited item
// positions, outermost first.
func (s *Service) InfluenceLayers(ctx context.Context, discourseID int64, consent bool, isVirtual bool) ([][]geometry.Point, error) {
	if !consent {
		return nil, errors.ErrConsentDenied
	}
	items, err := s.items(ctx, discourseID, isVirtual)
	if err != nil {
		return nil, err
	}
	return influence.Layers(influence.ItemPoints(items, true)), nil
}

// TopContributors returns the strongest non-hypernym items of the fingerprint.
func (s *Service) TopContributors(ctx context.Context, discourseID int64, consent bool, isVirtual bool) ([]db.HashItem, error) {
	if !consent {
		return nil, errors.ErrConsentDenied
	}
	items, err := s.items(ctx, discourseID, isVirtual)
	if err != nil {
		return nil, err
	}
	var ranked []db.HashItem
	for _, item := range items {
		if !item.IsHypernym {
			ranked = append(ranked, item)
		}
	}
	return influence.TopContributors(ranked), nil
}

// items returns the ordered hash items of the latest run.
func (s *Service) items(ctx context.Context, discourseID int64, isVirtual bool) ([]db.HashItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	run, err := db.LatestRun(s.db, discourseID)
	if err != nil {
		return nil, err
	}
	return db.ListHashItems(s.db, run.ID, db.HashTypeFor(isVirtual))
}

// EncodeAll encodes every stored discourse on a pool of workers, one job per
// discourse. Every discourse is attempted; the error of the lowest failing
// discourse id is returned.
func (s *Service) EncodeAll(ctx context.Context, consent bool, workers int) error {
	if !consent {
		return errors.ErrConsentDenied
	}
	start := time.Now()
	ids, err := db.ListDiscourseIDs(s.db)
	if err != nil {
		return err
	}
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	failed := make(map[int64]error)
	encoded := 0

	pool := ingest.NewWorkerPool(workers, workers*2)
	pool.Start(ctx)
	var submitErr error
	for _, id := range ids {
		id := id
		err := pool.SubmitCtx(ctx, func(ctx context.Context) error {
			_, err := s.encode(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[id] = err
				s.logger.Warnw("Encode failed", logger.FieldDiscourseID, id, logger.FieldError, err)
				return nil
			}
			encoded++
			return nil
		})
		if err != nil {
			submitErr = err
			break
		}
	}
	pool.Close()

	if submitErr != nil {
		return submitErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Infow("Encoded discourses",
		logger.FieldCount, encoded,
		"failed", len(failed),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	if len(failed) == 0 {
		return nil
	}
	failedIDs := make([]int64, 0, len(failed))
	for id := range failed {
		failedIDs = append(failedIDs, id)
	}
	sort.Slice(failedIDs, func(i, j int) bool { return failedIDs[i] < failedIDs[j] })
	first := failedIDs[0]
	return errors.WithDetailf(errors.Wrapf(failed[first], "encode discourse %d", first),
		"%d of %d discourses failed", len(failed), len(ids))
}
