package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ResellBot/internal/domain"
	"ResellBot/internal/ports"
)

const defaultPersistWorkers = 4

// PersistSink upserts triage outcomes. Writes are independent per id and run in
// parallel up to the worker limit; a failed write is logged and counted only.
type PersistSink struct {
	repo    ports.ListingRepository
	workers int
	logger  *slog.Logger
	now     func() time.Time
}

// NewPersistSink wires the listing repository.
func NewPersistSink(repo ports.ListingRepository, workers int, logger *slog.Logger) *PersistSink {
	if workers <= 0 {
		workers = defaultPersistWorkers
	}
	return &PersistSink{repo: repo, workers: workers, logger: logger, now: time.Now}
}

// Persist writes every triage and returns how many succeeded and failed.
func (s *PersistSink) Persist(ctx context.Context, sessionID string, items []*domain.Triage) (int, int) {
	if s.repo == nil || len(items) == 0 {
		return 0, 0
	}

	var persisted, failed atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, t := range items {
		g.Go(func() error {
			if gCtx.Err() != nil {
				failed.Add(1)
				return nil
			}
			rec, err := t.Record(sessionID, s.now().UTC())
			if err == nil {
				err = s.repo.SaveTriage(gCtx, rec)
			}
			if err != nil {
				failed.Add(1)
				if s.logger != nil {
					s.logger.Error("persist triage failed",
						"stage", "persist", "listing_id", t.Candidate.ID, "outcome", "failed", "error", err)
				}
				return nil
			}
			persisted.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(persisted.Load()), int(failed.Load())
}
