// Package sweeper finalizes generation jobs that were abandoned in PENDING
// or PROCESSING, refunding their unused reservation.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"wedding-ai-backend/internal/database"
	"wedding-ai-backend/internal/generation"
)

// DefaultThreshold is the age after which a non-terminal job is stale.
const DefaultThreshold = time.Hour

const batchSize = 100

type Result struct {
	Processed int
	Refunded  int
	// Skipped counts jobs that errored or were finalized concurrently.
	Skipped int
}

// Locker keeps concurrent sweeps on different instances apart.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

type Sweeper struct {
	store     *database.Store
	service   *generation.Service
	threshold time.Duration
	locker    Locker
	logger    *slog.Logger
}

func New(store *database.Store, service *generation.Service, threshold time.Duration, locker Locker, logger *slog.Logger) *Sweeper {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:     store,
		service:   service,
		threshold: threshold,
		locker:    locker,
		logger:    logger,
	}
}

// WithThreshold returns a copy of s using a different staleness threshold.
func (s *Sweeper) WithThreshold(threshold time.Duration) *Sweeper {
	c := *s
	if threshold > 0 {
		c.threshold = threshold
	}
	return &c
}

// Run finalizes every job created more than the threshold ago that is still
// non-terminal. A failed stale-job query aborts the run; an error on one job
// is logged and the batch continues. Running twice in a row processes
// nothing the second time.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	var result Result

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx)
		if err != nil {
			return result, err
		}
		if !ok {
			s.logger.Info("stale job sweep skipped: another instance holds the lock")
			return result, nil
		}
		defer release()
	}

	cutoff := s.store.Now().Add(-s.threshold)
	var after *database.StaleCursor

	for {
		jobs, err := s.store.Queries().ListStaleJobs(ctx, cutoff, after, batchSize)
		if err != nil {
			return result, err
		}

		for _, job := range jobs {
			fin, err := s.service.Finalize(ctx, job.ID)
			if err != nil {
				s.logger.Error("failed to finalize stale job", "job_id", job.ID, "error", err)
				result.Skipped++
				continue
			}
			if fin.AlreadyFinal {
				result.Skipped++
				continue
			}

			result.Processed++
			result.Refunded += fin.Refunded
			s.logger.Info("stale job finalized",
				"job_id", job.ID,
				"status", fin.Job.Status,
				"refunded", fin.Refunded)
		}

		if len(jobs) < batchSize {
			break
		}
		after = database.CursorAfter(jobs[len(jobs)-1])
	}

	s.logger.Info("stale job sweep finished",
		"processed", result.Processed,
		"refunded", result.Refunded,
		"skipped", result.Skipped,
		"cutoff", cutoff)
	return result, nil
}

// Loop runs a sweep every interval until ctx is cancelled.
func (s *Sweeper) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.Error("scheduled stale job sweep failed", "error", err)
			}
		}
	}
}
