package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vietddude/sweeper/internal/core/domain"
)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

// Scheduler runs a job on a fixed interval until its context ends.
type Scheduler struct {
	name     string
	interval time.Duration
	job      Job
	log      *slog.Logger
}

// NewScheduler creates a scheduler. A non-positive interval disables it.
func NewScheduler(name string, interval time.Duration, job Job) *Scheduler {
	return &Scheduler{
		name:     name,
		interval: interval,
		job:      job,
		log:      slog.Default().With("component", "scheduler", "job", name),
	}
}

// Start runs the scheduler loop. It blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	s.log.Info("scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	err := s.job(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSweepInProgress):
		s.log.Debug("previous run still active, skipping tick")
	case ctx.Err() != nil:
	default:
		s.log.Error("scheduled run failed", "error", err)
	}
}
