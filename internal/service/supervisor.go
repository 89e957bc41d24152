package service

import (
	"context"
	"time"

	"github.com/timmy/logarchive/internal/domain"
	"github.com/timmy/logarchive/internal/logger"
)

// DefaultInterval is the wait between two archiver runs.
const DefaultInterval = 60 * time.Second

// Runner performs one archiver pass.
type Runner interface {
	Run(ctx context.Context) (*domain.RunStats, error)
}

// Supervisor reruns the archiver forever: run, record, wait, repeat. A run
// never overlaps the previous one, and a failed run is simply retried after
// the interval since the next run re-derives its starting point from the store.
type Supervisor struct {
	runner   Runner
	tracker  *StatusTracker
	interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewSupervisor creates a new supervisor. tracker may be nil.
func NewSupervisor(runner Runner, tracker *StatusTracker, interval time.Duration) *Supervisor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Supervisor{
		runner:   runner,
		tracker:  tracker,
		interval: interval,
		sleep:    sleepContext,
	}
}

// Start blocks until ctx is canceled. Run errors are logged and the run is
// retried after the interval.
func (s *Supervisor) Start(ctx context.Context) {
	ctx = logger.SetComponent(ctx, "supervisor")
	logger.CtxInfo(ctx, "Starting archive loop, interval=%s", s.interval)

	for {
		stats, err := s.runner.Run(ctx)
		switch {
		case err == nil || ctx.Err() != nil:
		case domain.IsKind(err, domain.KindNoFrontier):
			logger.CtxInfo(ctx, "No log old enough to archive yet, retrying after interval")
		default:
			logger.FromContext(ctx).WithError(err).WithFields(logger.Fields{
				"error_kind": domain.KindOf(err),
				"retryable":  domain.IsRetryable(err),
			}).Error("Archive run failed, retrying after interval")
		}
		if s.tracker != nil {
			s.tracker.Record(stats)
		}

		if err := s.sleep(ctx, s.interval); err != nil {
			logger.CtxInfo(ctx, "Archive loop stopped")
			return
		}
	}
}
