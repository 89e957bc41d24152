package service

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/logarchive/internal/domain"
)

const (
	// DefaultStaleness is how old a log must be before it is treated as final.
	// Logs of games still in progress keep changing upstream.
	DefaultStaleness = time.Hour
	// DefaultListingLimit is how many recent logs are inspected for a frontier.
	DefaultListingLimit = 100
)

// LogLister lists recent upstream log summaries, newest first.
type LogLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.LogSummary, error)
}

// FrontierConfig holds configuration for the frontier estimator.
type FrontierConfig struct {
	Staleness    time.Duration
	ListingLimit int
}

// FrontierEstimator picks the highest log id that is safe to ingest now.
type FrontierEstimator struct {
	source    LogLister
	staleness time.Duration
	limit     int
	now       func() time.Time
}

// NewFrontierEstimator creates a new frontier estimator. Zero config values
// fall back to DefaultStaleness and DefaultListingLimit.
func NewFrontierEstimator(src LogLister, cfg *FrontierConfig) *FrontierEstimator {
	f := &FrontierEstimator{
		source:    src,
		staleness: DefaultStaleness,
		limit:     DefaultListingLimit,
		now:       time.Now,
	}
	if cfg != nil {
		if cfg.Staleness > 0 {
			f.staleness = cfg.Staleness
		}
		if cfg.ListingLimit > 0 {
			f.limit = cfg.ListingLimit
		}
	}
	return f
}

// Estimate returns the id of the first listed log, in upstream order, that is
// strictly older than the staleness margin.
func (f *FrontierEstimator) Estimate(ctx context.Context) (int64, error) {
	logs, err := f.source.ListRecent(ctx, f.limit)
	if err != nil {
		return 0, fmt.Errorf("estimate frontier: %w", err)
	}

	now := f.now()
	for _, l := range logs {
		if now.Sub(l.CreatedAt) > f.staleness {
			return l.ID, nil
		}
	}

	return 0, domain.NewError(domain.KindNoFrontier, "estimate frontier",
		fmt.Errorf("none of %d recent logs is older than %s", len(logs), f.staleness))
}
