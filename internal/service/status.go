package service

import (
	"sync"

	"github.com/timmy/logarchive/internal/domain"
)

// StatusSnapshot is a copy of the tracker state.
type StatusSnapshot struct {
	Runs        int64            `json:"runs"`
	FailedRuns  int64            `json:"failed_runs"`
	LastRun     *domain.RunStats `json:"last_run,omitempty"`
	LastSuccess *domain.RunStats `json:"last_success,omitempty"`
}

// StatusTracker keeps the outcome of recent archiver runs. It is written by
// the supervisor and read by the status endpoint.
type StatusTracker struct {
	mu          sync.RWMutex
	runs        int64
	failed      int64
	lastRun     *domain.RunStats
	lastSuccess *domain.RunStats
}

// NewStatusTracker creates an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{}
}

// Record stores the stats of a finished run.
func (t *StatusTracker) Record(stats *domain.RunStats) {
	if stats == nil {
		return
	}
	copied := *stats

	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++
	t.lastRun = &copied
	if copied.Error != "" {
		t.failed++
	} else {
		t.lastSuccess = &copied
	}
}

// Snapshot returns the current state.
func (t *StatusTracker) Snapshot() StatusSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return StatusSnapshot{
		Runs:        t.runs,
		FailedRuns:  t.failed,
		LastRun:     t.lastRun,
		LastSuccess: t.lastSuccess,
	}
}
