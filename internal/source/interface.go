package source

import (
	"context"

	"github.com/timmy/logarchive/internal/domain"
)

// LogSource is the upstream log host. It performs no retries; a failed call
// is reported to the caller, which decides whether to rerun.
type LogSource interface {
	// ListRecent returns the newest limit log summaries in upstream order
	// (newest first). Errors are transport or protocol kind.
	ListRecent(ctx context.Context, limit int) ([]domain.LogSummary, error)

	// FetchBody returns the record's JSON document exactly as served.
	// Errors are transport or protocol kind.
	FetchBody(ctx context.Context, id int64) ([]byte, error)

	// FetchArtifact returns the raw compressed artifact bytes for id.
	// Errors are transport kind only.
	FetchArtifact(ctx context.Context, id int64) ([]byte, error)
}
