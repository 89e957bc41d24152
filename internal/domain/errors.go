package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can tell a failed run, which the
// supervisor simply reruns, from startup misconfiguration.
type ErrorKind string

const (
	// KindTransport is a network or HTTP-layer failure.
	KindTransport ErrorKind = "transport"
	// KindProtocol is an unexpected response shape or an explicit upstream failure flag.
	KindProtocol ErrorKind = "protocol"
	// KindStorage is a database connectivity or constraint failure.
	KindStorage ErrorKind = "storage"
	// KindNoFrontier means no listed record is old enough to ingest.
	KindNoFrontier ErrorKind = "no_frontier"
	// KindExtractionSkipped marks an artifact that could not be extracted.
	KindExtractionSkipped ErrorKind = "extraction_skipped"
	// KindConfig is missing or invalid startup configuration.
	KindConfig ErrorKind = "config"
)

// Error is an error tagged with an ErrorKind.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and the operation that failed.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether rerunning the whole archive pass later may
// succeed. Configuration errors and unclassified errors are not retryable.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindProtocol, KindStorage, KindNoFrontier:
		return true
	default:
		return false
	}
}
