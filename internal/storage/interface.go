package storage

import (
	"context"
	"io"
)

// ObjectStorage is where raw artifact bytes are mirrored.
type ObjectStorage interface {
	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}
