package storage

import (
	"fmt"
	"path"
	"strings"
)

// NewStorage creates an S3-compatible ObjectStorage from cfg, detecting the
// provider from the endpoint when Type is empty.
// Parameters:
//   - cfg: storage configuration; Type may be empty.
// Returns:
//   - *S3Storage: storage client for the configured bucket.
//   - error: non-nil if the client cannot be configured.
func NewStorage(cfg *S3Config) (*S3Storage, error) {
	if cfg.Type == "" {
		cfg.Type = detectStorageType(cfg.Endpoint)
	}
	return NewS3Storage(cfg)
}

// ArtifactKey is the object key for the zipped log of id.
func ArtifactKey(prefix string, id int64) string {
	return path.Join(strings.Trim(prefix, "/"), fmt.Sprintf("log_%d.log.zip", id))
}

func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case endpoint == "" || strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
