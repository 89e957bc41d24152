package repository

import (
	"context"
	"sync"

	"github.com/timmy/logarchive/internal/config"
	"github.com/timmy/logarchive/internal/domain"
	"gorm.io/gorm"
)

// LazyLogRepository opens the database on first use and retries the
// connection on every call until it succeeds. While the database is
// unreachable each call returns a storage kind error, so an outage fails
// the current run instead of the process.
type LazyLogRepository struct {
	open func() (*gorm.DB, error)

	mu   sync.Mutex
	repo *LogRepository
}

// NewLazyLogRepository creates a repository that connects with cfg on demand.
func NewLazyLogRepository(cfg *config.DatabaseConfig) *LazyLogRepository {
	return &LazyLogRepository{
		open: func() (*gorm.DB, error) { return InitDB(cfg) },
	}
}

func (r *LazyLogRepository) get() (*LogRepository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo != nil {
		return r.repo, nil
	}
	db, err := r.open()
	if err != nil {
		if domain.KindOf(err) == "" {
			err = domain.NewError(domain.KindStorage, "open database", err)
		}
		return nil, err
	}
	r.repo = NewLogRepository(db)
	return r.repo, nil
}

// HighestStoredID connects if needed, then returns MAX(id) over logs_raw.
func (r *LazyLogRepository) HighestStoredID(ctx context.Context) (int64, bool, error) {
	repo, err := r.get()
	if err != nil {
		return 0, false, err
	}
	return repo.HighestStoredID(ctx)
}

// Insert connects if needed, then stores one record body.
func (r *LazyLogRepository) Insert(ctx context.Context, id int64, body []byte) error {
	repo, err := r.get()
	if err != nil {
		return err
	}
	return repo.Insert(ctx, id, body)
}
