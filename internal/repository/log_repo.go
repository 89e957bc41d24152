package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/timmy/logarchive/internal/domain"
	"gorm.io/gorm"
)

// LogRepository persists raw upstream log bodies in logs_raw.
type LogRepository struct {
	db *gorm.DB
}

// NewLogRepository creates a new LogRepository.
func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

// HighestStoredID returns MAX(id) over logs_raw. ok is false when the table
// is empty.
func (r *LogRepository) HighestStoredID(ctx context.Context) (id int64, ok bool, err error) {
	var max sql.NullInt64
	row := r.db.WithContext(ctx).Model(&domain.RawLog{}).Select("MAX(id)").Row()
	if err := row.Scan(&max); err != nil {
		return 0, false, domain.NewError(domain.KindStorage, "read watermark", err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return max.Int64, true, nil
}

// Insert stores one record body. Inserting an id that already exists is an
// error: the watermark-derived walk never revisits stored ids, so a
// duplicate means the store and the walk disagree.
func (r *LogRepository) Insert(ctx context.Context, id int64, body []byte) error {
	record := &domain.RawLog{ID: id, JSON: body}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = fmt.Errorf("log %d already stored: %w", id, err)
		}
		return domain.NewError(domain.KindStorage, "insert log", err)
	}
	return nil
}
