package domain

import (
	"time"

	"gorm.io/datatypes"
)

// RawLog is one upstream log record stored verbatim.
// The highest ID in the table is the archiver's watermark.
type RawLog struct {
	ID   int64          `gorm:"primaryKey;autoIncrement:false" json:"id"`
	JSON datatypes.JSON `gorm:"column:json;not null" json:"json"`
}

// TableName returns the database table name for RawLog.
func (RawLog) TableName() string {
	return "logs_raw"
}

// LogSummary is one entry of the upstream listing: an id and the time the
// upstream reports for it.
type LogSummary struct {
	ID        int64
	CreatedAt time.Time
}
