package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/timmy/logarchive/internal/config"
	"github.com/timmy/logarchive/internal/domain"
	"github.com/timmy/logarchive/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// InitDB opens the database for the configured driver and sizes its pool.
// The archiver is the only writer, so one or two connections are enough.
// Parameters:
//   - cfg: database configuration including driver and connection settings.
// Returns:
//   - *gorm.DB: initialized database handle.
//   - error: a storage kind error if connecting or migrating fails.
func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	}

	var db *gorm.DB
	var err error

	logger.Info("[DB] Initializing database with driver: %q", cfg.Driver)

	switch cfg.Driver {
	case "sqlite":
		db, err = initSQLite(cfg, gormConfig)
	default:
		db, err = initPostgres(cfg, gormConfig)
	}
	if err != nil {
		return nil, domain.NewError(domain.KindStorage, "open database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, domain.NewError(domain.KindStorage, "open database", fmt.Errorf("failed to get sql.DB instance: %w", err))
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.AutoMigrate {
		logger.Info("[DB] AutoMigrate enabled")
		if err := db.AutoMigrate(&domain.RawLog{}); err != nil {
			return nil, domain.NewError(domain.KindStorage, "migrate database", err)
		}
	}

	return db, nil
}

func initPostgres(cfg *config.DatabaseConfig, gormConfig *gorm.Config) (*gorm.DB, error) {
	// Simple protocol keeps transaction poolers (pgbouncer, Supabase 6543) working.
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return db, nil
}

func initSQLite(cfg *config.DatabaseConfig, gormConfig *gorm.Config) (*gorm.DB, error) {
	if cfg.Path != "" && cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logger.Warn("[DB] Failed to enable WAL journal mode: %v", err)
	}
	return db, nil
}
