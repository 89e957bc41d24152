package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/timmy/logarchive/internal/api"
	"github.com/timmy/logarchive/internal/config"
	"github.com/timmy/logarchive/internal/extract"
	"github.com/timmy/logarchive/internal/logger"
	"github.com/timmy/logarchive/internal/repository"
	"github.com/timmy/logarchive/internal/service"
	"github.com/timmy/logarchive/internal/source/logstf"
	"github.com/timmy/logarchive/internal/storage"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	configPath := flag.String("config", "", "Path to config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [FROM TO]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Without arguments, keeps the database in sync with upstream.")
		fmt.Fprintln(flag.CommandLine.Output(), "With FROM TO, downloads the artifacts of that id range and exits.")
		flag.PrintDefaults()
	}
	flag.Parse()

	from, to, backfill, err := parseRange(flag.Args())
	if err != nil {
		flag.Usage()
		appLogger.WithError(err).Fatal("Invalid arguments")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(backfill); err != nil {
		appLogger.WithError(err).Fatal("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	src := logstf.NewClient(&logstf.Config{
		APIHost:      cfg.Upstream.APIHost,
		ArtifactHost: cfg.Upstream.ArtifactHost,
		ListingPath:  cfg.Upstream.ListingPath,
		RecordPath:   cfg.Upstream.RecordPath,
		ArtifactPath: cfg.Upstream.ArtifactPath,
		Timeout:      cfg.Upstream.Timeout,
		UserAgent:    cfg.Upstream.UserAgent,
	})

	var mirror storage.ObjectStorage
	if cfg.Storage.Enabled {
		s3Storage, err := storage.NewStorage(&storage.S3Config{
			Type:      storage.StorageType(cfg.Storage.Type),
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		// The mirror is best-effort: a missing bucket surfaces as per-artifact upload failures.
		if err := s3Storage.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Warn("Failed to ensure storage bucket, uploads may fail")
		}
		mirror = s3Storage
	}

	extractor := &extract.Extractor{MaxFileSize: cfg.Archive.MaxArtifactFileSize}
	archiveCfg := &service.ArchiveConfig{
		LogTarget:    cfg.Archive.LogTarget,
		Pace:         cfg.Archive.Pace,
		MirrorPrefix: cfg.Storage.Prefix,
	}

	if backfill {
		ctx = logger.WithField(ctx, logger.FieldMode, "backfill")
		archiver := service.NewArchiveService(src, nil, nil, extractor, mirror, appLogger, archiveCfg)
		if _, err := archiver.Backfill(ctx, from, to); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.WithError(err).Fatal("Backfill failed")
		}
		return
	}

	ctx = logger.WithField(ctx, logger.FieldMode, "sync")

	// Connect on first use so a database outage fails runs, not the process.
	logRepo := repository.NewLazyLogRepository(&cfg.Database)

	frontier := service.NewFrontierEstimator(src, &service.FrontierConfig{
		Staleness:    cfg.Archive.Staleness,
		ListingLimit: cfg.Archive.ListingLimit,
	})
	archiver := service.NewArchiveService(src, logRepo, frontier, extractor, mirror, appLogger, archiveCfg)
	tracker := service.NewStatusTracker()

	if cfg.Server.Enabled {
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: api.SetupRouter(tracker, logRepo, appLogger, cfg.Server.Mode),
		}
		go func() {
			appLogger.WithField("port", cfg.Server.Port).Info("Starting status server")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				appLogger.WithError(err).Error("Status server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				appLogger.WithError(err).Warn("Status server shutdown error")
			}
		}()
	}

	appLogger.WithFields(logger.Fields{
		"api_host":   cfg.Upstream.APIHost,
		"log_target": cfg.Archive.LogTarget,
		"interval":   cfg.Archive.Interval.String(),
		"mirror":     mirror != nil,
	}).Info("Starting archiver")

	service.NewSupervisor(archiver, tracker, cfg.Archive.Interval).Start(ctx)
	appLogger.Info("Archiver exited")
}

// parseRange reads the optional FROM TO positional arguments.
func parseRange(args []string) (from, to int64, ok bool, err error) {
	switch len(args) {
	case 0:
		return 0, 0, false, nil
	case 2:
	default:
		return 0, 0, false, fmt.Errorf("expected FROM TO, got %d arguments", len(args))
	}

	if from, err = strconv.ParseInt(args[0], 10, 64); err != nil {
		return 0, 0, false, fmt.Errorf("invalid FROM %q: %w", args[0], err)
	}
	if to, err = strconv.ParseInt(args[1], 10, 64); err != nil {
		return 0, 0, false, fmt.Errorf("invalid TO %q: %w", args[1], err)
	}
	if from <= 0 || to < from {
		return 0, 0, false, fmt.Errorf("invalid range %d..%d", from, to)
	}
	return from, to, true, nil
}
