package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/logarchive/internal/domain"
	"github.com/timmy/logarchive/internal/extract"
	"github.com/timmy/logarchive/internal/logger"
	"github.com/timmy/logarchive/internal/source"
	"github.com/timmy/logarchive/internal/storage"
)

// DefaultPace is the delay before every per-log request to upstream.
const DefaultPace = 200 * time.Millisecond

// RecordStore persists raw log bodies. Its highest stored id is the watermark.
type RecordStore interface {
	HighestStoredID(ctx context.Context) (int64, bool, error)
	Insert(ctx context.Context, id int64, body []byte) error
}

// CeilingEstimator returns the highest id that may be ingested this run.
type CeilingEstimator interface {
	Estimate(ctx context.Context) (int64, error)
}

// ArtifactExtractor unpacks an artifact into a directory.
type ArtifactExtractor interface {
	Extract(data []byte, destDir string) extract.Result
}

// ArchiveService mirrors upstream logs into the record store and the local
// artifact directory, one id at a time in ascending order.
type ArchiveService struct {
	source       source.LogSource
	store        RecordStore
	frontier     CeilingEstimator
	extractor    ArtifactExtractor
	mirror       storage.ObjectStorage
	mirrorPrefix string
	logTarget    string
	pace         time.Duration
	logger       *logger.Logger
	sleep        func(ctx context.Context, d time.Duration) error
}

// ArchiveConfig holds configuration for the archive service.
type ArchiveConfig struct {
	LogTarget    string
	Pace         time.Duration
	MirrorPrefix string
}

// NewArchiveService creates a new archive service.
// Parameters:
//   - src: upstream log source.
//   - store: record store; may be nil when only Backfill is used.
//   - frontier: ceiling estimator; may be nil when only Backfill is used.
//   - extractor: unpacks artifacts into cfg.LogTarget.
//   - mirror: object storage for raw artifacts; nil disables mirroring.
//   - log: service logger; nil falls back to the default logger.
//   - cfg: target directory, pacing and mirror prefix.
// Returns:
//   - *ArchiveService: initialized service instance.
func NewArchiveService(
	src source.LogSource,
	store RecordStore,
	frontier CeilingEstimator,
	extractor ArtifactExtractor,
	mirror storage.ObjectStorage,
	log *logger.Logger,
	cfg *ArchiveConfig,
) *ArchiveService {
	return &ArchiveService{
		source:       src,
		store:        store,
		frontier:     frontier,
		extractor:    extractor,
		mirror:       mirror,
		mirrorPrefix: cfg.MirrorPrefix,
		logTarget:    cfg.LogTarget,
		pace:         cfg.Pace,
		logger:       log,
		sleep:        sleepContext,
	}
}

// log returns a logger from context if available, otherwise the service logger
func (s *ArchiveService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != logger.GetDefault() {
		return l
	}
	if s.logger != nil {
		return s.logger
	}
	return logger.GetDefault()
}

// Run performs one archiver pass: it walks from the watermark + 1 up to the
// estimated ceiling, storing each body and then mirroring its artifact.
//
// The first failure to fetch or store a body ends the run with that error.
// Nothing past the failed id is attempted, so the stored ids stay contiguous
// and the next run resumes exactly at the failed id. Artifact failures are
// logged and never end the run.
//
// The returned stats are never nil, even when err is not.
func (s *ArchiveService) Run(ctx context.Context) (*domain.RunStats, error) {
	stats := &domain.RunStats{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	ctx = s.log(ctx).WithContext(ctx)
	ctx = logger.SetComponent(logger.SetRunID(ctx, stats.RunID), "archiver")

	err := s.run(ctx, stats)

	// Summarize the run whether or not it failed.
	finished := time.Now()
	stats.FinishedAt = &finished
	entry := logger.With(logger.Fields{
		"records_stored":      stats.RecordsStored,
		"artifacts_extracted": stats.ArtifactsExtracted,
		"artifacts_skipped":   stats.ArtifactsSkipped,
		"watermark":           stats.Watermark,
		"ceiling":             stats.Ceiling,
	}).WithDuration(finished.Sub(stats.StartedAt).Milliseconds())

	if err != nil {
		stats.Error = err.Error()
		stats.ErrorKind = domain.KindOf(err)
		entry.WithStatus("failed").Warn(ctx, "Archive run failed: %v", err)
		return stats, err
	}
	entry.WithStatus("completed").Info(ctx, "Archive run completed")
	return stats, nil
}

func (s *ArchiveService) run(ctx context.Context, stats *domain.RunStats) error {
	// Step 1: resume after the highest stored id.
	watermark, _, err := s.store.HighestStoredID(ctx)
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}
	stats.StartWatermark = watermark
	stats.Watermark = watermark

	// Step 2: bound the walk by the frontier.
	ceiling, err := s.frontier.Estimate(ctx)
	if err != nil {
		return err
	}
	stats.Ceiling = ceiling

	ctx = logger.WithFields(ctx, logger.Fields{
		"watermark": watermark,
		"ceiling":   ceiling,
	})
	if ceiling <= watermark {
		s.log(ctx).Debug("Archive is up to date")
		return nil
	}
	logger.CtxInfo(ctx, "Archiving up to log %d", ceiling)

	// Step 3: walk ids in order, body first, then artifact.
	for next := watermark + 1; next <= ceiling; next++ {
		if err := s.sleep(ctx, s.pace); err != nil {
			return err
		}

		logCtx := logger.WithField(ctx, logger.FieldLogID, next)
		if err := s.ingestBody(logCtx, next); err != nil {
			return err
		}
		stats.RecordsStored++
		stats.Watermark = next

		s.archiveArtifact(logCtx, next, &stats.ArtifactsExtracted, &stats.ArtifactsSkipped, &stats.ArtifactsMirrored)
	}
	return nil
}

func (s *ArchiveService) ingestBody(ctx context.Context, id int64) error {
	body, err := s.source.FetchBody(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Insert(ctx, id, body); err != nil {
		return err
	}
	logger.With(logger.Fields{logger.FieldSize: len(body)}).Debug(ctx, "Stored log %d", id)
	return nil
}

// archiveArtifact fetches, extracts and mirrors the artifact of id. Every
// failure here is logged and swallowed; the counters report the outcome.
func (s *ArchiveService) archiveArtifact(ctx context.Context, id int64, extracted, skipped, mirrored *int) bool {
	data, err := s.source.FetchArtifact(ctx, id)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Failed to download log artifact")
		*skipped++
		return false
	}

	if res := s.extractor.Extract(data, s.logTarget); res.Skipped {
		s.log(ctx).WithError(res.Err).Warn("Error extracting log")
		*skipped++
	} else {
		*extracted++
	}

	if s.mirror != nil && s.mirrorArtifact(ctx, id, data) {
		*mirrored++
	}
	return true
}

func (s *ArchiveService) mirrorArtifact(ctx context.Context, id int64, data []byte) bool {
	key := storage.ArtifactKey(s.mirrorPrefix, id)

	exists, err := s.mirror.Exists(ctx, key)
	if err != nil {
		s.log(ctx).WithError(err).WithField("storage_key", key).Warn("Failed to check artifact mirror")
		return false
	}
	if exists {
		s.log(ctx).WithField("storage_key", key).Debug("Artifact already mirrored, skipping upload")
		return false
	}

	if err := s.mirror.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "application/zip"); err != nil {
		s.log(ctx).WithError(err).WithField("storage_key", key).Warn("Failed to mirror artifact")
		return false
	}
	return true
}

// Backfill downloads and extracts the artifacts of every id in [from, to]
// without touching the record store. A failed download is logged and the
// next id is tried.
func (s *ArchiveService) Backfill(ctx context.Context, from, to int64) (*domain.BackfillStats, error) {
	if from <= 0 || to < from {
		return nil, domain.NewError(domain.KindConfig, "backfill", fmt.Errorf("invalid range %d..%d", from, to))
	}

	stats := &domain.BackfillStats{From: from, To: to}
	ctx = logger.SetComponent(s.log(ctx).WithContext(ctx), "backfill")
	start := time.Now()

	for id := from; id <= to; id++ {
		if err := s.sleep(ctx, s.pace); err != nil {
			return stats, err
		}

		logCtx := logger.WithField(ctx, logger.FieldLogID, id)
		logger.CtxInfo(logCtx, "Downloading log %d", id)

		stats.Requested++
		if !s.archiveArtifact(logCtx, id, &stats.ArtifactsExtracted, &stats.ArtifactsSkipped, &stats.ArtifactsMirrored) {
			stats.FetchFailures++
		}
	}

	logger.With(logger.Fields{
		"artifacts_extracted": stats.ArtifactsExtracted,
		"artifacts_skipped":   stats.ArtifactsSkipped,
		"fetch_failures":      stats.FetchFailures,
	}).WithCount(stats.Requested).WithDuration(time.Since(start).Milliseconds()).Info(ctx, "Backfill completed")

	return stats, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
