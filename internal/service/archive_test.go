package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/logarchive/internal/config"
	"github.com/timmy/logarchive/internal/domain"
	"github.com/timmy/logarchive/internal/extract"
	"github.com/timmy/logarchive/internal/repository"
	"github.com/timmy/logarchive/internal/storage"
)

type archiveFixture struct {
	src     *fakeSource
	store   RecordStore
	ceiling CeilingEstimator
	mirror  storage.ObjectStorage
	target  string
	sleeper *recordingSleep
}

func (f *archiveFixture) service() *ArchiveService {
	svc := NewArchiveService(f.src, f.store, f.ceiling, &extract.Extractor{}, f.mirror, testLogger(), &ArchiveConfig{
		LogTarget:    f.target,
		Pace:         DefaultPace,
		MirrorPrefix: "logs",
	})
	svc.sleep = f.sleeper.sleep
	return svc
}

func newArchiveFixture(t *testing.T, store RecordStore, ceiling CeilingEstimator) *archiveFixture {
	return &archiveFixture{
		src:     &fakeSource{defaultArtifact: zipArtifact(t, "log.log", "L 10/19/2026 - 12:00:00: World triggered \"Round_Start\"\n")},
		store:   store,
		ceiling: ceiling,
		target:  filepath.Join(t.TempDir(), "logs"),
		sleeper: &recordingSleep{},
	}
}

func TestRunFromEmptyStoreToFrontier(t *testing.T) {
	store := newFakeStore(0)
	fx := newArchiveFixture(t, store, nil)
	fx.src.listing = []domain.LogSummary{
		{ID: 100, CreatedAt: ago(5000)},
		{ID: 99, CreatedAt: ago(2000)},
		{ID: 98, CreatedAt: ago(4000)},
	}
	fx.ceiling = newTestEstimator(fx.src)

	stats, err := fx.service().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, seq(1, 100), store.ids())
	assert.Equal(t, seq(1, 100), fx.src.bodyCalls)
	assert.Equal(t, seq(1, 100), fx.src.artifactCalls)
	require.Len(t, fx.sleeper.delays, 100)
	for _, d := range fx.sleeper.delays {
		assert.Equal(t, 200*time.Millisecond, d)
	}

	assert.Equal(t, int64(0), stats.StartWatermark)
	assert.Equal(t, int64(100), stats.Ceiling)
	assert.Equal(t, int64(100), stats.Watermark)
	assert.Equal(t, 100, stats.RecordsStored)
	assert.Equal(t, 100, stats.ArtifactsExtracted)
	assert.NotEmpty(t, stats.RunID)
	assert.NotNil(t, stats.FinishedAt)
	assert.FileExists(t, filepath.Join(fx.target, "log.log"))
}

func TestRunAbortsOnFirstBodyFailureAndResumes(t *testing.T) {
	store := newFakeStore(10)
	fx := newArchiveFixture(t, store, &fixedCeiling{ceiling: 20})
	fx.src.bodyErrs = map[int64]error{
		14: domain.NewError(domain.KindProtocol, "fetch log", errors.New("log 14: response is not valid JSON")),
	}
	svc := fx.service()

	stats, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.KindProtocol, domain.KindOf(err))
	assert.Equal(t, seq(1, 13), store.ids())
	assert.Equal(t, seq(11, 14), fx.src.bodyCalls)
	assert.Equal(t, seq(11, 13), fx.src.artifactCalls)
	assert.Equal(t, int64(13), stats.Watermark)
	assert.Equal(t, domain.KindProtocol, stats.ErrorKind)
	assert.NotEmpty(t, stats.Error)

	// Next run resumes exactly at the failed id.
	fx.src.bodyErrs = nil
	fx.src.bodyCalls = nil
	stats, err = svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, seq(14, 20), fx.src.bodyCalls)
	assert.Equal(t, seq(1, 20), store.ids())
	assert.Equal(t, int64(13), stats.StartWatermark)
}

func TestRunAbortsOnInsertFailure(t *testing.T) {
	store := newFakeStore(0)
	store.insertErrs = map[int64]error{
		5: domain.NewError(domain.KindStorage, "insert log", errors.New("connection reset")),
	}
	fx := newArchiveFixture(t, store, &fixedCeiling{ceiling: 8})

	_, err := fx.service().Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.KindStorage, domain.KindOf(err))
	assert.Equal(t, seq(1, 4), store.ids())
	assert.Equal(t, seq(1, 5), store.insertCalls)
	// The artifact of the failed id is not attempted.
	assert.Equal(t, seq(1, 4), fx.src.artifactCalls)
}

func TestRunArtifactFailuresDoNotStopIngestion(t *testing.T) {
	store := newFakeStore(0)
	fx := newArchiveFixture(t, store, &fixedCeiling{ceiling: 5})
	fx.src.artifacts = map[int64][]byte{3: []byte("this is not a zip")}
	fx.src.artifactErrs = map[int64]error{
		4: domain.NewError(domain.KindTransport, "fetch artifact", errors.New("status 502")),
	}

	stats, err := fx.service().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, seq(1, 5), store.ids())
	assert.Equal(t, seq(1, 5), fx.src.artifactCalls)
	assert.Equal(t, 3, stats.ArtifactsExtracted)
	assert.Equal(t, 2, stats.ArtifactsSkipped)
}

func TestRunEmptyRangeIsNoop(t *testing.T) {
	store := newFakeStore(42)
	ceiling := &fixedCeiling{ceiling: 42}
	fx := newArchiveFixture(t, store, ceiling)

	stats, err := fx.service().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ceiling.calls)
	assert.Empty(t, fx.src.bodyCalls)
	assert.Empty(t, fx.src.artifactCalls)
	assert.Empty(t, store.insertCalls)
	assert.Empty(t, fx.sleeper.delays)
	assert.Equal(t, 0, stats.RecordsStored)
}

func TestRunCeilingBelowWatermarkIsNoop(t *testing.T) {
	store := newFakeStore(50)
	fx := newArchiveFixture(t, store, &fixedCeiling{ceiling: 40})

	_, err := fx.service().Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fx.src.bodyCalls)
}

func TestRunFrontierFailureAbortsBeforeWalk(t *testing.T) {
	store := newFakeStore(3)
	fx := newArchiveFixture(t, store, &fixedCeiling{err: domain.NewError(domain.KindNoFrontier, "estimate frontier", nil)})

	stats, err := fx.service().Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.KindNoFrontier, domain.KindOf(err))
	assert.Empty(t, fx.src.bodyCalls)
	assert.Equal(t, int64(3), stats.Watermark)
}

func TestRunStopsWhenContextCanceled(t *testing.T) {
	store := newFakeStore(0)
	fx := newArchiveFixture(t, store, &fixedCeiling{ceiling: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.service().Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fx.src.bodyCalls)
}

func TestRunMirrorsArtifacts(t *testing.T) {
	store := newFakeStore(0)
	mirror := &fakeMirror{objects: map[string][]byte{"logs/log_2.log.zip": []byte("old")}}
	fx := newArchiveFixture(t, store, &fixedCeiling{ceiling: 3})
	fx.mirror = mirror

	stats, err := fx.service().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"logs/log_1.log.zip", "logs/log_3.log.zip"}, mirror.uploads)
	assert.Equal(t, fx.src.defaultArtifact, mirror.objects["logs/log_1.log.zip"])
	assert.Equal(t, 2, stats.ArtifactsMirrored)
}

func TestRunMirrorFailureIsNotFatal(t *testing.T) {
	store := newFakeStore(0)
	fx := newArchiveFixture(t, store, &fixedCeiling{ceiling: 3})
	fx.mirror = &fakeMirror{objects: map[string][]byte{}, uploadErr: errors.New("access denied")}

	stats, err := fx.service().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, seq(1, 3), store.ids())
	assert.Equal(t, 0, stats.ArtifactsMirrored)
}

func TestRunAgainstSQLiteIsContiguousAcrossAbortedRuns(t *testing.T) {
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	repo := repository.NewLogRepository(db)

	fx := newArchiveFixture(t, repo, &fixedCeiling{ceiling: 8})
	fx.src.bodyErrs = map[int64]error{6: domain.NewError(domain.KindTransport, "fetch log", errors.New("timeout"))}
	svc := fx.service()

	_, err = svc.Run(context.Background())
	require.Error(t, err)
	watermark, ok, err := repo.HighestStoredID(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(5), watermark)

	fx.src.bodyErrs = nil
	_, err = svc.Run(context.Background())
	require.NoError(t, err)

	var ids []int64
	require.NoError(t, db.Model(&domain.RawLog{}).Order("id").Pluck("id", &ids).Error)
	assert.Equal(t, seq(1, 8), ids)
}

func TestBackfillDownloadsEveryArtifactInRange(t *testing.T) {
	fx := newArchiveFixture(t, nil, nil)
	fx.src.artifacts = map[int64][]byte{
		5: zipArtifact(t, "log_5.log", "five"),
		7: zipArtifact(t, "log_7.log", "seven"),
	}
	fx.src.artifactErrs = map[int64]error{
		6: domain.NewError(domain.KindTransport, "fetch artifact", errors.New("status 404")),
	}

	stats, err := fx.service().Backfill(context.Background(), 5, 8)
	require.NoError(t, err)

	assert.Equal(t, seq(5, 8), fx.src.artifactCalls)
	assert.Empty(t, fx.src.bodyCalls)
	assert.Len(t, fx.sleeper.delays, 4)
	assert.Equal(t, 4, stats.Requested)
	assert.Equal(t, 3, stats.ArtifactsExtracted)
	assert.Equal(t, 1, stats.FetchFailures)

	content, err := os.ReadFile(filepath.Join(fx.target, "log_7.log"))
	require.NoError(t, err)
	assert.Equal(t, "seven", string(content))
}

func TestBackfillRejectsInvalidRange(t *testing.T) {
	fx := newArchiveFixture(t, nil, nil)

	for _, r := range [][2]int64{{10, 9}, {0, 5}, {-3, 2}} {
		_, err := fx.service().Backfill(context.Background(), r[0], r[1])
		require.Error(t, err)
		assert.Equal(t, domain.KindConfig, domain.KindOf(err))
	}
	assert.Empty(t, fx.src.artifactCalls)
}
