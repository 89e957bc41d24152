package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
	"github.com/timmy/logarchive/internal/domain"
	"github.com/timmy/logarchive/internal/extract"
	"github.com/timmy/logarchive/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "debug", Format: "json", Output: io.Discard, ServiceName: "test"})
}

func zipArtifact(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// fakeSource serves {"id":N} for every body and defaultArtifact for every
// artifact unless an override or failure is configured for that id.
type fakeSource struct {
	mu sync.Mutex

	listing []domain.LogSummary
	listErr error

	bodyErrs        map[int64]error
	artifacts       map[int64][]byte
	artifactErrs    map[int64]error
	defaultArtifact []byte

	listCalls     []int
	bodyCalls     []int64
	artifactCalls []int64
}

func (f *fakeSource) ListRecent(ctx context.Context, limit int) ([]domain.LogSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, limit)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listing, nil
}

func (f *fakeSource) FetchBody(ctx context.Context, id int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodyCalls = append(f.bodyCalls, id)
	if err := f.bodyErrs[id]; err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(`{"id":%d}`, id)), nil
}

func (f *fakeSource) FetchArtifact(ctx context.Context, id int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifactCalls = append(f.artifactCalls, id)
	if err := f.artifactErrs[id]; err != nil {
		return nil, err
	}
	if data, ok := f.artifacts[id]; ok {
		return data, nil
	}
	if f.defaultArtifact == nil {
		return nil, domain.NewError(domain.KindTransport, "fetch artifact", errors.New("no artifact"))
	}
	return f.defaultArtifact, nil
}

type fakeStore struct {
	records     map[int64][]byte
	insertErrs  map[int64]error
	insertCalls []int64
}

func newFakeStore(upTo int64) *fakeStore {
	s := &fakeStore{records: map[int64][]byte{}}
	for id := int64(1); id <= upTo; id++ {
		s.records[id] = []byte(`{}`)
	}
	return s
}

func (s *fakeStore) HighestStoredID(ctx context.Context) (int64, bool, error) {
	var max int64
	for id := range s.records {
		if id > max {
			max = id
		}
	}
	return max, len(s.records) > 0, nil
}

func (s *fakeStore) Insert(ctx context.Context, id int64, body []byte) error {
	s.insertCalls = append(s.insertCalls, id)
	if err := s.insertErrs[id]; err != nil {
		return err
	}
	if _, ok := s.records[id]; ok {
		return domain.NewError(domain.KindStorage, "insert log", fmt.Errorf("log %d already stored", id))
	}
	s.records[id] = body
	return nil
}

func (s *fakeStore) ids() []int64 {
	ids := make([]int64, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type fixedCeiling struct {
	ceiling int64
	err     error
	calls   int
}

func (c *fixedCeiling) Estimate(ctx context.Context) (int64, error) {
	c.calls++
	return c.ceiling, c.err
}

// recordingSleep records requested delays without waiting.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

type fakeMirror struct {
	objects   map[string][]byte
	uploadErr error
	uploads   []string
}

func (m *fakeMirror) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	m.uploads = append(m.uploads, key)
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *fakeMirror) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func seq(from, to int64) []int64 {
	var ids []int64
	for id := from; id <= to; id++ {
		ids = append(ids, id)
	}
	return ids
}

var _ ArtifactExtractor = (*extract.Extractor)(nil)
