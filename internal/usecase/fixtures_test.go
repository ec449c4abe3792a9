package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"notesim/internal/adapter/memstore"
	"notesim/internal/adapter/store"
	"notesim/internal/domain"
	"notesim/internal/port"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingEmbedder returns fixed vectors and records every request.
type recordingEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	batches [][]string
	singles []string

	failOnBatch int // 1-based batch number that fails, 0 for never
	dropLast    bool
}

func newRecordingEmbedder() *recordingEmbedder {
	return &recordingEmbedder{vectors: make(map[string][]float32)}
}

func (e *recordingEmbedder) vectorFor(text string) []float32 {
	if v, ok := e.vectors[text]; ok {
		return v
	}
	return []float32{float32(len(text)), 1}
}

func (e *recordingEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	e.singles = append(e.singles, text)
	return e.vectorFor(text), nil
}

func (e *recordingEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, append([]string(nil), texts...))
	if e.failOnBatch == len(e.batches) {
		return nil, &domain.ProviderError{StatusCode: 500, Body: "boom"}
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vectorFor(text)
	}
	if e.dropLast {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (e *recordingEmbedder) Dimension() int    { return 2 }
func (e *recordingEmbedder) ModelName() string { return "recording" }

func (e *recordingEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.batches) + len(e.singles)
}

func (e *recordingEmbedder) Batches() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]string(nil), e.batches...)
}

// vanishingDocs reports some notes as existing but fails to read them, the
// way a note deleted mid-request behaves.
type vanishingDocs struct {
	*memstore.MemoryStore
	gone map[string]bool
}

func (d *vanishingDocs) Read(ctx context.Context, path string) (string, error) {
	if d.gone[path] {
		return "", &domain.NotFoundError{Path: path}
	}
	return d.MemoryStore.Read(ctx, path)
}

type harness struct {
	docs     *memstore.MemoryStore
	backend  *memstore.MemoryBackend
	store    *store.CacheStore
	embedder *recordingEmbedder
	refresh  *RefreshUseCase
	query    *QueryUseCase
}

func newHarness(t *testing.T, batchSize int) *harness {
	t.Helper()
	return newHarnessWithSource(t, batchSize, nil)
}

func newHarnessWithSource(t *testing.T, batchSize int, wrap func(*memstore.MemoryStore) port.DocumentSource) *harness {
	t.Helper()
	h := &harness{
		docs:     memstore.NewMemoryStore(),
		backend:  memstore.NewMemoryBackend(),
		embedder: newRecordingEmbedder(),
	}
	var source port.DocumentSource = h.docs
	if wrap != nil {
		source = wrap(h.docs)
	}
	h.store = store.NewCacheStore(h.backend, source, nil)
	h.refresh = NewRefreshUseCase(source, h.store, h.embedder, RefreshOptions{
		BatchSize: batchSize,
		Ignore:    domain.IgnoreRule{Substrings: []string{"nova_letter"}},
	}, nil)
	h.query = NewQueryUseCase(source, h.store, h.embedder, h.refresh, 12, nil)
	return h
}

func (h *harness) seed(t *testing.T, cache domain.Cache) {
	t.Helper()
	data, err := store.Encode(cache)
	require.NoError(t, err)
	h.backend.Seed(string(data))
}

func (h *harness) persisted(t *testing.T) domain.Cache {
	t.Helper()
	cache, err := store.Decode("test", h.backend.Data())
	require.NoError(t, err)
	return cache
}
