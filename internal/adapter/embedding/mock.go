package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"

	"notesim/internal/adapter/analyzer"
)

// MockEmbedder produces deterministic bag-of-words vectors without a network
// call. Texts sharing terms get a positive cosine similarity.
type MockEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
	calls     atomic.Int64
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockEmbedder{dimension: dimension, tokenizer: analyzer.NewTokenizer(2)}
}

func (e *MockEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	e.calls.Add(1)
	return e.vector(text), nil
}

func (e *MockEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	sent := false
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		embeddings[i] = e.vector(text)
		sent = true
	}
	if sent {
		e.calls.Add(1)
	}
	return embeddings, nil
}

// Calls returns how many simulated provider requests were made.
func (e *MockEmbedder) Calls() int {
	return int(e.calls.Load())
}

func (e *MockEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dimension)
	for term, n := range e.tokenizer.Terms(text) {
		h := fnv.New32a()
		h.Write([]byte(term))
		v[h.Sum32()%uint32(e.dimension)] += float32(n)
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
