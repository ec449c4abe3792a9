package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notesim/internal/domain"
)

type capturedRequest struct {
	Auth       string
	Path       string
	Input      any
	Model      string
	Dimensions int
}

type fakeProvider struct {
	mu       sync.Mutex
	requests []capturedRequest
	// respond builds the data list for a request; nil means echo one vector per input.
	respond func(inputs []string) any
	status  int
	body    string
}

func (f *fakeProvider) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input      any    `json:"input"`
			Model      string `json:"model"`
			Dimensions int    `json:"dimensions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.requests = append(f.requests, capturedRequest{
			Auth:       r.Header.Get("Authorization"),
			Path:       r.URL.Path,
			Input:      req.Input,
			Model:      req.Model,
			Dimensions: req.Dimensions,
		})
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if f.status != 0 {
			w.WriteHeader(f.status)
			w.Write([]byte(f.body))
			return
		}

		var inputs []string
		switch in := req.Input.(type) {
		case string:
			inputs = []string{in}
		case []any:
			for _, v := range in {
				inputs = append(inputs, v.(string))
			}
		}

		var data any
		if f.respond != nil {
			data = f.respond(inputs)
		} else {
			items := make([]map[string]any, len(inputs))
			for i, in := range inputs {
				items[i] = map[string]any{
					"object":    "embedding",
					"index":     i,
					"embedding": []float32{float32(len(in)), float32(i)},
				}
			}
			data = items
		}
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	}
}

func (f *fakeProvider) Requests() []capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedRequest(nil), f.requests...)
}

func newTestEmbedder(t *testing.T, fake *fakeProvider, key string) *OpenAIEmbedder {
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return NewOpenAIEmbedder(Options{
		APIKey:    key,
		BaseURL:   srv.URL + "/v1/",
		Model:     "text-embedding-3-small",
		Dimension: 256,
		MaxChars:  5,
	})
}

func TestOpenAIEmbedder_MissingKey(t *testing.T) {
	fake := &fakeProvider{}
	e := newTestEmbedder(t, fake, "  ")

	_, err := e.EmbedOne(context.Background(), "hello")
	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)

	_, err = e.EmbedMany(context.Background(), []string{"hello"})
	require.ErrorAs(t, err, &authErr)
	assert.Empty(t, fake.Requests())
}

func TestOpenAIEmbedder_EmbedOne(t *testing.T) {
	fake := &fakeProvider{}
	e := newTestEmbedder(t, fake, "sk-test")

	vec, err := e.EmbedOne(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0}, vec)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer sk-test", reqs[0].Auth)
	assert.Equal(t, "/v1/embeddings", reqs[0].Path)
	assert.Equal(t, "hello", reqs[0].Input, "input is truncated before sending")
	assert.Equal(t, "text-embedding-3-small", reqs[0].Model)
	assert.Equal(t, 256, reqs[0].Dimensions)
}

func TestOpenAIEmbedder_EmptyInputSkipsNetwork(t *testing.T) {
	fake := &fakeProvider{}
	e := newTestEmbedder(t, fake, "sk-test")

	vec, err := e.EmbedOne(context.Background(), "   \n")
	require.NoError(t, err)
	assert.Nil(t, vec)

	vecs, err := e.EmbedMany(context.Background(), []string{"", "  "})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{nil, nil}, vecs)
	assert.Empty(t, fake.Requests())
}

func TestOpenAIEmbedder_EmbedManyAlignsOutput(t *testing.T) {
	fake := &fakeProvider{}
	e := newTestEmbedder(t, fake, "sk-test")

	vecs, err := e.EmbedMany(context.Background(), []string{"ab", " ", "abcdefgh", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 4)
	assert.Equal(t, []float32{2, 0}, vecs[0])
	assert.Nil(t, vecs[1])
	assert.Equal(t, []float32{5, 1}, vecs[2])
	assert.Nil(t, vecs[3])

	reqs := fake.Requests()
	require.Len(t, reqs, 1, "all non-empty inputs go in one request")
	assert.Equal(t, []any{"ab", "abcde"}, reqs[0].Input)
}

func TestOpenAIEmbedder_CountMismatch(t *testing.T) {
	fake := &fakeProvider{
		respond: func(inputs []string) any {
			return []map[string]any{{"index": 0, "embedding": []float32{1}}}
		},
	}
	e := newTestEmbedder(t, fake, "sk-test")

	_, err := e.EmbedMany(context.Background(), []string{"one", "two"})
	var provErr *domain.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Contains(t, provErr.Error(), "sent 2, received 1")
}

func TestOpenAIEmbedder_MissingData(t *testing.T) {
	fake := &fakeProvider{
		respond: func(inputs []string) any { return nil },
	}
	e := newTestEmbedder(t, fake, "sk-test")

	_, err := e.EmbedOne(context.Background(), "hello")
	var provErr *domain.ProviderError
	require.ErrorAs(t, err, &provErr)

	_, err = e.EmbedMany(context.Background(), []string{"hello"})
	require.ErrorAs(t, err, &provErr)
}

func TestOpenAIEmbedder_HTTPError(t *testing.T) {
	fake := &fakeProvider{
		status: http.StatusTooManyRequests,
		body:   `{"error": {"message": "rate limited", "type": "requests"}}`,
	}
	e := newTestEmbedder(t, fake, "sk-test")

	_, err := e.EmbedMany(context.Background(), []string{"hello"})
	var provErr *domain.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
	assert.Contains(t, provErr.Body, "rate limited")
}

func TestOpenAIEmbedder_HTTPErrorPlainBody(t *testing.T) {
	fake := &fakeProvider{
		status: http.StatusBadGateway,
		body:   `upstream unavailable`,
	}
	e := newTestEmbedder(t, fake, "sk-test")

	_, err := e.EmbedOne(context.Background(), "hello")
	var provErr *domain.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusBadGateway, provErr.StatusCode)
	assert.Equal(t, "upstream unavailable", provErr.Body)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "héllo", Truncate("héllo", 5))
	assert.Equal(t, "héllo", Truncate("héllo", 0))
	assert.Equal(t, "", Truncate("", 3))
}

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(32)
	ctx := context.Background()

	a, err := e.EmbedOne(ctx, "the quick brown fox")
	require.NoError(t, err)
	b, err := e.EmbedOne(ctx, "the quick brown fox")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	empty, err := e.EmbedOne(ctx, " ")
	require.NoError(t, err)
	assert.Nil(t, empty)

	vecs, err := e.EmbedMany(ctx, []string{"alpha", "", "beta"})
	require.NoError(t, err)
	assert.NotNil(t, vecs[0])
	assert.Nil(t, vecs[1])
	assert.NotNil(t, vecs[2])
	assert.Equal(t, 3, e.Calls())
}
