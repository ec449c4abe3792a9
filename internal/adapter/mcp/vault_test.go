package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notesim/internal/adapter/embedding"
	"notesim/internal/adapter/fs"
	"notesim/internal/adapter/memstore"
	"notesim/internal/adapter/store"
	"notesim/internal/domain"
	"notesim/internal/usecase"
)

// newVaultQuery serves a real vault on disk with a warmed cache.
func newVaultQuery(t *testing.T) *usecase.QueryUseCase {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"a.md":                "alpha notes",
		"b.md":                "beta notes",
		".env":                "OPENAI_API_KEY=sk-secret",
		"notesim.yaml":        "embedding:\n  api_key: sk-literal\n",
		".obsidian/hidden.md": "hidden",
	}
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}

	ignore := domain.IgnoreRule{}
	vault, err := fs.NewVault(root, nil, nil, ignore)
	require.NoError(t, err)

	embedder := embedding.NewMockEmbedder(8)
	cacheStore := store.NewCacheStore(memstore.NewMemoryBackend(), vault, nil)
	refresh := usecase.NewRefreshUseCase(vault, cacheStore, embedder, usecase.RefreshOptions{Ignore: ignore}, nil)
	_, err = refresh.RefreshAll(context.Background(), false, nil)
	require.NoError(t, err)

	return usecase.NewQueryUseCase(vault, cacheStore, embedder, refresh, 12, nil)
}

func TestToolsCall_HugeLimit(t *testing.T) {
	srv := newTestServer(t, newVaultQuery(t))

	for _, limit := range []string{`1e15`, `1e300`, `"9223372036854775807"`} {
		reply := post(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/call",
			"params":{"name":"semantic_search_text","arguments":{"query":"alpha","limit":`+limit+`}}}`)
		text := toolText(t, reply)

		var decoded usecase.TextSearchResult
		require.NoError(t, json.Unmarshal([]byte(text), &decoded))
		assert.Len(t, decoded.Results, 2, "limit %s", limit)
	}
}

func TestToolsCall_FetchServesNotesOnly(t *testing.T) {
	srv := newTestServer(t, newVaultQuery(t))

	reply := post(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/call",
		"params":{"name":"fetch_note","arguments":{"path":"a.md"}}}`)
	assert.Contains(t, toolText(t, reply), "alpha notes")

	for _, path := range []string{".env", "notesim.yaml", ".obsidian/hidden.md"} {
		reply := post(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/call",
			"params":{"name":"fetch_note","arguments":{"path":"`+path+`"}}}`)
		require.NotNil(t, reply.Error, path)
		assert.Equal(t, CodeInternalError, reply.Error.Code)
		assert.Equal(t, "note not found: "+path, reply.Error.Message)
		assert.NotContains(t, string(reply.Result), "sk-")
	}
}

func TestToolsCall_NonStringArguments(t *testing.T) {
	srv := newTestServer(t, newVaultQuery(t))

	reply := post(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/call",
		"params":{"name":"fetch_note","arguments":{"path":5}}}`)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeInternalError, reply.Error.Code)
	assert.Equal(t, "path is required", reply.Error.Message)

	reply = post(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/call",
		"params":{"name":"semantic_search_text","arguments":{"query":true}}}`)
	require.NotNil(t, reply.Error)
	assert.Equal(t, "query is required", reply.Error.Message)
}
