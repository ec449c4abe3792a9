package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notesim/internal/domain"
	"notesim/internal/usecase"
)

type stubQuery struct {
	mu        sync.Mutex
	lastQuery string
	lastNote  string
	lastLimit int
	err       error
}

func (q *stubQuery) SearchByText(ctx context.Context, query string, limit int) (*usecase.TextSearchResult, error) {
	q.mu.Lock()
	q.lastQuery, q.lastLimit = query, limit
	q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	if strings.TrimSpace(query) == "" {
		return nil, &domain.RequiredFieldError{Field: "query"}
	}
	return &usecase.TextSearchResult{
		Query: query,
		Results: []domain.SearchHit{
			{Path: "a.md", Score: 0.9, Content: "<b>alpha</b> & more"},
		},
	}, nil
}

func (q *stubQuery) SearchByDocument(ctx context.Context, note string, limit int) (*usecase.DocumentSearchResult, error) {
	q.mu.Lock()
	q.lastNote, q.lastLimit = note, limit
	q.mu.Unlock()
	return &usecase.DocumentSearchResult{Note: note + ".md", Results: []domain.SearchHit{}}, nil
}

func (q *stubQuery) last() (string, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastQuery, q.lastLimit
}

func (q *stubQuery) FetchDocument(ctx context.Context, path string) (*usecase.FetchResult, error) {
	if path != "a.md" {
		return nil, &domain.NotFoundError{Path: path}
	}
	return &usecase.FetchResult{Path: path, Content: "alpha"}, nil
}

type rpcReply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func newTestServer(t *testing.T, q QueryService) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(q, nil, nil))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, body string) rpcReply {
	t.Helper()
	resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply rpcReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Equal(t, "2.0", reply.JSONRPC)
	return reply
}

func toolText(t *testing.T, reply rpcReply) string {
	t.Helper()
	require.Nil(t, reply.Error)
	var result CallToolResponse
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	return result.Content[0].Text
}

func TestInitialize(t *testing.T) {
	srv := newTestServer(t, &stubQuery{})

	reply := post(t, srv, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	require.Nil(t, reply.Error)
	assert.JSONEq(t, `1`, string(reply.ID))

	var initResp InitResponse
	require.NoError(t, json.Unmarshal(reply.Result, &initResp))
	assert.Equal(t, "2024-11-05", initResp.ProtocolVersion)
	assert.Equal(t, "notesim", initResp.ServerInfo.Name)
	assert.Contains(t, initResp.Capabilities, "tools")
}

func TestToolsList(t *testing.T) {
	srv := newTestServer(t, &stubQuery{})

	reply := post(t, srv, `{"jsonrpc":"2.0","id":"abc","method":"tools/list"}`)
	require.Nil(t, reply.Error)
	assert.JSONEq(t, `"abc"`, string(reply.ID))

	var list ListToolsResponse
	require.NoError(t, json.Unmarshal(reply.Result, &list))
	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"semantic_search_text", "semantic_search_note", "fetch_note"}, names)
	assert.Equal(t, []interface{}{"query"}, list.Tools[0].InputSchema["required"])
}

func TestToolsCall_SearchText(t *testing.T) {
	q := &stubQuery{}
	srv := newTestServer(t, q)

	reply := post(t, srv, `{"jsonrpc":"2.0","id":7,"method":"tools/call",
		"params":{"name":"semantic_search_text","arguments":{"query":"alpha","limit":"3"}}}`)
	text := toolText(t, reply)

	query, limit := q.last()
	assert.Equal(t, "alpha", query)
	assert.Equal(t, 3, limit)
	assert.Contains(t, text, "\n  \"query\": \"alpha\"", "result text is indented JSON")
	assert.Contains(t, text, "<b>alpha</b> & more", "content is not HTML-escaped")

	var decoded usecase.TextSearchResult
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))
	require.Len(t, decoded.Results, 1)
	assert.Equal(t, "a.md", decoded.Results[0].Path)
}

func TestToolsCall_SearchNoteDefaultsLimit(t *testing.T) {
	q := &stubQuery{}
	srv := newTestServer(t, q)

	for _, limit := range []string{`0`, `-2`, `"many"`, `null`} {
		reply := post(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/call",
			"params":{"name":"semantic_search_note","arguments":{"note":"a","limit":`+limit+`}}}`)
		text := toolText(t, reply)
		_, got := q.last()
		assert.Equal(t, 0, got, "limit %s falls back to the default", limit)
		assert.Contains(t, text, `"note": "a.md"`)
		assert.Contains(t, text, `"results": []`)
	}
}

func TestToolsCall_Errors(t *testing.T) {
	srv := newTestServer(t, &stubQuery{})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing tool name", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{}}`, CodeInvalidParams},
		{"unknown tool", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nope"}}`, CodeInvalidParams},
		{"required field", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"semantic_search_text","arguments":{"query":""}}}`, CodeInternalError},
		{"not found", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"fetch_note","arguments":{"path":"zzz.md"}}}`, CodeInternalError},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`, CodeMethodNotFound},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"initialize"}`, CodeInvalidRequest},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, CodeInvalidRequest},
		{"array payload", `[{"jsonrpc":"2.0","id":1,"method":"initialize"}]`, CodeInvalidRequest},
		{"invalid json", `{"jsonrpc":`, CodeParseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := post(t, srv, tt.body)
			require.NotNil(t, reply.Error)
			assert.Equal(t, tt.code, reply.Error.Code)
			assert.Empty(t, reply.Result)
		})
	}
}

func TestToolsCall_ErrorMessages(t *testing.T) {
	srv := newTestServer(t, &stubQuery{})

	reply := post(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"fetch_note","arguments":{"path":"zzz.md"}}}`)
	require.NotNil(t, reply.Error)
	assert.Equal(t, "note not found: zzz.md", reply.Error.Message)

	reply = post(t, srv, `{"jsonrpc":`)
	assert.Equal(t, "Invalid JSON", reply.Error.Message)
	assert.Equal(t, "null", string(reply.ID))
}

func TestHTTPErrors(t *testing.T) {
	srv := newTestServer(t, &stubQuery{})

	resp, err := http.Get(srv.URL + "/mcp")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/other", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not found", body["error"])

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartStop(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Port = 0
	s := NewServer(&stubQuery{}, cfg, nil)

	require.NoError(t, s.Start())
	addr := s.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Restart(ctx, 0))
	assert.NotEmpty(t, s.Addr())

	require.NoError(t, s.Stop(ctx))
	assert.Empty(t, s.Addr())
	assert.Error(t, s.Start(), "a stopped server stays stopped")
}

func TestClientConfig(t *testing.T) {
	data, err := json.Marshal(ClientConfigFor("notesim", 7345, true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcpServers":{"notesim":{"isActive":true,"name":"notesim","type":"http","url":"http://127.0.0.1:7345/mcp"}}}`, string(data))
}
