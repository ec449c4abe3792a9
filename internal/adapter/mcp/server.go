// Package mcp serves the note search tools over MCP-style JSON-RPC 2.0.
//
// A single endpoint, POST /mcp, accepts:
//   - initialize: exchange protocol version and capabilities
//   - tools/list: list semantic_search_text, semantic_search_note and fetch_note
//   - tools/call: run one of those tools
//
// Tool results are returned as one text content item holding the indented
// JSON of the result. GET /health reports liveness.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"notesim/internal/usecase"
)

// QueryService is the subset of the query use case the tools call.
type QueryService interface {
	SearchByText(ctx context.Context, query string, limit int) (*usecase.TextSearchResult, error)
	SearchByDocument(ctx context.Context, identifier string, limit int) (*usecase.DocumentSearchResult, error)
	FetchDocument(ctx context.Context, path string) (*usecase.FetchResult, error)
}

// ServerConfig holds MCP server configuration.
type ServerConfig struct {
	// Address to bind to. Only loopback makes sense for a personal vault.
	Address string
	Port    int
	// Name is reported in serverInfo and used as the client config key.
	Name    string
	Version string

	ReadTimeout    time.Duration
	MaxRequestSize int64
}

func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:        "127.0.0.1",
		Port:           7345,
		Name:           "notesim",
		Version:        "0.1.0",
		ReadTimeout:    30 * time.Second,
		MaxRequestSize: 1 << 20,
	}
}

// Server implements the MCP protocol over the query service.
type Server struct {
	query  QueryService
	config *ServerConfig
	logger *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	started    time.Time
	closed     bool

	handlers map[string]ToolHandler
}

func NewServer(query QueryService, config *ServerConfig, logger *slog.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		query:    query,
		config:   config,
		logger:   logger,
		handlers: make(map[string]ToolHandler),
		started:  time.Now(),
	}
	s.registerHandlers()
	return s
}

// ServeHTTP routes /mcp and /health; every other path is a JSON 404.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/mcp":
		s.handleMCP(w, r)
	case "/health":
		s.handleHealth(w, r)
	default:
		s.writeError(w, http.StatusNotFound, "Not found")
	}
}

// Start listens on the configured address. The listener is bound before
// Start returns, so port conflicts surface as an error here.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("server already closed")
	}
	if s.httpServer != nil {
		return nil
	}

	addr := net.JoinHostPort(s.config.Address, fmt.Sprint(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:     s,
		ReadTimeout: s.config.ReadTimeout,
	}
	s.httpServer = srv
	s.listener = ln
	s.started = time.Now()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("mcp server stopped", "error", err)
		}
	}()

	s.logger.Info("mcp server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" when not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Restart stops the listener and starts again on port, for when the
// configured port changes.
func (s *Server) Restart(ctx context.Context, port int) error {
	if err := s.shutdown(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.config.Port = port
	s.mu.Unlock()
	return s.Start()
}

// Stop gracefully shuts down the server. A stopped server cannot be started again.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.shutdown(ctx)
}

func (s *Server) shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ClientConfig returns the snippet MCP clients use to reach this server.
func (s *Server) ClientConfig() ClientConfig {
	return ClientConfigFor(s.config.Name, s.config.Port, true)
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxRequestSize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if !json.Valid(body) {
		s.writeJSONRPCError(w, nil, CodeParseError, "Invalid JSON")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil || req.JSONRPC != "2.0" || req.Method == "" {
		s.writeJSONRPCError(w, req.ID, CodeInvalidRequest, "Invalid request")
		return
	}

	switch req.Method {
	case "initialize":
		s.writeJSONRPCResult(w, req.ID, s.doInitialize())
	case "tools/list":
		s.writeJSONRPCResult(w, req.ID, ListToolsResponse{Tools: ToolDefinitions()})
	case "tools/call":
		s.handleCallTool(w, r, req)
	default:
		s.writeJSONRPCError(w, req.ID, CodeMethodNotFound, "Method not found")
	}
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request, req Request) {
	name := getString(req.Params, "name")
	if name == "" {
		s.writeJSONRPCError(w, req.ID, CodeInvalidParams, "Missing tool name")
		return
	}
	handler, ok := s.handlers[name]
	if !ok {
		s.writeJSONRPCError(w, req.ID, CodeInvalidParams, "Unknown tool: "+name)
		return
	}

	args, _ := req.Params["arguments"].(map[string]interface{})
	if args == nil {
		args = make(map[string]interface{})
	}

	result, err := handler(r.Context(), args)
	if err != nil {
		s.logger.Warn("tool call failed", "tool", name, "error", err)
		s.writeJSONRPCError(w, req.ID, CodeInternalError, err.Error())
		return
	}

	text, err := marshalIndent(result)
	if err != nil {
		s.writeJSONRPCError(w, req.ID, CodeInternalError, err.Error())
		return
	}
	s.writeJSONRPCResult(w, req.ID, CallToolResponse{
		Content: []Content{{Type: "text", Text: text}},
		IsError: false,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"version": s.config.Version,
	})
}

func (s *Server) doInitialize() InitResponse {
	return InitResponse{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		ServerInfo: ServerInfo{
			Name:    s.config.Name,
			Version: s.config.Version,
		},
	}
}

// marshalIndent renders v as 2-space indented JSON without HTML escaping,
// since note content routinely contains <, > and &.
func marshalIndent(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSONRPCResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	s.writeJSON(w, http.StatusOK, Response{JSONRPC: "2.0", ID: normalizeID(id), Result: result})
}

func (s *Server) writeJSONRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	s.writeJSON(w, http.StatusOK, Response{
		JSONRPC: "2.0",
		ID:      normalizeID(id),
		Error:   &RPCError{Code: code, Message: message},
	})
}

// normalizeID turns an absent id into an explicit null.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
