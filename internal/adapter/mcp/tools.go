package mcp

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"notesim/internal/usecase"
)

const (
	ToolSearchText = "semantic_search_text"
	ToolSearchNote = "semantic_search_note"
	ToolFetchNote  = "fetch_note"
)

// ToolHandler is a function that handles a tool call
type ToolHandler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// ToolDefinitions returns the three tools in the order clients list them.
func ToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        ToolSearchText,
			Description: "Semantic search for a freeform text query.",
			InputSchema: objectSchema(map[string]interface{}{
				"query": map[string]interface{}{"type": "string"},
				"limit": map[string]interface{}{"type": "number"},
			}, "query"),
		},
		{
			Name:        ToolSearchNote,
			Description: "Semantic search for notes related to a given note title or path.",
			InputSchema: objectSchema(map[string]interface{}{
				"note":  map[string]interface{}{"type": "string"},
				"limit": map[string]interface{}{"type": "number"},
			}, "note"),
		},
		{
			Name:        ToolFetchNote,
			Description: "Fetch the full content of a note by path.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": map[string]interface{}{"type": "string"},
			}, "path"),
		},
	}
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func (s *Server) registerHandlers() {
	s.handlers[ToolSearchText] = s.handleSearchText
	s.handlers[ToolSearchNote] = s.handleSearchNote
	s.handlers[ToolFetchNote] = s.handleFetchNote
}

func (s *Server) handleSearchText(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return s.query.SearchByText(ctx, getString(args, "query"), getInt(args, "limit", 0))
}

func (s *Server) handleSearchNote(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return s.query.SearchByDocument(ctx, getString(args, "note"), getInt(args, "limit", 0))
}

func (s *Server) handleFetchNote(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return s.query.FetchDocument(ctx, getString(args, "path"))
}

// getString extracts a string argument. Any other type reads as absent.
func getString(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

// getInt extracts a positive integer argument; anything else yields defaultVal.
// Numeric strings are accepted, fractions are floored and values above
// usecase.MaxLimit are capped.
func getInt(m map[string]interface{}, key string, defaultVal int) int {
	var f float64
	switch v := m[key].(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return defaultVal
		}
		f = parsed
	default:
		return defaultVal
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 1 {
		return defaultVal
	}
	if f > usecase.MaxLimit {
		return usecase.MaxLimit
	}
	return int(f)
}

// ClientConfigFor returns the mcpServers block an MCP client needs to reach
// a server on port.
func ClientConfigFor(name string, port int, active bool) ClientConfig {
	return ClientConfig{
		MCPServers: map[string]ClientEntry{
			name: {
				IsActive: active,
				Name:     name,
				Type:     "http",
				URL:      fmt.Sprintf("http://127.0.0.1:%d/mcp", port),
			},
		},
	}
}
