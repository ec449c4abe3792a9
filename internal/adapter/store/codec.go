package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"notesim/internal/domain"
)

type structuredEntry struct {
	Embedding   []float32       `json:"embedding"`
	LastUpdated json.RawMessage `json:"last_updated,omitempty"`
}

// Decode parses the persisted cache document. Only an empty document, invalid
// JSON or a non-object top level is an error; individual values that do not
// match either entry shape decode as structured entries without data so that
// the next refresh rewrites them.
func Decode(source string, data []byte) (domain.Cache, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &domain.CorruptCacheError{Source: source, Reason: "is empty"}
	}
	if !json.Valid(trimmed) {
		var probe any
		err := json.Unmarshal(trimmed, &probe)
		return nil, &domain.CorruptCacheError{Source: source, Reason: "contains invalid JSON", Err: err}
	}
	if trimmed[0] != '{' {
		return nil, &domain.CorruptCacheError{Source: source, Reason: "must contain a JSON object"}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &domain.CorruptCacheError{Source: source, Reason: "contains invalid JSON", Err: err}
	}

	cache := make(domain.Cache, len(raw))
	for key, value := range raw {
		cache[key] = decodeEntry(value)
	}
	return cache, nil
}

func decodeEntry(value json.RawMessage) domain.CacheEntry {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return domain.CacheEntry{Kind: domain.EntryStructured}
	}

	switch value[0] {
	case '[':
		var vector []float32
		if err := json.Unmarshal(value, &vector); err != nil {
			return domain.CacheEntry{Kind: domain.EntryStructured}
		}
		return domain.LegacyEntry(vector)
	case '{':
		var stored structuredEntry
		if err := json.Unmarshal(value, &stored); err != nil {
			// keep whatever timestamp is readable; the vector is unusable
			var partial struct {
				LastUpdated json.RawMessage `json:"last_updated"`
			}
			_ = json.Unmarshal(value, &partial)
			return domain.CacheEntry{Kind: domain.EntryStructured, LastUpdated: rawTimestamp(partial.LastUpdated)}
		}
		return domain.CacheEntry{
			Kind:        domain.EntryStructured,
			Vector:      stored.Embedding,
			LastUpdated: rawTimestamp(stored.LastUpdated),
		}
	default:
		return domain.CacheEntry{Kind: domain.EntryStructured}
	}
}

// rawTimestamp returns the string value, or the raw JSON text for non-string
// values so that they classify as an invalid timestamp rather than missing.
func rawTimestamp(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Encode serializes the cache as a 2-space indented JSON object with sorted keys.
func Encode(cache domain.Cache) ([]byte, error) {
	out := make(map[string]any, len(cache))
	for key, entry := range cache {
		switch entry.Kind {
		case domain.EntryLegacy:
			vector := entry.Vector
			if vector == nil {
				vector = []float32{}
			}
			out[key] = vector
		default:
			stored := map[string]any{"embedding": entry.Vector}
			if entry.LastUpdated != "" {
				stored["last_updated"] = entry.LastUpdated
			}
			out[key] = stored
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache: %w", err)
	}
	return data, nil
}
