package domain

import (
	"path"
	"strings"
	"time"
)

// NoteExt is the only extension eligible for embedding and ranking.
const NoteExt = ".md"

type Document struct {
	Path    string // slash-separated, relative to the vault root
	ModTime time.Time
	Size    int64
}

// IsEligible reports whether a cache key or document path can carry an embedding.
func IsEligible(p string) bool {
	return strings.HasSuffix(p, NoteExt)
}

// DisplayName is the base name of p with the note extension stripped.
func DisplayName(p string) string {
	name := path.Base(p)
	return strings.TrimSuffix(name, NoteExt)
}

type EntryKind int

const (
	// EntryStructured is the {embedding, last_updated} form.
	EntryStructured EntryKind = iota
	// EntryLegacy is a bare vector persisted without a timestamp.
	EntryLegacy
)

func (k EntryKind) String() string {
	if k == EntryLegacy {
		return "legacy"
	}
	return "structured"
}

// CacheEntry is either a structured entry or a legacy bare vector.
// LastUpdated is kept as the raw persisted string so that unparseable
// timestamps survive a load/save cycle untouched until refreshed.
type CacheEntry struct {
	Kind        EntryKind
	Vector      []float32
	LastUpdated string
}

func NewEntry(vector []float32, modTime time.Time) CacheEntry {
	return CacheEntry{
		Kind:        EntryStructured,
		Vector:      vector,
		LastUpdated: FormatTimestamp(modTime),
	}
}

func LegacyEntry(vector []float32) CacheEntry {
	return CacheEntry{Kind: EntryLegacy, Vector: vector}
}

// Cache maps document identity to its cached embedding.
type Cache map[string]CacheEntry

// VectorFor returns the usable vector for path regardless of entry kind.
func (c Cache) VectorFor(p string) ([]float32, bool) {
	entry, ok := c[p]
	if !ok || len(entry.Vector) == 0 {
		return nil, false
	}
	return entry.Vector, true
}

type SimilarityResult struct {
	Path        string  `json:"path"`
	DisplayName string  `json:"displayName"`
	Score       float64 `json:"score"`
}

// DisplayPercent clamps the score to [0,1]; ranking always uses Score.
func (r SimilarityResult) DisplayPercent() float64 {
	switch {
	case r.Score < 0:
		return 0
	case r.Score > 1:
		return 1
	default:
		return r.Score
	}
}

type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNew              Reason = "new"
	ReasonOldFormat        Reason = "old-format"
	ReasonMissingData      Reason = "missing-data"
	ReasonInvalidTimestamp Reason = "invalid-timestamp"
	ReasonModified         Reason = "modified"
)

type UpdateTarget struct {
	Document Document
	Reason   Reason
}

// SearchHit is a ranked result with its resolved content.
type SearchHit struct {
	Path      string  `json:"path"`
	Score     float64 `json:"score"`
	Content   string  `json:"content"`
	Truncated bool    `json:"truncated"`
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t as an ISO-8601 UTC string with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

var timestampLayouts = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts the layouts written by this tool and by hand edits.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IgnoreRule excludes documents from bulk refresh: any path segment starting
// with "." or "@", or containing one of Substrings.
type IgnoreRule struct {
	Substrings []string
}

func (r IgnoreRule) Match(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if r.MatchSegment(part) {
			return true
		}
	}
	return false
}

func (r IgnoreRule) MatchSegment(part string) bool {
	if strings.HasPrefix(part, ".") || strings.HasPrefix(part, "@") {
		return true
	}
	for _, sub := range r.Substrings {
		if sub != "" && strings.Contains(part, sub) {
			return true
		}
	}
	return false
}
