package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"notesim/internal/adapter/similarity"
	"notesim/internal/adapter/store"
	"notesim/internal/domain"
	"notesim/internal/port"
)

const (
	// Result content at or above truncateAt characters is cut to contentPrefix.
	truncateAt    = 3000
	contentPrefix = 1000
)

// MaxLimit is the most results a single search returns.
const MaxLimit = 1000

// QueryUseCase answers similarity and fetch requests for interactive and RPC
// callers. Cache access goes through the refresh use case's lock.
type QueryUseCase struct {
	docs         port.DocumentSource
	store        *store.CacheStore
	embedder     port.Embedder
	refresh      *RefreshUseCase
	defaultLimit int
	logger       *slog.Logger
}

func NewQueryUseCase(
	docs port.DocumentSource,
	store *store.CacheStore,
	embedder port.Embedder,
	refresh *RefreshUseCase,
	defaultLimit int,
	logger *slog.Logger,
) *QueryUseCase {
	if defaultLimit <= 0 {
		defaultLimit = 12
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryUseCase{
		docs:         docs,
		store:        store,
		embedder:     embedder,
		refresh:      refresh,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

type TextSearchResult struct {
	Query        string             `json:"query"`
	Results      []domain.SearchHit `json:"results"`
	MissingPaths []string           `json:"missingPaths,omitempty"`
}

type DocumentSearchResult struct {
	Note         string             `json:"note"`
	Results      []domain.SearchHit `json:"results"`
	MissingPaths []string           `json:"missingPaths,omitempty"`
}

type FetchResult struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// NormalizeLimit maps a non-positive limit to the configured default and
// caps it at MaxLimit.
func (u *QueryUseCase) NormalizeLimit(limit int) int {
	if limit <= 0 {
		limit = u.defaultLimit
	}
	return min(limit, MaxLimit)
}

// SearchByText embeds query and ranks the whole cache against it.
func (u *QueryUseCase) SearchByText(ctx context.Context, query string, limit int) (*TextSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &domain.RequiredFieldError{Field: "query"}
	}
	limit = u.NormalizeLimit(limit)

	vector, err := u.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("failed to generate embedding for query")
	}

	result := &TextSearchResult{Query: query}
	err = u.refresh.withCacheReport(ctx, func(cache domain.Cache, gone []string) error {
		ranked := similarity.Rank(vector, cache, "", 0)
		hits, missing, err := u.resolveHits(ctx, cache, ranked, limit)
		if err != nil {
			return err
		}
		result.Results, result.MissingPaths = hits, mergeMissing(missing, gone)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SearchByDocument ranks the cache against a note's own embedding, refreshing
// that embedding first when it is stale.
func (u *QueryUseCase) SearchByDocument(ctx context.Context, identifier string, limit int) (*DocumentSearchResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, &domain.RequiredFieldError{Field: "note"}
	}
	limit = u.NormalizeLimit(limit)

	doc, err := u.ResolveDocument(ctx, identifier)
	if err != nil {
		return nil, err
	}

	result := &DocumentSearchResult{Note: doc.Path}
	err = u.refresh.withCacheReport(ctx, func(cache domain.Cache, gone []string) error {
		vector, _, err := u.refresh.EnsureFresh(ctx, doc, cache, BulkPolicy)
		if err != nil {
			return err
		}
		ranked := similarity.Rank(vector, cache, doc.Path, 0)
		hits, missing, err := u.resolveHits(ctx, cache, ranked, limit)
		if err != nil {
			return err
		}
		result.Results, result.MissingPaths = hits, mergeMissing(missing, gone)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FetchDocument returns the raw content of the note at exactly path. Only
// indexable notes are served; dotfiles, config and ignored notes read as
// not found.
func (u *QueryUseCase) FetchDocument(ctx context.Context, path string) (*FetchResult, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, &domain.RequiredFieldError{Field: "path"}
	}
	if !domain.IsEligible(path) || u.refresh.opts.Ignore.Match(path) {
		return nil, &domain.NotFoundError{Path: path}
	}
	content, err := u.docs.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return &FetchResult{Path: path, Content: content}, nil
}

// ResolveDocument finds the note an identifier refers to: the exact path,
// then the path with the note extension appended, then a unique note with
// that base name anywhere in the vault.
func (u *QueryUseCase) ResolveDocument(ctx context.Context, identifier string) (domain.Document, error) {
	candidates := []string{identifier}
	if !strings.HasSuffix(identifier, domain.NoteExt) {
		candidates = append(candidates, identifier+domain.NoteExt)
	}
	for _, candidate := range candidates {
		if !domain.IsEligible(candidate) {
			continue
		}
		doc, err := u.docs.Stat(ctx, candidate)
		if err == nil {
			return doc, nil
		}
		if !domain.IsNotFound(err) {
			return domain.Document{}, err
		}
	}

	if !strings.Contains(identifier, "/") {
		name := domain.DisplayName(identifier)
		docs, err := u.docs.List(ctx)
		if err != nil {
			return domain.Document{}, err
		}
		var match []domain.Document
		for _, doc := range docs {
			if domain.DisplayName(doc.Path) == name {
				match = append(match, doc)
			}
		}
		if len(match) == 1 {
			return match[0], nil
		}
	}

	return domain.Document{}, &domain.NotFoundError{Path: identifier}
}

// resolveHits reads content for ranked results until limit hits are found.
// Paths that no longer resolve are reported and removed from the cache.
func (u *QueryUseCase) resolveHits(
	ctx context.Context,
	cache domain.Cache,
	ranked []domain.SimilarityResult,
	limit int,
) ([]domain.SearchHit, []string, error) {
	hits := make([]domain.SearchHit, 0, min(limit, len(ranked)))
	var missing []string

	for _, r := range ranked {
		if len(hits) >= limit {
			break
		}
		content, err := u.docs.Read(ctx, r.Path)
		if err != nil {
			if domain.IsNotFound(err) {
				missing = append(missing, r.Path)
				continue
			}
			return nil, nil, err
		}
		hits = append(hits, newSearchHit(r, content))
	}

	if len(missing) > 0 {
		u.logger.Warn("search found cached notes that no longer exist", "count", len(missing))
		if err := u.store.Delete(ctx, cache, missing...); err != nil {
			return nil, nil, fmt.Errorf("failed to prune missing notes: %w", err)
		}
	}
	return hits, missing, nil
}

// mergeMissing appends the load-pruned paths to those found missing while
// resolving hits, dropping duplicates.
func mergeMissing(missing, gone []string) []string {
	seen := make(map[string]bool, len(missing))
	for _, p := range missing {
		seen[p] = true
	}
	for _, p := range gone {
		if !seen[p] {
			seen[p] = true
			missing = append(missing, p)
		}
	}
	return missing
}

func newSearchHit(r domain.SimilarityResult, content string) domain.SearchHit {
	hit := domain.SearchHit{Path: r.Path, Score: r.Score, Content: content}
	if utf8.RuneCountInString(content) >= truncateAt {
		hit.Content = truncateRunes(content, contentPrefix)
		hit.Truncated = true
	}
	return hit
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
