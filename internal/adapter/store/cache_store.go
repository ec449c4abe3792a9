package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"notesim/internal/domain"
	"notesim/internal/port"
)

// CacheStore loads and saves the whole embedding cache through a backend.
// Every load prunes entries whose documents are gone or ineligible.
type CacheStore struct {
	backend port.CacheBackend
	docs    port.DocumentSource
	logger  *slog.Logger
}

// LoadReport describes what a load had to clean up.
type LoadReport struct {
	Created bool
	Pruned  []string
}

// NewCacheStore creates a cache store over backend, checking existence against docs.
func NewCacheStore(backend port.CacheBackend, docs port.DocumentSource, logger *slog.Logger) *CacheStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheStore{
		backend: backend,
		docs:    docs,
		logger:  logger,
	}
}

// Location names the underlying persisted resource.
func (s *CacheStore) Location() string {
	return s.backend.Location()
}

// Load reads the cache, initializing an empty one on first use.
func (s *CacheStore) Load(ctx context.Context) (domain.Cache, error) {
	cache, _, err := s.LoadWithReport(ctx)
	return cache, err
}

// LoadWithReport is Load plus a description of initialization and pruning.
func (s *CacheStore) LoadWithReport(ctx context.Context) (domain.Cache, *LoadReport, error) {
	report := &LoadReport{}

	exists, err := s.backend.Exists(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check cache %s: %w", s.backend.Location(), err)
	}
	if !exists {
		if err := s.Save(ctx, domain.Cache{}); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
		report.Created = true
		s.logger.Info("initialized empty embedding cache", "location", s.backend.Location())
	}

	data, err := s.backend.Read(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read cache %s: %w", s.backend.Location(), err)
	}

	cache, err := Decode(s.backend.Location(), data)
	if err != nil {
		return nil, nil, err
	}

	pruned, err := s.prune(ctx, cache)
	if err != nil {
		return nil, nil, err
	}
	report.Pruned = pruned

	if len(pruned) > 0 {
		s.logger.Info("pruned stale cache entries", "count", len(pruned))
		if err := s.Save(ctx, cache); err != nil {
			return nil, nil, fmt.Errorf("failed to save pruned cache: %w", err)
		}
	}

	return cache, report, nil
}

func (s *CacheStore) prune(ctx context.Context, cache domain.Cache) ([]string, error) {
	var pruned []string
	for path := range cache {
		if !domain.IsEligible(path) {
			pruned = append(pruned, path)
			continue
		}
		ok, err := s.docs.Exists(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", path, err)
		}
		if !ok {
			pruned = append(pruned, path)
		}
	}

	sort.Strings(pruned)
	for _, path := range pruned {
		delete(cache, path)
	}
	return pruned, nil
}

// Save serializes and persists the entire cache in one backend write.
func (s *CacheStore) Save(ctx context.Context, cache domain.Cache) error {
	data, err := Encode(cache)
	if err != nil {
		return err
	}
	if err := s.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to write cache %s: %w", s.backend.Location(), err)
	}
	return nil
}

// Delete removes paths from cache and persists the result. It is a no-op
// when none of the paths are present.
func (s *CacheStore) Delete(ctx context.Context, cache domain.Cache, paths ...string) error {
	removed := 0
	for _, path := range paths {
		if _, ok := cache[path]; ok {
			delete(cache, path)
			removed++
		}
	}
	if removed == 0 {
		return nil
	}
	s.logger.Info("removed missing notes from cache", "count", removed)
	return s.Save(ctx, cache)
}
