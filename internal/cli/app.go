package cli

import (
	"fmt"
	"log/slog"
	"time"

	"notesim/config"
	"notesim/internal/adapter/embedding"
	"notesim/internal/adapter/fs"
	"notesim/internal/adapter/store"
	"notesim/internal/domain"
	"notesim/internal/port"
	"notesim/internal/usecase"
)

// app wires the vault, cache and use cases for one command invocation.
type app struct {
	vault    *fs.Vault
	store    *store.CacheStore
	embedder port.Embedder
	refresh  *usecase.RefreshUseCase
	query    *usecase.QueryUseCase
	bolt     *store.BoltBackend
}

func openApp(cfg *config.Config, root string) (*app, error) {
	logger := slog.Default()
	ignore := domain.IgnoreRule{Substrings: cfg.Refresh.IgnoreSubstrings}

	vault, err := fs.NewVault(root, cfg.Refresh.Includes, cfg.Refresh.Excludes, ignore)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}

	a := &app{vault: vault}

	var backend port.CacheBackend
	switch cfg.Cache.Backend {
	case "bolt":
		if err := config.EnsureStateDir(root); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		bolt, err := store.NewBoltBackend(config.CacheDBPath(root))
		if err != nil {
			return nil, fmt.Errorf("failed to open cache database: %w", err)
		}
		backend = bolt
		a.bolt = bolt
	default:
		backend = store.NewFileBackend(cfg.CacheFilePath(root))
	}

	a.store = store.NewCacheStore(backend, vault, logger)
	a.embedder = newEmbedder(cfg)
	a.refresh = usecase.NewRefreshUseCase(vault, a.store, a.embedder, usecase.RefreshOptions{
		BatchSize: cfg.Refresh.BatchSize,
		Ignore:    ignore,
	}, logger)
	a.query = usecase.NewQueryUseCase(vault, a.store, a.embedder, a.refresh, cfg.Search.Limit, logger)
	return a, nil
}

func newEmbedder(cfg *config.Config) port.Embedder {
	if cfg.Embedding.Provider == "mock" {
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}
	return embedding.NewOpenAIEmbedder(embedding.Options{
		APIKey:    cfg.APIKey(),
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimensions,
		MaxChars:  cfg.Embedding.MaxInputChars,
		Timeout:   time.Duration(cfg.Embedding.TimeoutSecs) * time.Second,
	})
}

func (a *app) Close() error {
	if a.bolt == nil {
		return nil
	}
	return a.bolt.Close()
}
