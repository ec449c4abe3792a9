package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"notesim/config"
	"notesim/internal/adapter/embedding"
	"notesim/internal/adapter/fs"
	"notesim/internal/adapter/store"
	"notesim/internal/domain"
	"notesim/internal/port"
	"notesim/internal/usecase"
)

func main() {
	vaultPath := flag.String("dir", ".", "Path to the vault")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./vault -q \"query\"")
		fmt.Println("\nTests:")
		fmt.Println("  1. Embedding provider (connection, dimension)")
		fmt.Println("  2. Cache coverage (notes with a current embedding)")
		fmt.Println("  3. Semantic similarity (query vs results)")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*vaultPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ignore := domain.IgnoreRule{Substrings: cfg.Refresh.IgnoreSubstrings}
	vault, err := fs.NewVault(*vaultPath, cfg.Refresh.Includes, cfg.Refresh.Excludes, ignore)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening vault: %v\n", err)
		os.Exit(1)
	}

	backend, closeBackend, err := openBackend(cfg, vault.Root())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening cache: %v\n", err)
		os.Exit(1)
	}
	defer closeBackend()

	embedder := setupEmbedding(cfg)
	cacheStore := store.NewCacheStore(backend, vault, nil)
	refresh := usecase.NewRefreshUseCase(vault, cacheStore, embedder, usecase.RefreshOptions{
		BatchSize: cfg.Refresh.BatchSize,
		Ignore:    ignore,
	}, nil)
	queryUC := usecase.NewQueryUseCase(vault, cacheStore, embedder, refresh, *topK, nil)

	ctx := context.Background()
	status, err := refresh.Status(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading cache: %v\n", err)
		os.Exit(1)
	}
	if status.Format.Total == 0 {
		fmt.Fprintln(os.Stderr, "No embeddings - run 'notesim refresh' first")
		os.Exit(1)
	}

	pending := 0
	for _, n := range status.Pending {
		pending += n
	}

	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Notes in vault:    %d\n", status.Notes)
	fmt.Printf("Cached embeddings: %d (%d legacy, %d pending refresh)\n", status.Format.Total, status.Format.Legacy, pending)
	fmt.Printf("Model: %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", embedder.Dimension())
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	start := time.Now()
	res, err := queryUC.SearchByText(ctx, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Search took %s\n\n", time.Since(start).Round(time.Millisecond))

	if len(res.Results) == 0 {
		fmt.Println("No results.")
		return
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(res.Results))

	totalScore := 0.0
	for i, r := range res.Results {
		preview := []rune(r.Content)
		if len(preview) > 150 {
			preview = append(preview[:150], []rune("...")...)
		}
		text := strings.ReplaceAll(string(preview), "\n", " ")

		totalScore += r.Score

		rating := "LOW"
		if r.Score > 0.7 {
			rating = "HIGH"
		} else if r.Score > 0.5 {
			rating = "GOOD"
		} else if r.Score > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s\n", i+1, rating, r.Score, domain.DisplayName(r.Path))
		fmt.Printf("   %s\n\n", text)
	}

	avgScore := totalScore / float64(len(res.Results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", res.Results[0].Score)

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need a different model or a refresh")
	}
}

func openBackend(cfg *config.Config, vault string) (port.CacheBackend, func(), error) {
	if cfg.Cache.Backend != "bolt" {
		return store.NewFileBackend(cfg.CacheFilePath(vault)), func() {}, nil
	}
	bolt, err := store.NewBoltBackend(config.CacheDBPath(vault))
	if err != nil {
		return nil, nil, err
	}
	return bolt, func() { bolt.Close() }, nil
}

func setupEmbedding(cfg *config.Config) port.Embedder {
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
