package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"notesim/internal/adapter/store"
	"notesim/internal/domain"
	"notesim/internal/port"
)

// ProgressFunc is called after each committed batch.
type ProgressFunc func(done, total int)

type RefreshOptions struct {
	BatchSize int
	Ignore    domain.IgnoreRule
}

// RefreshUseCase keeps the embedding cache in step with the vault. It owns
// the lock that serializes every load-mutate-save cycle on the cache.
type RefreshUseCase struct {
	mu       sync.Mutex
	docs     port.DocumentSource
	store    *store.CacheStore
	embedder port.Embedder
	opts     RefreshOptions
	logger   *slog.Logger
}

func NewRefreshUseCase(
	docs port.DocumentSource,
	store *store.CacheStore,
	embedder port.Embedder,
	opts RefreshOptions,
	logger *slog.Logger,
) *RefreshUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshUseCase{
		docs:     docs,
		store:    store,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}
}

// RefreshReport summarizes one RefreshAll run.
type RefreshReport struct {
	RunID    string
	Queued   int
	Added    int
	Updated  int
	Skipped  int
	Batches  int
	UpToDate bool
	Reasons  map[domain.Reason]int
}

// withCache loads the cache and runs fn while holding the cache lock.
func (u *RefreshUseCase) withCache(ctx context.Context, fn func(domain.Cache) error) error {
	return u.withCacheReport(ctx, func(cache domain.Cache, _ []string) error {
		return fn(cache)
	})
}

// withCacheReport is withCache that also hands fn the notes whose entries the
// load pruned because the note no longer exists.
func (u *RefreshUseCase) withCacheReport(ctx context.Context, fn func(domain.Cache, []string) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	cache, report, err := u.store.LoadWithReport(ctx)
	if err != nil {
		return err
	}
	var gone []string
	for _, path := range report.Pruned {
		if domain.IsEligible(path) {
			gone = append(gone, path)
		}
	}
	return fn(cache, gone)
}

// Plan lists the documents that need a new embedding under the bulk policy.
func (u *RefreshUseCase) Plan(ctx context.Context, cache domain.Cache, onlyNew bool) ([]domain.UpdateTarget, error) {
	docs, err := u.docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	var targets []domain.UpdateTarget
	for _, doc := range docs {
		if !domain.IsEligible(doc.Path) || u.opts.Ignore.Match(doc.Path) {
			continue
		}
		entry, ok := cache[doc.Path]
		reason := BulkPolicy.Classify(doc, entry, ok, onlyNew)
		if reason != domain.ReasonNone {
			targets = append(targets, domain.UpdateTarget{Document: doc, Reason: reason})
		}
	}
	return targets, nil
}

// RefreshAll re-embeds every stale or missing note in fixed-size batches,
// saving the cache after each batch. A failure aborts the remaining batches;
// batches already saved stay committed.
func (u *RefreshUseCase) RefreshAll(ctx context.Context, onlyNew bool, progress ProgressFunc) (*RefreshReport, error) {
	report := &RefreshReport{
		RunID:   uuid.NewString(),
		Reasons: make(map[domain.Reason]int),
	}
	logger := u.logger.With("run", report.RunID)

	err := u.withCache(ctx, func(cache domain.Cache) error {
		targets, err := u.Plan(ctx, cache, onlyNew)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			report.UpToDate = true
			logger.Info("all notes are up to date")
			return nil
		}

		report.Queued = len(targets)
		for _, t := range targets {
			report.Reasons[t.Reason]++
		}
		logger.Info("refresh queued", "targets", len(targets), "only_new", onlyNew)

		for start := 0; start < len(targets); start += u.opts.BatchSize {
			end := start + u.opts.BatchSize
			if end > len(targets) {
				end = len(targets)
			}
			if err := u.refreshBatch(ctx, cache, targets[start:end], report, logger); err != nil {
				return fmt.Errorf("batch %d: %w", report.Batches+1, err)
			}
			if progress != nil {
				progress(end, len(targets))
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	logger.Info("refresh complete",
		"added", report.Added,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"batches", report.Batches,
	)
	return report, nil
}

func (u *RefreshUseCase) refreshBatch(
	ctx context.Context,
	cache domain.Cache,
	batch []domain.UpdateTarget,
	report *RefreshReport,
	logger *slog.Logger,
) error {
	var texts []string
	var docs []domain.Document
	for _, target := range batch {
		content, err := u.docs.Read(ctx, target.Document.Path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", target.Document.Path, err)
		}
		text := strings.TrimSpace(content)
		if text == "" {
			report.Skipped++
			logger.Info("skipping empty note", "path", target.Document.Path)
			continue
		}
		texts = append(texts, text)
		docs = append(docs, target.Document)
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := u.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: sent %d, received %d", domain.ErrBatchLengthMismatch, len(texts), len(vectors))
	}

	for i, vector := range vectors {
		doc := docs[i]
		if len(vector) == 0 {
			report.Skipped++
			logger.Info("provider returned no embedding", "path", doc.Path)
			continue
		}
		if _, existed := cache[doc.Path]; existed {
			report.Updated++
		} else {
			report.Added++
		}
		cache[doc.Path] = domain.NewEntry(vector, doc.ModTime)
	}

	if err := u.store.Save(ctx, cache); err != nil {
		return err
	}
	report.Batches++
	logger.Debug("batch committed", "batch", report.Batches, "size", len(texts))
	return nil
}

// EnsureFresh returns an up-to-date vector for doc, embedding and saving it
// first when policy says the cached one is stale. The caller must hold the
// cache lock. refreshed reports whether a provider call was made.
func (u *RefreshUseCase) EnsureFresh(
	ctx context.Context,
	doc domain.Document,
	cache domain.Cache,
	policy StalenessPolicy,
) (vector []float32, refreshed bool, err error) {
	entry, ok := cache[doc.Path]
	reason := policy.Classify(doc, entry, ok, false)
	if reason == domain.ReasonNone {
		return entry.Vector, false, nil
	}

	content, err := u.docs.Read(ctx, doc.Path)
	if err != nil {
		return nil, false, err
	}
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, false, fmt.Errorf("%w: %s", domain.ErrEmptyDocument, doc.Path)
	}

	vector, err = u.embedder.EmbedOne(ctx, text)
	if err != nil {
		return nil, false, err
	}
	if len(vector) == 0 {
		return nil, false, fmt.Errorf("%w: %s", domain.ErrEmptyDocument, doc.Path)
	}

	cache[doc.Path] = domain.NewEntry(vector, doc.ModTime)
	if err := u.store.Save(ctx, cache); err != nil {
		return nil, false, err
	}
	u.logger.Debug("refreshed note embedding", "path", doc.Path, "reason", string(reason), "policy", policy.Name)
	return vector, true, nil
}

// StartupGuard runs the startup refresh at most once, however many
// lifecycle signals call Trigger and in whatever order.
type StartupGuard struct {
	started atomic.Bool
	run     func()
	done    chan struct{}
}

func NewStartupGuard(run func()) *StartupGuard {
	return &StartupGuard{run: run, done: make(chan struct{})}
}

// Trigger starts run in the background on the first call and reports
// whether this call was the one that started it.
func (g *StartupGuard) Trigger() bool {
	if !g.started.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer close(g.done)
		g.run()
	}()
	return true
}

// Done is closed once the guarded run has finished.
func (g *StartupGuard) Done() <-chan struct{} {
	return g.done
}
