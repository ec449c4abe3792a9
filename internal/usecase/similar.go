package usecase

import (
	"context"
	"errors"

	"notesim/internal/adapter/similarity"
	"notesim/internal/domain"
)

// SimilarView is one render of the interactive "similar notes" panel.
type SimilarView struct {
	Note    string
	Header  string
	Message string
	Results []domain.SimilarityResult
	Updated bool
}

// SimilarCached is the first phase of the interactive view: it ranks with
// whatever vector the cache holds for the note, stale or legacy, without
// calling the provider.
func (u *QueryUseCase) SimilarCached(ctx context.Context, identifier string) (*SimilarView, error) {
	doc, err := u.ResolveDocument(ctx, identifier)
	if err != nil {
		return nil, err
	}

	view := &SimilarView{Note: doc.Path, Header: "Most similar notes:"}
	err = u.refresh.withCache(ctx, func(cache domain.Cache) error {
		entry, ok := cache[doc.Path]
		switch {
		case ok && entry.Kind == domain.EntryLegacy:
			view.Header = "Found old format embedding. Updating..."
		case ok && len(entry.Vector) > 0:
		default:
			view.Header = "No cached embedding found. Calculating..."
			view.Message = view.Header
			return nil
		}
		view.Results = similarity.Rank(entry.Vector, cache, doc.Path, u.defaultLimit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// SimilarRefreshed is the second phase: it refreshes the note's embedding
// under the interactive policy and re-ranks. It returns nil when the cached
// embedding was already current or the note is empty, in which case the
// first phase stands.
func (u *QueryUseCase) SimilarRefreshed(ctx context.Context, identifier string) (*SimilarView, error) {
	doc, err := u.ResolveDocument(ctx, identifier)
	if err != nil {
		return nil, err
	}

	var view *SimilarView
	err = u.refresh.withCache(ctx, func(cache domain.Cache) error {
		vector, refreshed, err := u.refresh.EnsureFresh(ctx, doc, cache, InteractivePolicy)
		if errors.Is(err, domain.ErrEmptyDocument) {
			u.logger.Info("current note is empty, skipping embedding update", "path", doc.Path)
			return nil
		}
		if err != nil || !refreshed {
			return err
		}
		view = &SimilarView{
			Note:    doc.Path,
			Header:  "Updated similar notes:",
			Results: similarity.Rank(vector, cache, doc.Path, u.defaultLimit),
			Updated: true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}
