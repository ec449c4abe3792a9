package usecase

import (
	"context"

	"notesim/internal/adapter/store"
	"notesim/internal/domain"
)

type Status struct {
	Location string
	Notes    int
	Format   store.FormatStats
	Pending  map[domain.Reason]int
}

// Status loads the cache and reports its shape and how many notes a bulk
// refresh would touch.
func (u *RefreshUseCase) Status(ctx context.Context) (*Status, error) {
	status := &Status{
		Location: u.store.Location(),
		Pending:  make(map[domain.Reason]int),
	}

	err := u.withCache(ctx, func(cache domain.Cache) error {
		docs, err := u.docs.List(ctx)
		if err != nil {
			return err
		}
		status.Notes = len(docs)
		status.Format = store.InspectFormat(cache)

		targets, err := u.Plan(ctx, cache, false)
		if err != nil {
			return err
		}
		for _, t := range targets {
			status.Pending[t.Reason]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}
