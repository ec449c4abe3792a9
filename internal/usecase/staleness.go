package usecase

import (
	"time"

	"notesim/internal/domain"
)

// StalenessPolicy decides whether a cached embedding still matches its document.
type StalenessPolicy struct {
	Name string
	// Grace is added to the stored timestamp before comparing it with the
	// document's modification time.
	Grace time.Duration
}

var (
	// BulkPolicy is used by full refreshes and by-name searches.
	BulkPolicy = StalenessPolicy{Name: "bulk"}

	// InteractivePolicy tolerates a second of clock and storage rounding so
	// opening a note does not re-embed it needlessly.
	InteractivePolicy = StalenessPolicy{Name: "interactive", Grace: time.Second}
)

func (p StalenessPolicy) Classify(doc domain.Document, entry domain.CacheEntry, ok, onlyNew bool) domain.Reason {
	return Classify(doc, entry, ok, onlyNew, p.Grace)
}

// Classify returns why doc needs a new embedding, or ReasonNone when the
// cached entry is current. ok reports whether the cache had an entry at all.
func Classify(doc domain.Document, entry domain.CacheEntry, ok, onlyNew bool, grace time.Duration) domain.Reason {
	if !ok {
		return domain.ReasonNew
	}
	if onlyNew {
		return domain.ReasonNone
	}

	switch entry.Kind {
	case domain.EntryLegacy:
		return domain.ReasonOldFormat
	case domain.EntryStructured:
		if entry.LastUpdated == "" || len(entry.Vector) == 0 {
			return domain.ReasonMissingData
		}
	}

	stored, valid := domain.ParseTimestamp(entry.LastUpdated)
	if !valid {
		return domain.ReasonInvalidTimestamp
	}

	// stored timestamps carry millisecond precision
	modTime := doc.ModTime.Truncate(time.Millisecond)
	if modTime.After(stored.Add(grace)) {
		return domain.ReasonModified
	}
	return domain.ReasonNone
}
