package similarity

import (
	"sort"

	"notesim/internal/domain"
)

// Rank scores every eligible cache entry against query and returns the best
// matches, highest score first. Equal scores are ordered by path. A limit of
// zero or less returns every match.
func Rank(query []float32, cache domain.Cache, exclude string, limit int) []domain.SimilarityResult {
	results := make([]domain.SimilarityResult, 0, len(cache))
	for path, entry := range cache {
		if exclude != "" && path == exclude {
			continue
		}
		if !domain.IsEligible(path) {
			continue
		}
		if len(entry.Vector) == 0 {
			continue
		}
		results = append(results, domain.SimilarityResult{
			Path:        path,
			DisplayName: domain.DisplayName(path),
			Score:       CosineSimilarity(query, entry.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
