package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"notesim/internal/domain"
)

// CurrentSchemaVersion is the bolt layout version.
// Increment this when changing bucket layout or key names.
const CurrentSchemaVersion = 1

var keySchemaVersion = []byte("schema_version")

func putSchemaVersion(meta *bbolt.Bucket) error {
	data, err := json.Marshal(CurrentSchemaVersion)
	if err != nil {
		return err
	}
	return meta.Put(keySchemaVersion, data)
}

// checkSchema refuses databases written by a newer layout.
func (b *BoltBackend) checkSchema() error {
	return b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keySchemaVersion)
		if data == nil {
			return nil
		}
		var version int
		if err := json.Unmarshal(data, &version); err != nil {
			return fmt.Errorf("invalid schema version %q: %w", data, err)
		}
		if version > CurrentSchemaVersion {
			return fmt.Errorf("cache database created by newer version (v%d > v%d)", version, CurrentSchemaVersion)
		}
		return nil
	})
}

// FormatStats summarizes how much of a cache is still in the legacy format
// and how much carries usable vectors.
type FormatStats struct {
	Total      int
	Structured int
	Legacy     int
	NoVector   int
	Dimensions map[int]int
}

// InspectFormat counts entries by persisted shape.
func InspectFormat(cache domain.Cache) FormatStats {
	stats := FormatStats{Total: len(cache), Dimensions: make(map[int]int)}
	for _, entry := range cache {
		switch entry.Kind {
		case domain.EntryLegacy:
			stats.Legacy++
		default:
			stats.Structured++
		}
		if len(entry.Vector) == 0 {
			stats.NoVector++
			continue
		}
		stats.Dimensions[len(entry.Vector)]++
	}
	return stats
}

// NeedsMigration reports whether any legacy entries remain.
func (s FormatStats) NeedsMigration() bool {
	return s.Legacy > 0
}
