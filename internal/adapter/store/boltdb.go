package store

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketCache  = []byte("cache")
	bucketMeta   = []byte("meta")
	keyDocument  = []byte("embeddings.json")
	keyWrittenAt = []byte("written_at")
)

// BoltBackend keeps the serialized cache document as a single value in a
// bolt database. Each write is one bolt transaction.
type BoltBackend struct {
	db   *bbolt.DB
	path string
}

func NewBoltBackend(path string) (*BoltBackend, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketCache, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	backend := &BoltBackend{db: db, path: path}
	if err := backend.checkSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return backend, nil
}

func (b *BoltBackend) Location() string {
	return b.path + "#" + string(keyDocument)
}

func (b *BoltBackend) Exists(ctx context.Context) (bool, error) {
	var exists bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketCache).Get(keyDocument) != nil
		return nil
	})
	return exists, err
}

func (b *BoltBackend) Read(ctx context.Context) ([]byte, error) {
	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketCache).Get(keyDocument)
		if v == nil {
			return fmt.Errorf("cache document not found")
		}
		// bolt values are only valid inside the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

func (b *BoltBackend) Write(ctx context.Context, data []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketCache).Put(keyDocument, data); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		if err := putSchemaVersion(meta); err != nil {
			return err
		}
		return meta.Put(keyWrittenAt, []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

// WrittenAt returns the time of the last successful write, if any.
func (b *BoltBackend) WrittenAt() (time.Time, bool, error) {
	var t time.Time
	var ok bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keyWrittenAt)
		if v == nil {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, string(v))
		if err != nil {
			return fmt.Errorf("invalid write timestamp %q: %w", v, err)
		}
		t, ok = parsed, true
		return nil
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read cache metadata: %w", err)
	}
	return t, ok, nil
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}
