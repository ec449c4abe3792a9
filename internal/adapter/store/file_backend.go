package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileBackend keeps the cache in a single JSON file. Writes go to a temp
// file in the same directory and are renamed into place.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Location() string {
	return b.path
}

func (b *FileBackend) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(b.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (b *FileBackend) Read(ctx context.Context) ([]byte, error) {
	return os.ReadFile(b.path)
}

func (b *FileBackend) Write(ctx context.Context, data []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Atomic rename
	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
