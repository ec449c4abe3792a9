package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"notesim/internal/domain"
)

// MemoryStore is an in-memory document source. It backs tests and any
// embedding of notesim where notes do not live on disk.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]memDoc
	reads map[string]int
}

type memDoc struct {
	content string
	modTime time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]memDoc),
		reads: make(map[string]int),
	}
}

// Put creates or replaces a document.
func (s *MemoryStore) Put(path, content string, modTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = memDoc{content: content, modTime: modTime}
}

// Touch updates a document's modification time.
func (s *MemoryStore) Touch(path string, modTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[path]; ok {
		doc.modTime = modTime
		s.docs[path] = doc
	}
}

func (s *MemoryStore) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
}

// Reads returns how many times path has been read.
func (s *MemoryStore) Reads(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reads[path]
}

func (s *MemoryStore) List(ctx context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for path, doc := range s.docs {
		if !domain.IsEligible(path) {
			continue
		}
		docs = append(docs, domain.Document{
			Path:    path,
			ModTime: doc.modTime,
			Size:    int64(len(doc.content)),
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

func (s *MemoryStore) Stat(ctx context.Context, path string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[path]
	if !ok {
		return domain.Document{}, &domain.NotFoundError{Path: path}
	}
	return domain.Document{
		Path:    path,
		ModTime: doc.modTime,
		Size:    int64(len(doc.content)),
	}, nil
}

func (s *MemoryStore) Read(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		return "", &domain.NotFoundError{Path: path}
	}
	s.reads[path]++
	return doc.content, nil
}

func (s *MemoryStore) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[path]
	return ok, nil
}

// MemoryBackend is an in-memory cache backend that records every write.
type MemoryBackend struct {
	mu     sync.Mutex
	data   []byte
	exists bool
	writes int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Seed sets the stored document without counting a write.
func (b *MemoryBackend) Seed(data string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = []byte(data)
	b.exists = true
}

// Data returns a copy of the stored document.
func (b *MemoryBackend) Data() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

func (b *MemoryBackend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

func (b *MemoryBackend) Location() string { return "memory:embeddings.json" }

func (b *MemoryBackend) Exists(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exists, nil
}

func (b *MemoryBackend) Read(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...), nil
}

func (b *MemoryBackend) Write(ctx context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append([]byte(nil), data...)
	b.exists = true
	b.writes++
	return nil
}
