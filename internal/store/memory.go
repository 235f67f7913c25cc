package store

import (
	"sort"
	"sync"

	"filekeep/internal/keep"
)

// MemoryMetadataStore is an in-memory MetadataStore for tests and the
// "memory" config type. Nothing survives the process.
type MemoryMetadataStore struct {
	mu    sync.Mutex
	table map[string]keep.Attributes
}

var _ keep.MetadataStore = (*MemoryMetadataStore)(nil)

func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{table: make(map[string]keep.Attributes)}
}

func (s *MemoryMetadataStore) Get(path string) keep.Attributes {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bag, ok := s.table[path]; ok {
		return bag.Clone()
	}
	return keep.Attributes{}
}

func (s *MemoryMetadataStore) Upsert(path string, attrs keep.Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bag, ok := s.table[path]
	if !ok {
		bag = keep.Attributes{}
		s.table[path] = bag
	}
	for k, v := range attrs {
		bag[k] = v
	}
	return nil
}

func (s *MemoryMetadataStore) AppendVersion(path string, v keep.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bag, ok := s.table[path]
	if !ok {
		bag = keep.Attributes{}
		s.table[path] = bag
	}
	bag["versions"] = append(keep.VersionsFromBag(bag), v)
	return nil
}

func (s *MemoryMetadataStore) Paths() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.table))
	for p := range s.table {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *MemoryMetadataStore) Close() error { return nil }

// MemoryCommentStore is an in-memory CommentStore counterpart.
type MemoryCommentStore struct {
	mu    sync.Mutex
	table map[string][]keep.Comment
}

var _ keep.CommentStore = (*MemoryCommentStore)(nil)

func NewMemoryCommentStore() *MemoryCommentStore {
	return &MemoryCommentStore{table: make(map[string][]keep.Comment)}
}

func (s *MemoryCommentStore) List(path string) []keep.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]keep.Comment(nil), s.table[path]...)
}

func (s *MemoryCommentStore) Append(path string, c keep.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table[path] = append(s.table[path], c)
	return nil
}

func (s *MemoryCommentStore) Close() error { return nil }
