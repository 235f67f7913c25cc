package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"filekeep/internal/keep"
)

// JSONMetadataStore persists attribute bags as a single JSON object,
// top-level keys are logical paths. Every mutation rewrites the whole
// table; the mutex makes the read-modify-write atomic with respect to
// other writers in this process, and the temp-file-plus-rename makes
// it atomic for external readers.
//
// Reads never fail: a missing or unparsable table degrades to empty.
type JSONMetadataStore struct {
	mu   sync.Mutex
	path string
}

var _ keep.MetadataStore = (*JSONMetadataStore)(nil)

func NewJSONMetadataStore(path string) *JSONMetadataStore {
	return &JSONMetadataStore{path: path}
}

func (s *JSONMetadataStore) Get(path string) keep.Attributes {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := loadTable[keep.Attributes](s.path)
	if bag, ok := table[path]; ok {
		return bag.Clone()
	}
	return keep.Attributes{}
}

func (s *JSONMetadataStore) Upsert(path string, attrs keep.Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := loadTable[keep.Attributes](s.path)
	bag, ok := table[path]
	if !ok {
		bag = keep.Attributes{}
	}
	for k, v := range attrs {
		bag[k] = v
	}
	table[path] = bag
	return saveTable(s.path, table)
}

func (s *JSONMetadataStore) AppendVersion(path string, v keep.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := loadTable[keep.Attributes](s.path)
	bag, ok := table[path]
	if !ok {
		bag = keep.Attributes{}
	}
	bag["versions"] = append(keep.VersionsFromBag(bag), v)
	table[path] = bag
	return saveTable(s.path, table)
}

func (s *JSONMetadataStore) Paths() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := loadTable[keep.Attributes](s.path)
	paths := make([]string, 0, len(table))
	for p := range table {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *JSONMetadataStore) Close() error { return nil }

// JSONCommentStore persists comment lists with the same whole-table
// discipline as JSONMetadataStore.
type JSONCommentStore struct {
	mu   sync.Mutex
	path string
}

var _ keep.CommentStore = (*JSONCommentStore)(nil)

func NewJSONCommentStore(path string) *JSONCommentStore {
	return &JSONCommentStore{path: path}
}

func (s *JSONCommentStore) List(path string) []keep.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := loadTable[[]keep.Comment](s.path)
	return append([]keep.Comment(nil), table[path]...)
}

func (s *JSONCommentStore) Append(path string, c keep.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := loadTable[[]keep.Comment](s.path)
	table[path] = append(table[path], c)
	return saveTable(s.path, table)
}

func (s *JSONCommentStore) Close() error { return nil }

// loadTable reads a whole table from disk. A missing file or a parse
// failure yields an empty table: metadata is reconstructible and
// browsing availability wins over strict durability here.
func loadTable[V any](path string) map[string]V {
	data, err := os.ReadFile(path)
	if err != nil {
		return make(map[string]V)
	}
	var table map[string]V
	if err := json.Unmarshal(data, &table); err != nil || table == nil {
		return make(map[string]V)
	}
	return table
}

// saveTable rewrites the whole table: marshal, write to a temp file in
// the same directory, fsync, rename over the old table. External
// readers see either the old table or the new one, never a partial
// write.
func saveTable[V any](path string, table map[string]V) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding table: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating table directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp table: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp table: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp table: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing table: %w", err)
	}
	return nil
}
