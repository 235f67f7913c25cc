package sync

import (
	"fmt"
	"os"
	gosync "sync"
)

// MemoryReplica keeps mirrored content in a map. Used in tests.
type MemoryReplica struct {
	mu    gosync.Mutex
	files map[string][]byte
}

func NewMemoryReplica() *MemoryReplica {
	return &MemoryReplica{files: make(map[string][]byte)}
}

func (r *MemoryReplica) Put(rel, src string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[rel] = data
	return nil
}

func (r *MemoryReplica) Remove(rel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, rel)
	return nil
}

// Get returns the mirrored content for rel.
func (r *MemoryReplica) Get(rel string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.files[rel]
	return data, ok
}

// Len returns the number of mirrored files.
func (r *MemoryReplica) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}
