package search

import "filekeep/internal/keep"

// NoopIndexer satisfies keep.Indexer when no search collaborator is
// configured: writes are dropped, searches return nothing.
type NoopIndexer struct{}

var _ keep.Indexer = (*NoopIndexer)(nil)

func NewNoopIndexer() *NoopIndexer { return &NoopIndexer{} }

func (*NoopIndexer) Index(string, keep.Document) error { return nil }

func (*NoopIndexer) Search(string) ([]keep.Document, error) { return nil, nil }

func (*NoopIndexer) Close() error { return nil }
