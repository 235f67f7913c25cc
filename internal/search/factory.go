package search

import (
	"fmt"

	"filekeep/internal/config"
	"filekeep/internal/keep"
)

// NewIndexerFromConfig creates an Indexer based on the search config type.
func NewIndexerFromConfig(cfg config.SearchConfig) (keep.Indexer, error) {
	switch cfg.Type {
	case "noop", "":
		return NewNoopIndexer(), nil
	case "sqlite":
		if cfg.IndexPath == "" {
			return nil, fmt.Errorf("index_path required for sqlite index")
		}
		return NewSQLiteIndexer(cfg.IndexPath)
	default:
		return nil, fmt.Errorf("unknown search type: %s", cfg.Type)
	}
}
