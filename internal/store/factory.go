package store

import (
	"fmt"
	"path/filepath"

	"filekeep/internal/config"
	"filekeep/internal/keep"
)

// NewStoresFromConfig creates the metadata and comment stores for the
// configured backend type. For the sqlite backend both interfaces are
// served by one database; closing either closes it.
func NewStoresFromConfig(cfg config.StoreConfig) (keep.MetadataStore, keep.CommentStore, error) {
	switch cfg.Type {
	case "json", "":
		if cfg.MetadataPath == "" || cfg.CommentsPath == "" {
			return nil, nil, fmt.Errorf("metadata_path and comments_path required for json store")
		}
		return NewJSONMetadataStore(cfg.MetadataPath), NewJSONCommentStore(cfg.CommentsPath), nil
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, nil, fmt.Errorf("data_dir required for sqlite store")
		}
		s, err := NewSQLiteStore(filepath.Join(cfg.DataDir, "filekeep.db"))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "memory":
		return NewMemoryMetadataStore(), NewMemoryCommentStore(), nil
	default:
		return nil, nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
