// Package search adapts the external search collaborator. The
// pipeline treats it as fire and forget on write and best effort on
// read.
package search

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"filekeep/internal/keep"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteIndexer keeps the search index in an embedded SQLite database.
// Matchable fields (name, description, tags, category) get their own
// columns; the full document rides along as JSON for result hydration.
type SQLiteIndexer struct {
	db *sql.DB
}

var _ keep.Indexer = (*SQLiteIndexer)(nil)

// NewSQLiteIndexer opens (or creates) the index database at path.
func NewSQLiteIndexer(path string) (*SQLiteIndexer, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		doc TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}

	return &SQLiteIndexer{db: db}, nil
}

// Index upserts a document under its id (the logical path). The
// description, tags, and category fields are pulled from the metadata
// bag when present.
func (i *SQLiteIndexer) Index(id string, doc keep.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	_, err = i.db.Exec(`INSERT INTO documents (id, name, description, tags, category, doc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			tags = excluded.tags,
			category = excluded.category,
			doc = excluded.doc`,
		id, doc.Name,
		bagString(doc.Metadata, "description"),
		bagString(doc.Metadata, "tags"),
		bagString(doc.Metadata, "category"),
		string(data))
	if err != nil {
		return fmt.Errorf("indexing %s: %w", id, err)
	}
	return nil
}

// Search matches every whitespace-separated term against name,
// description, tags, and category. All terms must match (in any
// field). An empty query returns nothing.
func (i *SQLiteIndexer) Search(query string) ([]keep.Document, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	var conds []string
	var args []any
	for _, term := range terms {
		conds = append(conds,
			`(lower(name) LIKE ? OR lower(description) LIKE ? OR lower(tags) LIKE ? OR lower(category) LIKE ?)`)
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}

	rows, err := i.db.Query(
		`SELECT doc FROM documents WHERE `+strings.Join(conds, " AND ")+` ORDER BY name`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var out []keep.Document
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		var doc keep.Document
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			continue
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}
	return out, nil
}

func (i *SQLiteIndexer) Close() error { return i.db.Close() }

// bagString pulls a string attribute out of a bag, tolerating absent
// keys and non-string values (a tags list is joined with spaces).
func bagString(bag keep.Attributes, key string) string {
	switch v := bag[key].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, " ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return ""
	}
}
