package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"filekeep/internal/keep"
	"filekeep/internal/store/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements both keep.MetadataStore and keep.CommentStore
// over one embedded SQLite database. Attribute bags live as JSON text
// in the records table; versions and comments get their own tables so
// appends don't rewrite the bag.
//
// The mutex serializes read-modify-write of a record across
// goroutines; SQLite's own locking covers external processes.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

var (
	_ keep.MetadataStore = (*SQLiteStore)(nil)
	_ keep.CommentStore  = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) the store database at path and
// brings its schema up to date. path can be ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the attribute bag for a path, with the version list
// attached under "versions". Read failures degrade to an empty bag.
func (s *SQLiteStore) Get(path string) keep.Attributes {
	bag := keep.Attributes{}

	var attrs string
	err := s.db.QueryRow(`SELECT attrs FROM records WHERE path = ?`, path).Scan(&attrs)
	if err == nil {
		if jerr := json.Unmarshal([]byte(attrs), &bag); jerr != nil {
			bag = keep.Attributes{}
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return keep.Attributes{}
	}

	versions := s.versions(path)
	if len(versions) > 0 {
		bag["versions"] = versions
	}
	return bag
}

func (s *SQLiteStore) versions(path string) []keep.Version {
	rows, err := s.db.Query(
		`SELECT version, artifact, created_at FROM versions WHERE path = ? ORDER BY version`, path)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []keep.Version
	for rows.Next() {
		var v keep.Version
		var created string
		if err := rows.Scan(&v.Version, &v.Path, &created); err != nil {
			return nil
		}
		v.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, v)
	}
	if rows.Err() != nil {
		return nil
	}
	return out
}

// Upsert merges attrs into the record's bag, last-write-wins per key.
func (s *SQLiteStore) Upsert(path string, attrs keep.Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	bag := keep.Attributes{}
	var existing string
	err = tx.QueryRow(`SELECT attrs FROM records WHERE path = ?`, path).Scan(&existing)
	switch {
	case err == nil:
		if jerr := json.Unmarshal([]byte(existing), &bag); jerr != nil {
			bag = keep.Attributes{}
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fmt.Errorf("reading record: %w", err)
	}

	for k, v := range attrs {
		if k == "versions" {
			// Versions live in their own table.
			continue
		}
		bag[k] = v
	}

	data, err := json.Marshal(bag)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO records (path, attrs) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET attrs = excluded.attrs`, path, string(data)); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing record: %w", err)
	}
	return nil
}

// AppendVersion records a new version entry for a path.
func (s *SQLiteStore) AppendVersion(path string, v keep.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(
		`INSERT INTO versions (path, version, artifact, created_at) VALUES (?, ?, ?, ?)`,
		path, v.Version, v.Path, v.CreatedAt.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("writing version: %w", err)
	}
	return nil
}

// Paths returns every logical path with a record, sorted.
func (s *SQLiteStore) Paths() ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM records ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning record path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return paths, nil
}

// List returns the comments for a path in append order.
func (s *SQLiteStore) List(path string) []keep.Comment {
	rows, err := s.db.Query(
		`SELECT body, user, created_at FROM comments WHERE path = ? ORDER BY id`, path)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []keep.Comment
	for rows.Next() {
		var c keep.Comment
		var created string
		if err := rows.Scan(&c.Text, &c.User, &created); err != nil {
			return nil
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil
	}
	return out
}

// Append adds a comment to a path's list.
func (s *SQLiteStore) Append(path string, c keep.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(
		`INSERT INTO comments (path, body, user, created_at) VALUES (?, ?, ?, ?)`,
		path, c.Text, c.User, c.CreatedAt.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("writing comment: %w", err)
	}
	return nil
}

// Close closes the underlying database. The store backs both the
// metadata and comment interfaces, so the factory hands out one Close.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
