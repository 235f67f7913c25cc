package keep

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Default limits used when the corresponding ServiceConfig field is zero.
const (
	DefaultCompressionThreshold = 10 << 20  // 10 MiB
	DefaultMaxUploadSize        = 100 << 20 // 100 MiB
)

// ServiceConfig carries the dependencies and tunables for NewService.
type ServiceConfig struct {
	Root     string
	Store    MetadataStore
	Comments CommentStore
	Shares   *ShareRegistry
	Indexer  Indexer

	Compressor Compressor
	Encryptor  Encryptor

	Logger Logger
	Clock  Clock

	CompressionThreshold int64
	MaxUploadSize        int64
}

// Service is the orchestration layer for the file lifecycle: ingest,
// retrieval, versioning, metadata, comments, sharing, and deletion.
// Methods are safe for concurrent use; operations on the same logical
// path that read-modify-write shared state are serialized internally.
type Service struct {
	root       string
	store      MetadataStore
	comments   CommentStore
	shares     *ShareRegistry
	indexer    Indexer
	compressor Compressor
	encryptor  Encryptor
	logger     Logger
	clock      Clock

	compressionThreshold int64
	maxUploadSize        int64

	// versionMu serializes the count-read/copy/append sequence so
	// version numbers are gap-free under concurrent CreateVersion calls.
	versionMu sync.Mutex
}

// NewService creates a Service rooted at cfg.Root. Logger and Clock
// default to NopLogger and RealClock; zero size limits take the
// package defaults.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = NewNopLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.CompressionThreshold == 0 {
		cfg.CompressionThreshold = DefaultCompressionThreshold
	}
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}
	return &Service{
		root:                 cfg.Root,
		store:                cfg.Store,
		comments:             cfg.Comments,
		shares:               cfg.Shares,
		indexer:              cfg.Indexer,
		compressor:           cfg.Compressor,
		encryptor:            cfg.Encryptor,
		logger:               cfg.Logger,
		clock:                cfg.Clock,
		compressionThreshold: cfg.CompressionThreshold,
		maxUploadSize:        cfg.MaxUploadSize,
	}
}

// Root returns the storage root directory.
func (s *Service) Root() string { return s.root }

// artifactPath resolves a logical path to the absolute path of its
// current on-disk artifact. The artifact path differs from the logical
// path when transforms added suffixes; the metadata bag records it.
// Falls back to the logical path itself for files that predate
// metadata (or whose record was lost). Returns ErrNotFound if nothing
// exists on disk.
func (s *Service) artifactPath(logical string) (string, error) {
	bag := s.store.Get(logical)
	if rel, ok := bag["artifact"].(string); ok && rel != "" {
		abs := filepath.Join(s.root, rel)
		if _, err := os.Stat(abs); err == nil {
			return abs, nil
		}
	}
	abs := filepath.Join(s.root, logical)
	if _, err := os.Stat(abs); err == nil {
		return abs, nil
	}
	return "", fmt.Errorf("%s: %w", logical, ErrNotFound)
}

// Metadata returns the attribute bag for a logical path. An empty bag
// means "unknown", not confirmed absence.
func (s *Service) Metadata(logical string) Attributes {
	return s.store.Get(logical)
}

// UpdateMetadata merges user-supplied attributes into a logical path's
// bag, last-write-wins per key.
func (s *Service) UpdateMetadata(logical string, attrs Attributes) error {
	if err := s.store.Upsert(logical, attrs); err != nil {
		return fmt.Errorf("updating metadata: %w", err)
	}
	return nil
}

// Comments returns the append-only comment list for a logical path.
func (s *Service) Comments(logical string) []Comment {
	return s.comments.List(logical)
}

// AddComment appends a comment to a logical path's list. An empty user
// is recorded as "anonymous".
func (s *Service) AddComment(logical, text, user string) (Comment, error) {
	if user == "" {
		user = "anonymous"
	}
	c := Comment{Text: text, User: user, CreatedAt: s.clock.Now()}
	if err := s.comments.Append(logical, c); err != nil {
		return Comment{}, fmt.Errorf("appending comment: %w", err)
	}
	return c, nil
}

// Delete removes a logical file's current artifact from the storage
// root. The metadata record is intentionally left behind; orphaned
// records are tolerated and never garbage-collected.
func (s *Service) Delete(logical string) error {
	art, err := s.artifactPath(logical)
	if err != nil {
		return err
	}
	if err := os.Remove(art); err != nil {
		return fmt.Errorf("deleting %s: %w", logical, err)
	}
	s.logger.Info("file deleted", "path", logical)
	return nil
}

// Share issues an expiring share token for a logical path. A non-empty
// password protects the token; ttl bounds its validity. Returns
// ErrNotFound if the path has no artifact.
func (s *Service) Share(logical, password string, ttl time.Duration) (string, error) {
	if _, err := s.artifactPath(logical); err != nil {
		return "", err
	}
	token, err := s.shares.Issue(logical, password, ttl)
	if err != nil {
		return "", err
	}
	s.logger.Info("share link created", "path", logical, "protected", password != "")
	return token, nil
}

// ResolveShare exchanges a token (and password, when protected) for
// the logical path it grants access to.
func (s *Service) ResolveShare(token, password string) (string, error) {
	return s.shares.Resolve(token, password)
}

// RevokeShare destroys a token before its expiry.
func (s *Service) RevokeShare(token string) error {
	return s.shares.Revoke(token)
}

// Search queries the external search collaborator. Best effort: an
// unavailable index returns an empty result and logs the cause.
func (s *Service) Search(query string) []Document {
	docs, err := s.indexer.Search(query)
	if err != nil {
		s.logger.Error("search failed", "query", query, "error", err)
		return nil
	}
	return docs
}

// List returns the files under root/subdir. When recursive is false
// only direct children are returned. Entries are sorted by logical
// path. Returns ErrNotFound for a missing subdir.
func (s *Service) List(subdir string, recursive bool) ([]FileEntry, error) {
	dir := filepath.Join(s.root, subdir)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", subdir, ErrNotFound)
		}
		return nil, fmt.Errorf("listing %s: %w", subdir, err)
	}

	logicals, err := s.store.Paths()
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	// Entries are keyed by logical path. On disk only the transformed
	// artifact exists, so each record is mapped to its artifact for
	// size and mtime; records whose artifact is gone (deleted files
	// keep their metadata) are not listable.
	var entries []FileEntry
	claimed := make(map[string]bool)
	for _, logical := range logicals {
		if !listScope(logical, subdir, recursive) {
			continue
		}
		bag := s.store.Get(logical)
		artRel := logical
		if a, ok := bag["artifact"].(string); ok && a != "" {
			artRel = a
		}
		info, err := os.Stat(filepath.Join(s.root, artRel))
		if err != nil {
			continue
		}
		claimed[artRel] = true
		for _, v := range VersionsFromBag(bag) {
			claimed[v.Path] = true
		}
		name := filepath.Base(logical)
		entries = append(entries, FileEntry{
			Name:     name,
			Path:     logical,
			Category: Classify(name),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Metadata: bag,
		})
	}

	// Artifacts with no surviving record are listed under their
	// on-disk name with the encrypted suffix stripped. A compressed
	// container keeps its container name; the original extension is
	// only recorded inside it.
	appendFile := func(abs string, info os.FileInfo) {
		rel, err := filepath.Rel(s.root, abs)
		if err != nil || claimed[rel] {
			return
		}
		logical := strings.TrimSuffix(rel, EncryptedSuffix)
		name := filepath.Base(logical)
		entries = append(entries, FileEntry{
			Name:     name,
			Path:     logical,
			Category: Classify(name),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Metadata: s.store.Get(logical),
		})
	}

	if recursive {
		err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() {
				appendFile(p, info)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", subdir, err)
		}
	} else {
		dirents, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", subdir, err)
		}
		for _, de := range dirents {
			if de.IsDir() {
				continue
			}
			info, err := de.Info()
			if err != nil {
				continue
			}
			appendFile(filepath.Join(dir, de.Name()), info)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// listScope reports whether a logical path falls under subdir, and
// when not recursive, is a direct child of it.
func listScope(logical, subdir string, recursive bool) bool {
	rel := logical
	if subdir != "" {
		r, err := filepath.Rel(subdir, logical)
		if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			return false
		}
		rel = r
	}
	return recursive || !strings.ContainsRune(rel, filepath.Separator)
}

// VersionsFromBag decodes the "versions" attribute of a bag. It
// tolerates both in-memory []Version values and the generic []any
// form produced by JSON decoding.
func VersionsFromBag(bag Attributes) []Version {
	raw, ok := bag["versions"]
	if !ok {
		return nil
	}
	if vs, ok := raw.([]Version); ok {
		return vs
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var vs []Version
	if err := json.Unmarshal(data, &vs); err != nil {
		return nil
	}
	return vs
}

// copyFile copies src to dst, preserving the source's modification
// time.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
