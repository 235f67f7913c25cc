package keep

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CreateVersion snapshots the current artifact of a logical path into
// a numbered copy and appends the entry to the metadata record.
// Version numbers for a path are exactly 1..N with no gaps or repeats,
// even under concurrent calls; the count-read, copy, and append run
// under one lock. Returns ErrNotFound if the path has no artifact.
//
// Old versions are never pruned. Unbounded growth is accepted; plan
// capacity accordingly.
func (s *Service) CreateVersion(logical string) (Version, error) {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()

	art, err := s.artifactPath(logical)
	if err != nil {
		return Version{}, err
	}

	next := len(VersionsFromBag(s.store.Get(logical))) + 1

	ext := filepath.Ext(art)
	base := strings.TrimSuffix(art, ext)
	vpath := fmt.Sprintf("%s_v%d%s", base, next, ext)

	if err := copyFile(art, vpath); err != nil {
		return Version{}, fmt.Errorf("copying version %d of %s: %w", next, logical, err)
	}

	rel, err := filepath.Rel(s.root, vpath)
	if err != nil {
		return Version{}, fmt.Errorf("relativizing version path: %w", err)
	}

	v := Version{Version: next, Path: rel, CreatedAt: s.clock.Now()}
	if err := s.store.AppendVersion(logical, v); err != nil {
		return Version{}, fmt.Errorf("recording version %d of %s: %w", next, logical, err)
	}

	s.logger.Info("version created", "path", logical, "version", next)
	return v, nil
}

// Versions returns the ordered version list for a logical path. Empty
// when the path has no versions (or no metadata at all).
func (s *Service) Versions(logical string) []Version {
	return VersionsFromBag(s.store.Get(logical))
}
