package keep_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filekeep/internal/keep"
)

func TestService_Metadata(t *testing.T) {
	svc, _ := newTestService(t)

	logical, err := svc.Ingest("note.txt", strings.NewReader("content"), 7)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	t.Run("merge preserves existing keys", func(t *testing.T) {
		if err := svc.UpdateMetadata(logical, keep.Attributes{"project": "alpha"}); err != nil {
			t.Fatalf("UpdateMetadata() error = %v", err)
		}

		bag := svc.Metadata(logical)
		if bag["project"] != "alpha" {
			t.Errorf("bag[project] = %v, want alpha", bag["project"])
		}
		if bag["encrypted"] != true {
			t.Error("pipeline attributes lost after metadata update")
		}
	})

	t.Run("last write wins per key", func(t *testing.T) {
		if err := svc.UpdateMetadata(logical, keep.Attributes{"project": "beta"}); err != nil {
			t.Fatalf("UpdateMetadata() error = %v", err)
		}
		if got := svc.Metadata(logical)["project"]; got != "beta" {
			t.Errorf("bag[project] = %v, want beta", got)
		}
	})

	t.Run("unknown path yields empty bag", func(t *testing.T) {
		if bag := svc.Metadata("no/such/file.txt"); len(bag) != 0 {
			t.Errorf("Metadata() = %v, want empty bag", bag)
		}
	})
}

func TestService_Comments(t *testing.T) {
	svc, _ := newTestService(t)

	t.Run("empty user defaults to anonymous", func(t *testing.T) {
		c, err := svc.AddComment("a/b.txt", "first!", "")
		if err != nil {
			t.Fatalf("AddComment() error = %v", err)
		}
		if c.User != "anonymous" {
			t.Errorf("comment user = %q, want anonymous", c.User)
		}
	})

	t.Run("comments append in order", func(t *testing.T) {
		if _, err := svc.AddComment("a/b.txt", "second", "alice"); err != nil {
			t.Fatalf("AddComment() error = %v", err)
		}

		comments := svc.Comments("a/b.txt")
		if len(comments) != 2 {
			t.Fatalf("Comments() returned %d entries, want 2", len(comments))
		}
		if comments[0].Text != "first!" || comments[1].Text != "second" {
			t.Errorf("comments out of order: %v", comments)
		}
		if comments[1].User != "alice" {
			t.Errorf("comment user = %q, want alice", comments[1].User)
		}
	})

	t.Run("no comments", func(t *testing.T) {
		if got := svc.Comments("other/file.txt"); len(got) != 0 {
			t.Errorf("Comments() = %v, want empty", got)
		}
	})
}

func TestService_Delete(t *testing.T) {
	svc, meta := newTestService(t)

	logical, err := svc.Ingest("note.txt", strings.NewReader("content"), 7)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if err := svc.Delete(logical); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// The artifact is gone.
	art, _ := meta.Get(logical)["artifact"].(string)
	if _, err := os.Stat(filepath.Join(svc.Root(), art)); !os.IsNotExist(err) {
		t.Error("artifact still on disk after Delete()")
	}

	// The metadata record deliberately survives.
	if bag := meta.Get(logical); len(bag) == 0 {
		t.Error("metadata record removed by Delete()")
	}

	// Deleting again reports the file as missing.
	if err := svc.Delete(logical); !errors.Is(err, keep.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}

	// The surviving record does not resurrect the file in listings.
	entries, err := svc.List("", true)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("List() returned %d entries after Delete(), want 0", len(entries))
	}
}

func TestService_Share(t *testing.T) {
	svc, _ := newTestService(t)

	logical, err := svc.Ingest("note.txt", strings.NewReader("content"), 7)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	t.Run("share and resolve", func(t *testing.T) {
		token, err := svc.Share(logical, "", time.Hour)
		if err != nil {
			t.Fatalf("Share() error = %v", err)
		}

		path, err := svc.ResolveShare(token, "")
		if err != nil {
			t.Fatalf("ResolveShare() error = %v", err)
		}
		if path != logical {
			t.Errorf("ResolveShare() = %q, want %q", path, logical)
		}

		if err := svc.RevokeShare(token); err != nil {
			t.Fatalf("RevokeShare() error = %v", err)
		}
	})

	t.Run("sharing a missing file fails", func(t *testing.T) {
		if _, err := svc.Share("no/such/file.txt", "", time.Hour); !errors.Is(err, keep.ErrNotFound) {
			t.Errorf("Share() error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_List(t *testing.T) {
	svc, _ := newTestService(t)

	for _, name := range []string{"b.txt", "a.txt", "photo.jpg"} {
		if _, err := svc.Ingest(name, strings.NewReader("content"), 7); err != nil {
			t.Fatalf("Ingest(%s) error = %v", name, err)
		}
	}

	t.Run("recursive listing returns logical entries", func(t *testing.T) {
		entries, err := svc.List("", true)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		want := []struct{ path, category string }{
			{"2024-01-15/documents/a.txt", "documents"},
			{"2024-01-15/documents/b.txt", "documents"},
			{"2024-01-15/photos/photo.jpg", "photos"},
		}
		if len(entries) != len(want) {
			t.Fatalf("List() returned %d entries, want %d", len(entries), len(want))
		}
		for i, e := range entries {
			if e.Path != filepath.FromSlash(want[i].path) {
				t.Errorf("entries[%d].Path = %q, want %q", i, e.Path, want[i].path)
			}
			if e.Category != want[i].category {
				t.Errorf("entries[%d].Category = %q, want %q", i, e.Category, want[i].category)
			}
			// The bag was written at ingest and is keyed by the
			// logical path, not the on-disk artifact name.
			if enc, _ := e.Metadata["encrypted"].(bool); !enc {
				t.Errorf("entries[%d].Metadata[encrypted] = %v, want true", i, e.Metadata["encrypted"])
			}
			if art, _ := e.Metadata["artifact"].(string); art == "" {
				t.Errorf("entries[%d].Metadata missing artifact attribute", i)
			}
		}
	})

	t.Run("non-recursive listing skips subdirectories", func(t *testing.T) {
		entries, err := svc.List("", false)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		// Everything lives under day/category folders.
		if len(entries) != 0 {
			t.Errorf("List() returned %d top-level entries, want 0", len(entries))
		}
	})

	t.Run("listing inside a category", func(t *testing.T) {
		entries, err := svc.List(filepath.Join("2024-01-15", "documents"), false)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("List() returned %d entries, want 2", len(entries))
		}
	})

	t.Run("missing subdir", func(t *testing.T) {
		if _, err := svc.List("1999-01-01", false); !errors.Is(err, keep.ErrNotFound) {
			t.Errorf("List() error = %v, want ErrNotFound", err)
		}
	})
}

// A compressed artifact drops the original extension on disk, so the
// listing must recover the logical path through the artifact attribute
// rather than by stripping suffixes.
func TestService_ListCompressed(t *testing.T) {
	svc, _ := newTestService(t)

	body := strings.Repeat("compressible ", 200)
	logical, err := svc.Ingest("big.txt", strings.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	entries, err := svc.List("", true)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List() returned %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Path != logical {
		t.Errorf("Path = %q, want %q", e.Path, logical)
	}
	if e.Name != "big.txt" {
		t.Errorf("Name = %q, want big.txt", e.Name)
	}
	if e.Category != "documents" {
		t.Errorf("Category = %q, want documents", e.Category)
	}
	if compressed, _ := e.Metadata["compressed"].(bool); !compressed {
		t.Errorf("Metadata[compressed] = %v, want true", e.Metadata["compressed"])
	}
}
