package keep_test

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"filekeep/internal/keep"
)

func TestCreateVersion(t *testing.T) {
	t.Run("versions number from one", func(t *testing.T) {
		svc, _ := newTestService(t)

		logical, err := svc.Ingest("note.txt", strings.NewReader("content"), 7)
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		for want := 1; want <= 3; want++ {
			v, err := svc.CreateVersion(logical)
			if err != nil {
				t.Fatalf("CreateVersion() #%d error = %v", want, err)
			}
			if v.Version != want {
				t.Errorf("CreateVersion() version = %d, want %d", v.Version, want)
			}
			if _, err := os.Stat(filepath.Join(svc.Root(), v.Path)); err != nil {
				t.Errorf("version copy missing on disk: %v", err)
			}
		}

		versions := svc.Versions(logical)
		if len(versions) != 3 {
			t.Fatalf("Versions() returned %d entries, want 3", len(versions))
		}
		for i, v := range versions {
			if v.Version != i+1 {
				t.Errorf("versions[%d].Version = %d, want %d", i, v.Version, i+1)
			}
		}

		// Version snapshots belong to their logical file; listings
		// show one entry, not one per on-disk copy.
		entries, err := svc.List("", true)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("List() returned %d entries, want 1", len(entries))
		}
	})

	t.Run("missing file", func(t *testing.T) {
		svc, _ := newTestService(t)

		if _, err := svc.CreateVersion("no/such/file.txt"); !errors.Is(err, keep.ErrNotFound) {
			t.Errorf("CreateVersion() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("concurrent creation yields gap-free numbering", func(t *testing.T) {
		svc, _ := newTestService(t)

		logical, err := svc.Ingest("note.txt", strings.NewReader("content"), 7)
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		const n = 8
		results := make([]int, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, err := svc.CreateVersion(logical)
				if err != nil {
					t.Errorf("CreateVersion() error = %v", err)
					return
				}
				results[i] = v.Version
			}(i)
		}
		wg.Wait()

		sort.Ints(results)
		for i, got := range results {
			if got != i+1 {
				t.Fatalf("version numbers = %v, want 1..%d with no gaps", results, n)
			}
		}
	})
}

func TestVersions_EmptyWithoutMetadata(t *testing.T) {
	svc, _ := newTestService(t)

	if got := svc.Versions("no/such/file.txt"); len(got) != 0 {
		t.Errorf("Versions() = %v, want empty", got)
	}
}
