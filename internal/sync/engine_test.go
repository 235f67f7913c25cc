package sync

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filekeep/internal/testutil"
)

// startEngine starts an engine and registers a bounded stop. Worker
// tests drive it through Enqueue; duplicate deliveries from the live
// watcher are harmless because replica writes are idempotent per path.
func startEngine(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { e.Stop(2 * time.Second) })
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEngine_MirrorsEnqueuedEvents(t *testing.T) {
	local := t.TempDir()
	replica := NewMemoryReplica()
	e := NewEngine(local, replica, 16, nil)
	startEngine(t, e)

	path := testutil.WriteFile(t, local, "2024-01-15/photos/cat.jpg", "image bytes")
	e.Enqueue(Event{Kind: Created, Path: path})

	waitFor(t, func() bool { return replica.Len() == 1 })
	rel := filepath.Join("2024-01-15", "photos", "cat.jpg")
	data, ok := replica.Get(rel)
	if !ok {
		t.Fatalf("replica missing %s", rel)
	}
	if string(data) != "image bytes" {
		t.Errorf("replica content = %q, want %q", data, "image bytes")
	}
}

func TestEngine_ModifyOverwritesReplica(t *testing.T) {
	local := t.TempDir()
	replica := NewMemoryReplica()
	e := NewEngine(local, replica, 16, nil)
	startEngine(t, e)

	path := testutil.WriteFile(t, local, "note.txt", "v1")
	e.Enqueue(Event{Kind: Created, Path: path})
	waitFor(t, func() bool { return replica.Len() == 1 })

	testutil.WriteFile(t, local, "note.txt", "v2")
	e.Enqueue(Event{Kind: Modified, Path: path})
	waitFor(t, func() bool {
		data, _ := replica.Get("note.txt")
		return string(data) == "v2"
	})
}

func TestEngine_DeleteRemovesFromReplica(t *testing.T) {
	local := t.TempDir()
	replica := NewMemoryReplica()
	e := NewEngine(local, replica, 16, nil)
	startEngine(t, e)

	path := testutil.WriteFile(t, local, "note.txt", "content")
	e.Enqueue(Event{Kind: Created, Path: path})
	waitFor(t, func() bool { return replica.Len() == 1 })

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	e.Enqueue(Event{Kind: Deleted, Path: path})
	waitFor(t, func() bool { return replica.Len() == 0 })
}

func TestEngine_SkipsVanishedSource(t *testing.T) {
	local := t.TempDir()
	replica := NewMemoryReplica()
	e := NewEngine(local, replica, 16, nil)
	startEngine(t, e)

	// The file disappears between notification and processing.
	gone := filepath.Join(local, "fleeting.txt")
	e.Enqueue(Event{Kind: Created, Path: gone})

	// Give the worker a moment; nothing should be mirrored.
	marker := testutil.WriteFile(t, local, "marker.txt", "x")
	e.Enqueue(Event{Kind: Created, Path: marker})
	waitFor(t, func() bool { return replica.Len() == 1 })

	if _, ok := replica.Get("fleeting.txt"); ok {
		t.Error("vanished source was mirrored")
	}
}

func TestEngine_WatcherPicksUpNewFiles(t *testing.T) {
	local := t.TempDir()
	replica := NewMemoryReplica()
	e := NewEngine(local, replica, 16, nil)
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer e.Stop(2 * time.Second)

	testutil.WriteFile(t, local, "fresh.txt", "hello")
	waitFor(t, func() bool {
		data, ok := replica.Get("fresh.txt")
		return ok && string(data) == "hello"
	})
}

func TestEngine_WatcherFollowsNewDirectories(t *testing.T) {
	local := t.TempDir()
	replica := NewMemoryReplica()
	e := NewEngine(local, replica, 16, nil)
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer e.Stop(2 * time.Second)

	if err := os.MkdirAll(filepath.Join(local, "2024-01-15", "photos"), 0755); err != nil {
		t.Fatal(err)
	}
	// The recursive watch needs a beat to attach to the new directory.
	time.Sleep(100 * time.Millisecond)

	testutil.WriteFile(t, local, "2024-01-15/photos/cat.jpg", "image")
	waitFor(t, func() bool {
		_, ok := replica.Get(filepath.Join("2024-01-15", "photos", "cat.jpg"))
		return ok
	})
}

func TestEngine_StartStop(t *testing.T) {
	t.Run("double start fails", func(t *testing.T) {
		e := NewEngine(t.TempDir(), NewMemoryReplica(), 16, nil)
		if err := e.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		defer e.Stop(2 * time.Second)

		if err := e.Start(); err == nil {
			t.Error("second Start() should fail")
		}
	})

	t.Run("stop before start is a no-op", func(t *testing.T) {
		e := NewEngine(t.TempDir(), NewMemoryReplica(), 16, nil)
		e.Stop(time.Second)
	})

	t.Run("stop returns within the timeout", func(t *testing.T) {
		e := NewEngine(t.TempDir(), NewMemoryReplica(), 16, nil)
		if err := e.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		done := make(chan struct{})
		go func() {
			e.Stop(2 * time.Second)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Stop() did not return")
		}
	})
}

// A graceful stop must flush the queue: events buffered behind the
// cancellation are still applied before the worker exits.
func TestEngine_StopDrainsQueuedEvents(t *testing.T) {
	local := t.TempDir()
	replica := NewMemoryReplica()

	const n = 32
	paths := make([]string, n)
	for i := range paths {
		name := fmt.Sprintf("file-%02d.txt", i)
		paths[i] = testutil.WriteFile(t, local, name, name)
	}

	e := NewEngine(local, replica, 64, nil)
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for _, p := range paths {
		e.Enqueue(Event{Kind: Created, Path: p})
	}
	e.Stop(5 * time.Second)

	if got := replica.Len(); got != n {
		t.Fatalf("replica holds %d files after Stop(), want %d", got, n)
	}
	for i := range paths {
		rel := fmt.Sprintf("file-%02d.txt", i)
		if _, ok := replica.Get(rel); !ok {
			t.Errorf("replica missing %s", rel)
		}
	}
}

func TestFileSystemReplica(t *testing.T) {
	src := t.TempDir()
	remote := filepath.Join(t.TempDir(), "remote")

	r, err := NewFileSystemReplica(remote)
	if err != nil {
		t.Fatalf("NewFileSystemReplica() error = %v", err)
	}

	path := testutil.WriteFile(t, src, "a/b.txt", "content")
	rel := filepath.Join("a", "b.txt")

	if err := r.Put(rel, path); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(remote, rel))
	if err != nil {
		t.Fatalf("mirrored file unreadable: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("mirrored content = %q, want %q", data, "content")
	}

	if err := r.Remove(rel); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(remote, rel)); !os.IsNotExist(err) {
		t.Error("mirrored file still present after Remove()")
	}

	// Removing a never-mirrored path is not an error.
	if err := r.Remove("never/mirrored.txt"); err != nil {
		t.Errorf("Remove() of unmirrored path error = %v", err)
	}
}
