// Package sync mirrors filesystem changes under a local root to a
// replica. A watcher turns OS notifications into events on an
// in-process queue; a single background worker drains the queue in
// enqueue order and applies each event to the replica.
//
// The queue is not durable: events buffered at crash time are lost.
// That is an accepted best-effort limitation, not a recovery gap to
// paper over.
package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"filekeep/internal/keep"
)

// EventKind classifies a filesystem notification.
type EventKind string

const (
	Created  EventKind = "created"
	Modified EventKind = "modified"
	Deleted  EventKind = "deleted"
)

// Event is one filesystem change observed under the local root.
// Path is absolute.
type Event struct {
	Kind EventKind
	Path string
}

// Engine owns the watcher (producer) and the worker (consumer).
// Start launches both; Stop cancels them cooperatively with a bounded
// wait.
type Engine struct {
	local   string
	replica Replica
	logger  keep.Logger

	events  chan Event
	watcher *Watcher
	cancel  context.CancelFunc
	wg      gosync.WaitGroup

	started bool
}

// NewEngine creates an Engine mirroring local into replica. queueSize
// bounds the event queue; a full queue backpressures the watcher.
func NewEngine(local string, replica Replica, queueSize int, logger keep.Logger) *Engine {
	if logger == nil {
		logger = keep.NewNopLogger()
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Engine{
		local:   local,
		replica: replica,
		logger:  logger,
		events:  make(chan Event, queueSize),
	}
}

// Start begins watching the local root and processing events. The
// local root is created if missing so the watch can attach.
func (e *Engine) Start() error {
	if e.started {
		return fmt.Errorf("sync engine already started")
	}

	if err := os.MkdirAll(e.local, 0755); err != nil {
		return fmt.Errorf("creating local root: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	w, err := NewWatcher(e.local, e.events, e.logger)
	if err != nil {
		cancel()
		return fmt.Errorf("creating watcher: %w", err)
	}
	e.watcher = w

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		w.Run(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.work(ctx)
	}()

	e.started = true
	e.logger.Info("sync engine started", "local", e.local)
	return nil
}

// Stop signals the watcher and worker to exit and waits up to timeout
// for them. On timeout shutdown proceeds anyway; the condition is
// logged, not escalated.
func (e *Engine) Stop(timeout time.Duration) {
	if !e.started {
		return
	}
	e.cancel()
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			e.logger.Error("closing watcher", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.logger.Info("sync engine stopped")
	case <-time.After(timeout):
		e.logger.Warn("sync engine did not stop within timeout", "timeout", timeout)
	}
	e.started = false
}

// Enqueue adds an event to the queue, blocking while it is full.
// Normally the watcher is the only producer; tests drive the worker
// through this directly.
func (e *Engine) Enqueue(ev Event) {
	e.events <- ev
}

// work consumes the queue until the context is cancelled, then drains
// whatever is still buffered so a graceful stop does not abandon
// queued events. Events are processed strictly in enqueue order by
// this single goroutine; a failed event is logged and the loop moves
// on (at-most-once, no retry).
func (e *Engine) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.drain()
			return
		case ev := <-e.events:
			e.handle(ev)
		}
	}
}

// drain applies every event left in the buffer. The watcher stops
// producing once the context is cancelled, so this terminates.
func (e *Engine) drain() {
	for {
		select {
		case ev := <-e.events:
			e.handle(ev)
		default:
			return
		}
	}
}

func (e *Engine) handle(ev Event) {
	if err := e.process(ev); err != nil {
		e.logger.Error("sync event failed",
			"kind", string(ev.Kind), "path", ev.Path, "error", err)
	}
}

// process applies one event to the replica. For created/modified the
// source must still exist at processing time; a file deleted in the
// meantime is skipped silently. For deleted the replica removes any
// mirrored counterpart.
func (e *Engine) process(ev Event) error {
	rel, err := filepath.Rel(e.local, ev.Path)
	if err != nil {
		return fmt.Errorf("relativizing %s: %w", ev.Path, err)
	}

	switch ev.Kind {
	case Created, Modified:
		if _, err := os.Stat(ev.Path); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("stat source: %w", err)
		}
		if err := e.replica.Put(rel, ev.Path); err != nil {
			return fmt.Errorf("mirroring %s: %w", rel, err)
		}
		e.logger.Debug("mirrored", "path", rel)
	case Deleted:
		if err := e.replica.Remove(rel); err != nil {
			return fmt.Errorf("unmirroring %s: %w", rel, err)
		}
		e.logger.Debug("unmirrored", "path", rel)
	default:
		return fmt.Errorf("unknown event kind: %s", ev.Kind)
	}
	return nil
}
