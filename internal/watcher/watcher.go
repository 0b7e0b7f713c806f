// Package watcher triggers sync cycles from git metadata activity.
// It watches the .git directory (HEAD, refs, index) rather than the
// working tree: commits, merges, branch switches and stage operations
// all funnel through there, while edits to ordinary files do not fire
// until git itself records something. Bursts are debounced with a
// resettable timer, so a rebase touching fifty refs yields one cycle.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/repomindhq/repomind/internal/syncer"
)

// DefaultDebounce is the quiet period after the last git event before a
// cycle starts.
const DefaultDebounce = 500 * time.Millisecond

// Phase is the watcher's externally visible state.
type Phase int32

const (
	Idle Phase = iota
	PendingDebounce
	Processing
)

func (p Phase) String() string {
	switch p {
	case PendingDebounce:
		return "pending"
	case Processing:
		return "processing"
	default:
		return "idle"
	}
}

// Cycler runs one synchronization cycle.
type Cycler interface {
	SyncOnce(ctx context.Context) (syncer.Result, error)
}

// Watcher owns the fsnotify subscription and the debounce timer.
type Watcher struct {
	gitDir   string
	cycler   Cycler
	debounce time.Duration

	fsw      *fsnotify.Watcher
	stopChan chan struct{}

	mu           sync.Mutex
	timer        *time.Timer
	phase        Phase
	lastCycleEnd time.Time
}

// New creates a watcher over repoRoot/.git. debounce <= 0 selects the
// default.
func New(repoRoot string, cycler Cycler, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		gitDir:   filepath.Join(repoRoot, ".git"),
		cycler:   cycler,
		debounce: debounce,
		fsw:      fsw,
	}, nil
}

// Start subscribes to git metadata paths and begins the event loop. The
// context cancels in-flight cycles; Stop ends the loop.
func (w *Watcher) Start(ctx context.Context) error {
	// refs/heads must be watched as a directory: branch tips are
	// separate files beneath it and new ones appear at runtime.
	for _, p := range []string{w.gitDir, filepath.Join(w.gitDir, "refs", "heads")} {
		if err := w.fsw.Add(p); err != nil {
			w.fsw.Close()
			return err
		}
	}

	w.stopChan = make(chan struct{})
	go w.loop(ctx)

	slog.Info("watching git metadata", "dir", w.gitDir, "debounce", w.debounce)
	return nil
}

// Stop halts the watcher. A cycle already running completes; a pending
// debounce is cancelled.
func (w *Watcher) Stop() {
	if w.stopChan != nil {
		close(w.stopChan)
	}
	w.fsw.Close()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	slog.Info("watcher stopped")
}

// Phase reports the current state.
func (w *Watcher) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !isGitMetadata(w.gitDir, event.Name) {
				continue
			}
			// A cycle stages the memory document, touching the index.
			// Index-only events during and right after a cycle are the
			// pipeline's own footprint, not new work.
			if isIndexPath(w.gitDir, event.Name) && w.ownStageWindow() {
				continue
			}
			w.bump(ctx)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// bump resets the debounce timer. Each git event during a burst pushes
// the cycle out again; only the final quiet period fires it.
func (w *Watcher) bump(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.phase = PendingDebounce
	w.timer = time.AfterFunc(w.debounce, func() {
		w.fire(ctx)
	})
}

func (w *Watcher) fire(ctx context.Context) {
	w.mu.Lock()
	if w.phase == Processing {
		// A cycle is still running; its own writes or overlapping git
		// activity re-trigger us. Try again after another quiet period.
		w.timer = time.AfterFunc(w.debounce, func() { w.fire(ctx) })
		w.mu.Unlock()
		return
	}
	w.phase = Processing
	w.mu.Unlock()

	res, err := w.cycler.SyncOnce(ctx)
	switch {
	case errors.Is(err, syncer.ErrBusy):
		slog.Info("cycle already running elsewhere, will retry on next event")
	case err != nil:
		// The watermark did not move, so the next git event retries the
		// same range.
		slog.Error("sync cycle failed", "error", err)
	case res.Kind != "":
		slog.Info("sync cycle finished", "kind", res.Kind, "outcome", res.Outcome)
	}

	w.mu.Lock()
	w.phase = Idle
	w.lastCycleEnd = time.Now()
	w.mu.Unlock()
}

// ownStageWindow reports whether an index event is attributable to the
// running or just-finished cycle's own staging. Commits and user stage
// operations still get through: they also touch HEAD or refs, which are
// never suppressed.
func (w *Watcher) ownStageWindow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase == Processing {
		return true
	}
	return !w.lastCycleEnd.IsZero() && time.Since(w.lastCycleEnd) < w.debounce
}

func isIndexPath(gitDir, path string) bool {
	rel, err := filepath.Rel(gitDir, path)
	if err != nil {
		return false
	}
	return filepath.ToSlash(rel) == "index"
}

// isGitMetadata reports whether a path under .git is one that signals a
// repository state change worth a cycle. Transient lockfiles and object
// writes are noise.
func isGitMetadata(gitDir, path string) bool {
	rel, err := filepath.Rel(gitDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)

	if strings.HasSuffix(rel, ".lock") {
		return false
	}
	switch rel {
	case "HEAD", "index", "packed-refs", "COMMIT_EDITMSG", "MERGE_HEAD", "ORIG_HEAD":
		return true
	}
	return strings.HasPrefix(rel, "refs/")
}
