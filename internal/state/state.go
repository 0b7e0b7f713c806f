// Package state persists the watcher's watermark and in-progress flag.
// The flag is a cross-restart mutex: it survives crashes, so startup must
// always clear a stale value; no persisted state may leave the system
// permanently unable to make progress.
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// SyncState is the persisted record owned exclusively by the watcher.
type SyncState struct {
	// LastProcessedRevision is the newest revision a successful cycle has
	// summarized. Empty until the first success.
	LastProcessedRevision string `json:"last_processed_revision"`
	// IsProcessing is true while a cycle is in flight.
	IsProcessing bool `json:"is_processing"`
}

// File reads and writes SyncState at a fixed tool-private path.
type File struct {
	path string
}

// NewFile creates a state file handle at dir/state.json.
func NewFile(dir string) *File {
	return &File{path: filepath.Join(dir, "state.json")}
}

// Path returns the on-disk location.
func (f *File) Path() string { return f.path }

// Load returns the persisted state, or the zero value when the file does
// not exist yet (first run).
func (f *File) Load() (SyncState, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return SyncState{}, nil
	}
	if err != nil {
		return SyncState{}, fmt.Errorf("read sync state: %w", err)
	}
	var s SyncState
	if err := json.Unmarshal(data, &s); err != nil {
		// A corrupt state file must not block progress forever: start
		// over with an empty watermark and re-summarize the latest commit.
		slog.Warn("sync state corrupt, resetting", "path", f.path, "error", err)
		return SyncState{}, nil
	}
	return s, nil
}

// Save atomically replaces the state file.
func (f *File) Save(s SyncState) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sync state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "state-*.json")
	if err != nil {
		return fmt.Errorf("write sync state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write sync state: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write sync state: %w", err)
	}
	return nil
}

// ResetStaleLock clears a leftover IsProcessing flag from a crashed run.
// Called once at startup, before watching begins.
func (f *File) ResetStaleLock() error {
	s, err := f.Load()
	if err != nil {
		return err
	}
	if !s.IsProcessing {
		return nil
	}
	slog.Warn("clearing stale processing lock from a previous crash")
	s.IsProcessing = false
	return f.Save(s)
}
