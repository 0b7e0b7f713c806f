// Package journal records synchronization cycles in a local sqlite
// database: an intent row when a cycle starts and a completion marker
// when it ends. Purely informational: the watermark file, not the
// journal, is what guarantees at-most-once processing. It lets an
// operator see exactly what a crash interrupted.
package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Cycle kinds.
const (
	KindCommit    = "commit"    // new revisions past the watermark
	KindDraft     = "draft"     // uncommitted working-tree changes
	KindBootstrap = "bootstrap" // cold-start inference from file tree
)

// Cycle outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped" // e.g. cosmetic-only diff
)

// Entry is one journaled cycle.
type Entry struct {
	ID         string
	Kind       string
	FromRev    string
	ToRev      string
	Outcome    string // empty while the cycle is still running
	Detail     string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
}

// Journal is the sqlite-backed cycle log. Safe for concurrent use.
type Journal struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates (or opens) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			from_rev TEXT NOT NULL DEFAULT '',
			to_rev TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at DESC)`,
	}
	for _, s := range stmts {
		if _, err := j.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Begin writes the intent row for a starting cycle and returns its ID.
func (j *Journal) Begin(kind, fromRev, toRev string) string {
	j.mu.Lock()
	defer j.mu.Unlock()

	id := uuid.NewString()
	_, err := j.db.Exec(
		`INSERT INTO cycles (id, kind, from_rev, to_rev, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, kind, fromRev, toRev, time.Now().Unix())
	if err != nil {
		// Journal failures never fail the cycle.
		slog.Warn("journal begin failed", "error", err)
	}
	return id
}

// Finish writes the completion marker for a cycle.
func (j *Journal) Finish(id, outcome, detail string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`UPDATE cycles SET outcome = ?, detail = ?, finished_at = ? WHERE id = ?`,
		outcome, detail, time.Now().Unix(), id)
	if err != nil {
		slog.Warn("journal finish failed", "error", err)
	}
}

// Recent returns up to n cycles, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, kind, from_rev, to_rev, outcome, detail, started_at, finished_at
		 FROM cycles ORDER BY started_at DESC, id LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started, finished int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.FromRev, &e.ToRev, &e.Outcome, &e.Detail, &started, &finished); err != nil {
			return nil, err
		}
		e.StartedAt = time.Unix(started, 0)
		if finished > 0 {
			e.FinishedAt = time.Unix(finished, 0)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
