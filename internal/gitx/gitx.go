// Package gitx wraps the git binary for the synchronization pipeline.
// All operations are read-only except Stage.
package gitx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrNoCommits is returned by HeadRevision for a repository with no commits yet.
var ErrNoCommits = errors.New("repository has no commits")

// Repo is a handle to one git working copy.
type Repo struct {
	root string
}

// New returns a repo handle rooted at dir. The directory is not validated
// here; the first git call will fail if it is not a work tree.
func New(dir string) *Repo {
	return &Repo{root: dir}
}

// Root returns the working-copy path this handle operates on.
func (r *Repo) Root() string { return r.root }

// LogEntry is one line of oneline history.
type LogEntry struct {
	Revision string
	Message  string
	Date     time.Time
}

// run executes git with stdout and stderr captured separately, so callers
// can classify failures from stderr without parsing mixed output.
func (r *Repo) run(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", r.root}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return stdout.String(), stderr.String(),
			fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), stderr.String(), nil
}

// HeadRevision returns the hash of HEAD on the tracked branch.
// Returns ErrNoCommits when the repository has no commits yet.
func (r *Repo) HeadRevision(ctx context.Context) (string, error) {
	out, stderr, err := r.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		if isUnbornHead(stderr) {
			return "", ErrNoCommits
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// DiffRevision returns the unified diff introduced by a single revision.
func (r *Repo) DiffRevision(ctx context.Context, rev string) (string, error) {
	out, _, err := r.run(ctx, "show", "--format=", "--unified=3", rev)
	if err != nil {
		return "", err
	}
	return out, nil
}

// DiffRange returns the unified diff from..to. When the range is genuinely
// unrepresentable (unknown revision, e.g. shallow history after a fetch
// prune), it falls back to the diff of the single to revision. Any other
// failure is returned as-is so the caller can retry with the same
// watermark instead of silently under-summarizing.
func (r *Repo) DiffRange(ctx context.Context, from, to string) (string, error) {
	out, stderr, err := r.run(ctx, "diff", "--unified=3", from+".."+to)
	if err == nil {
		return out, nil
	}
	if isUnknownRevision(stderr) {
		return r.DiffRevision(ctx, to)
	}
	return "", err
}

// WorkingTreeDiff returns the uncommitted diff against HEAD, staged and
// unstaged combined. Empty string when the tree is clean.
func (r *Repo) WorkingTreeDiff(ctx context.Context) (string, error) {
	out, stderr, err := r.run(ctx, "diff", "HEAD", "--unified=3")
	if err != nil {
		// No HEAD yet: everything is uncommitted but there is nothing to
		// diff against, treat as clean.
		if isUnbornHead(stderr) || isUnknownRevision(stderr) {
			return "", nil
		}
		return "", err
	}
	return out, nil
}

// OnelineHistory returns up to limit {rev, message, date} entries, newest
// first, optionally bounded by since. A repository with no commits yields
// an empty slice, not an error.
func (r *Repo) OnelineHistory(ctx context.Context, limit int, since time.Time) ([]LogEntry, error) {
	args := []string{"log", fmt.Sprintf("--max-count=%d", limit), "--format=%H%x1f%s%x1f%aI"}
	if !since.IsZero() {
		args = append(args, "--since="+since.Format(time.RFC3339))
	}
	out, stderr, err := r.run(ctx, args...)
	if err != nil {
		if isUnbornHead(stderr) {
			return []LogEntry{}, nil
		}
		return nil, err
	}

	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\x1f", 3)
		if len(parts) != 3 {
			continue
		}
		e := LogEntry{Revision: parts[0], Message: parts[1]}
		if t, perr := time.Parse(time.RFC3339, parts[2]); perr == nil {
			e.Date = t
		}
		entries = append(entries, e)
	}
	if entries == nil {
		entries = []LogEntry{}
	}
	return entries, nil
}

// Stage adds a path to the index. The only write access this package needs.
func (r *Repo) Stage(ctx context.Context, path string) error {
	_, _, err := r.run(ctx, "add", "--", path)
	return err
}

// ListFiles returns the tracked file paths, or the working-tree paths for a
// repository with no commits yet. Used by the cold-start inference path.
func (r *Repo) ListFiles(ctx context.Context) ([]string, error) {
	out, _, err := r.run(ctx, "ls-files", "--cached", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// HasConflictMarkers reports whether text contains unresolved VCS conflict
// markers. Marker lines must start at column zero, which is where git
// writes them; indented occurrences (e.g. inside code samples) don't count.
func HasConflictMarkers(text string) bool {
	// A bare "=======" line is legal markdown (setext underline), so only
	// the unambiguous begin/end markers count.
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "<<<<<<<") || strings.HasPrefix(line, ">>>>>>>") {
			return true
		}
	}
	return false
}

// isUnbornHead matches the stderr git emits when HEAD points at a branch
// with no commits.
func isUnbornHead(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "unknown revision") && strings.Contains(s, "head") ||
		strings.Contains(s, "ambiguous argument 'head'") ||
		strings.Contains(s, "does not have any commits yet")
}

// isUnknownRevision matches a genuinely unrepresentable revision or range,
// as opposed to a transient failure of the git invocation itself.
func isUnknownRevision(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "unknown revision") ||
		strings.Contains(s, "bad revision") ||
		strings.Contains(s, "bad object") ||
		strings.Contains(s, "invalid symmetric difference expression")
}
