// Package diff models unified diffs as ordered file sections so the
// pipeline can filter and chunk without re-scanning raw text.
package diff

import "strings"

// FileSection is one "diff --git" section: a path plus its full body,
// including the section header and all hunks.
type FileSection struct {
	Path    string // new-side path (b/...), the one the change lands on
	OldPath string // old-side path (a/...), differs from Path on rename
	Body    string // entire section text, header included
}

// Diff is an ordered sequence of file sections. Never persisted; it is
// streamed through one synchronization cycle and dropped.
type Diff struct {
	Sections []FileSection
}

// Empty reports whether the diff carries no file sections.
func (d Diff) Empty() bool { return len(d.Sections) == 0 }

// String reassembles the diff text in section order.
func (d Diff) String() string {
	var b strings.Builder
	for _, s := range d.Sections {
		b.WriteString(s.Body)
	}
	return b.String()
}

// Parse splits raw unified-diff text into file sections. Text before the
// first "diff --git" line (e.g. a commit header from git show) is dropped.
func Parse(raw string) Diff {
	var d Diff
	lines := strings.SplitAfter(raw, "\n")

	var cur *FileSection
	flush := func() {
		if cur != nil && cur.Body != "" {
			d.Sections = append(d.Sections, *cur)
		}
		cur = nil
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git ") {
			flush()
			old, new_ := parseGitHeader(strings.TrimRight(line, "\n"))
			cur = &FileSection{Path: new_, OldPath: old}
		}
		if cur != nil {
			cur.Body += line
		}
	}
	flush()
	return d
}

// parseGitHeader extracts the a/ and b/ paths from a "diff --git" line.
// Quoted paths (spaces, unicode escapes) keep their quotes stripped only
// at the ends; git's own escaping inside is left alone.
func parseGitHeader(line string) (oldPath, newPath string) {
	rest := strings.TrimPrefix(line, "diff --git ")

	// Common case: `a/path b/path` with no spaces inside paths.
	if i := strings.Index(rest, " b/"); i >= 0 && !strings.HasPrefix(rest, "\"") {
		oldPath = strings.TrimPrefix(rest[:i], "a/")
		newPath = strings.TrimPrefix(rest[i+1:], "b/")
		return oldPath, newPath
	}

	// Quoted or otherwise unusual: best effort on whitespace split.
	fields := strings.Fields(rest)
	if len(fields) >= 2 {
		oldPath = strings.TrimPrefix(strings.Trim(fields[0], "\""), "a/")
		newPath = strings.TrimPrefix(strings.Trim(fields[len(fields)-1], "\""), "b/")
	}
	return oldPath, newPath
}

// EstimateTokens is the fixed sizing heuristic used for chunking
// decisions: characters divided by four. Deliberately not the generator's
// real tokenizer; it only needs to be cheap, deterministic and monotonic.
func EstimateTokens(s string) int {
	return len(s) / 4
}
