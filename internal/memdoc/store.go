package memdoc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/repomindhq/repomind/internal/gitx"
)

// ConflictResolver resolves VCS conflict markers found in the document.
// Implemented by the summarizer; injected so this package stays leaf-side.
type ConflictResolver interface {
	MergeConflictMarkers(ctx context.Context, text string) (string, error)
}

// Stager stages a path in version control after a write.
type Stager interface {
	Stage(ctx context.Context, path string) error
}

// ErrInvalidDocument rejects writes that would persist a document missing
// required sections.
type ErrInvalidDocument struct {
	Missing []string
}

func (e *ErrInvalidDocument) Error() string {
	return fmt.Sprintf("invalid memory document: missing required sections %v", e.Missing)
}

// Store owns the on-disk memory document.
type Store struct {
	path     string // absolute path of the document
	relPath  string // repository-relative path, used for staging
	stager   Stager
	resolver ConflictResolver
}

// NewStore creates a store for the document at repoRoot/relPath.
func NewStore(repoRoot, relPath string, stager Stager, resolver ConflictResolver) *Store {
	return &Store{
		path:     filepath.Join(repoRoot, relPath),
		relPath:  relPath,
		stager:   stager,
		resolver: resolver,
	}
}

// Path returns the absolute document path.
func (s *Store) Path() string { return s.path }

// Read returns the document text, or "" when it does not exist yet. A
// document containing unresolved conflict markers is routed through the
// resolver and persisted before being returned; a residual marker after
// resolution is a hard failure.
func (s *Store) Read(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read memory document: %w", err)
	}
	text := string(data)

	if !gitx.HasConflictMarkers(text) {
		return text, nil
	}

	slog.Warn("memory document has conflict markers, resolving", "path", s.relPath)
	if s.resolver == nil {
		return "", fmt.Errorf("memory document has unresolved conflict markers and no resolver is configured")
	}
	merged, err := s.resolver.MergeConflictMarkers(ctx, text)
	if err != nil {
		return "", fmt.Errorf("resolve conflict markers: %w", err)
	}
	if err := s.Write(ctx, merged); err != nil {
		return "", fmt.Errorf("persist resolved document: %w", err)
	}
	return merged, nil
}

// Write validates, compacts if oversized, atomically replaces the file
// (temp write + rename, so readers see old or new content in full, never
// a torn write), then stages it. Invalid documents are rejected before
// anything touches disk.
func (s *Store) Write(ctx context.Context, text string) error {
	if !Validate(text) {
		return &ErrInvalidDocument{Missing: missingSections(text)}
	}

	if WordCount(text) > SoftCapWords {
		before := WordCount(text)
		text = Compact(text)
		slog.Info("memory document compacted", "words_before", before, "words_after", WordCount(text))
	}

	if err := atomicWrite(s.path, text); err != nil {
		return fmt.Errorf("write memory document: %w", err)
	}

	if s.stager != nil {
		if err := s.stager.Stage(ctx, s.relPath); err != nil {
			// Staging is best effort; the document on disk is already
			// consistent and the next write will stage again.
			slog.Warn("stage memory document failed", "error", err)
		}
	}
	return nil
}

// AppendToSection inserts content directly beneath the named section
// header, creating the section at the end of the document if absent, then
// persists through the same validated atomic-write path.
func (s *Store) AppendToSection(ctx context.Context, sectionName, content string) error {
	current, err := s.Read(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(current) == "" {
		return fmt.Errorf("append to section: no memory document exists yet")
	}

	doc := ParseDocument(current)
	entry := strings.TrimRight(content, "\n") + "\n"

	if sec := doc.find(sectionName); sec != nil {
		sec.Body = entry + sec.Body
	} else {
		doc.Sections = append(doc.Sections, Section{
			Header: sectionName,
			Body:   "\n" + entry,
		})
	}
	return s.Write(ctx, doc.Render())
}

func missingSections(text string) []string {
	doc := ParseDocument(text)
	var missing []string
	for _, required := range RequiredSections {
		if doc.find(required) == nil {
			missing = append(missing, required)
		}
	}
	return missing
}

// atomicWrite writes to a temp file in the target directory and renames
// it over the destination.
func atomicWrite(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
