package memdoc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validDoc() string {
	return `# Project Memory

## Project Soul
A tool that keeps project memory in sync with git history.

## Tech Stack
Go, sqlite, an OpenAI-compatible generator.

## Architecture
Watcher drives a pipeline: git diff, filter, chunk, summarize, persist.

## Core Rules
- Never enumerate individual files in summaries.

## Recent Decisions
- Adopted atomic rename for all document writes.

## Active Tech Debt
- None tracked yet.
`
}

func TestValidate(t *testing.T) {
	if !Validate(validDoc()) {
		t.Error("valid document rejected")
	}
	if Validate("") {
		t.Error("empty document accepted")
	}
	if Validate("   \n\n  ") {
		t.Error("whitespace document accepted")
	}

	missing := strings.Replace(validDoc(), "## Tech Stack", "## Stack Of Tech", 1)
	if Validate(missing) {
		t.Error("document missing a required section accepted")
	}
}

func TestValidate_DecorativeHeaderSuffix(t *testing.T) {
	doc := strings.Replace(validDoc(), "## Recent Decisions", "## Recent Decisions (newest first)", 1)
	if !Validate(doc) {
		t.Error("decorative header suffix rejected")
	}
}

func TestParseRender_RoundTrip(t *testing.T) {
	text := validDoc()
	doc := ParseDocument(text)
	if len(doc.Sections) != 6 {
		t.Fatalf("sections = %d, want 6", len(doc.Sections))
	}
	if got := doc.Render(); got != text {
		t.Errorf("render does not round-trip:\ngot:\n%s\nwant:\n%s", got, text)
	}
}

// oversizedDoc numbers decisions in insertion order and keeps the newest
// at the top, the same ordering AppendToSection produces.
func oversizedDoc(decisions int) string {
	var b strings.Builder
	b.WriteString(strings.Replace(validDoc(),
		"- Adopted atomic rename for all document writes.\n", "", 1))
	doc := ParseDocument(b.String())
	sec := doc.find("Recent Decisions")
	for i := 1; i <= decisions; i++ {
		sec.Body = fmt.Sprintf("- Decision %d: %s\n", i, strings.Repeat("word ", 130)) + sec.Body
	}
	return doc.Render()
}

func TestCompact(t *testing.T) {
	text := oversizedDoc(12)
	if WordCount(text) <= SoftCapWords {
		t.Fatalf("test fixture not oversized: %d words", WordCount(text))
	}

	compacted := Compact(text)
	doc := ParseDocument(compacted)
	sec := doc.find("Recent Decisions")
	if sec == nil {
		t.Fatal("compaction removed Recent Decisions")
	}

	bullets := 0
	for _, line := range strings.Split(sec.Body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "- ") {
			bullets++
		}
	}
	if bullets != 5 {
		t.Errorf("kept %d decisions, want 5", bullets)
	}
	// Newest entries survive, oldest are dropped.
	if !strings.Contains(sec.Body, "Decision 12") {
		t.Error("newest decision dropped")
	}
	if strings.Contains(sec.Body, "Decision 1:") {
		t.Error("oldest decision kept")
	}

	for _, required := range RequiredSections {
		if doc.find(required) == nil {
			t.Errorf("compaction removed required section %s", required)
		}
	}
}

func TestCompact_UnderCapUntouched(t *testing.T) {
	text := validDoc()
	if got := Compact(text); got != text {
		t.Error("compaction modified a document under the soft cap")
	}
}

type fakeStager struct{ staged []string }

func (f *fakeStager) Stage(_ context.Context, path string) error {
	f.staged = append(f.staged, path)
	return nil
}

type fakeResolver struct {
	out string
	err error
}

func (f *fakeResolver) MergeConflictMarkers(context.Context, string) (string, error) {
	return f.out, f.err
}

func TestStore_WriteAndRead(t *testing.T) {
	root := t.TempDir()
	stager := &fakeStager{}
	s := NewStore(root, "PROJECT_MEMORY.md", stager, nil)
	ctx := context.Background()

	if err := s.Write(ctx, validDoc()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != validDoc() {
		t.Error("read back different content")
	}
	if len(stager.staged) != 1 || stager.staged[0] != "PROJECT_MEMORY.md" {
		t.Errorf("staged = %v, want one entry for the document", stager.staged)
	}
}

func TestStore_Read_Missing(t *testing.T) {
	s := NewStore(t.TempDir(), "PROJECT_MEMORY.md", nil, nil)
	got, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "" {
		t.Errorf("missing document read = %q, want empty", got)
	}
}

func TestStore_SchemaGate(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root, "PROJECT_MEMORY.md", nil, nil)
	ctx := context.Background()

	if err := s.Write(ctx, validDoc()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	invalid := strings.Replace(validDoc(), "## Architecture", "## Shapes", 1)
	err := s.Write(ctx, invalid)
	if err == nil {
		t.Fatal("invalid document accepted")
	}
	var inv *ErrInvalidDocument
	if !errors.As(err, &inv) {
		t.Fatalf("err = %T, want ErrInvalidDocument", err)
	}
	if len(inv.Missing) == 0 {
		t.Error("error does not name the missing sections")
	}

	// Previous valid document must remain untouched.
	got, _ := s.Read(ctx)
	if got != validDoc() {
		t.Error("failed write altered the on-disk document")
	}
}

func TestStore_ConflictResolution(t *testing.T) {
	root := t.TempDir()
	conflicted := "<<<<<<< HEAD\n" + validDoc() + "=======\nother\n>>>>>>> branch\n"
	path := filepath.Join(root, "PROJECT_MEMORY.md")
	if err := os.WriteFile(path, []byte(conflicted), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(root, "PROJECT_MEMORY.md", nil, &fakeResolver{out: validDoc()})
	got, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("Read with conflict: %v", err)
	}
	if got != validDoc() {
		t.Error("resolved content not returned")
	}

	// Resolution is persisted, not just returned.
	onDisk, _ := os.ReadFile(path)
	if string(onDisk) != validDoc() {
		t.Error("resolved content not written back")
	}
}

func TestStore_AppendToSection(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root, "PROJECT_MEMORY.md", nil, nil)
	ctx := context.Background()
	if err := s.Write(ctx, validDoc()); err != nil {
		t.Fatal(err)
	}

	if err := s.AppendToSection(ctx, "Recent Decisions", "- Switched the journal to WAL mode."); err != nil {
		t.Fatalf("AppendToSection: %v", err)
	}
	got, _ := s.Read(ctx)
	doc := ParseDocument(got)
	sec := doc.find("Recent Decisions")
	if !strings.HasPrefix(strings.TrimSpace(sec.Body), "- Switched the journal to WAL mode.") {
		t.Errorf("content not inserted beneath header:\n%s", sec.Body)
	}

	// Unknown section is created at the end.
	if err := s.AppendToSection(ctx, "Pinned Files", "- docs/adr/0001.md"); err != nil {
		t.Fatalf("AppendToSection new section: %v", err)
	}
	got, _ = s.Read(ctx)
	doc = ParseDocument(got)
	last := doc.Sections[len(doc.Sections)-1]
	if last.Header != "Pinned Files" {
		t.Errorf("last section = %q, want Pinned Files", last.Header)
	}
}

func TestStore_AppendedDecisionsSurviveCompaction(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root, "PROJECT_MEMORY.md", nil, nil)
	ctx := context.Background()
	if err := s.Write(ctx, validDoc()); err != nil {
		t.Fatal(err)
	}

	// Long entries force the soft cap partway through, so compaction
	// runs during the loop and must keep trimming toward the newest.
	for i := 1; i <= 10; i++ {
		entry := fmt.Sprintf("- Decision %d: %s", i, strings.Repeat("word ", 250))
		if err := s.AppendToSection(ctx, "Recent Decisions", entry); err != nil {
			t.Fatalf("AppendToSection %d: %v", i, err)
		}
	}

	got, err := s.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "Decision 10") {
		t.Error("newest decision dropped by compaction")
	}
	if strings.Contains(got, "Decision 1:") {
		t.Error("oldest decision survived compaction")
	}
}

func TestStore_WriteCompactsOversized(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root, "PROJECT_MEMORY.md", nil, nil)
	ctx := context.Background()

	if err := s.Write(ctx, oversizedDoc(12)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read(ctx)
	if WordCount(got) >= WordCount(oversizedDoc(12)) {
		t.Error("oversized document written without compaction")
	}
	if !Validate(got) {
		t.Error("compacted document is not schema-valid")
	}
}
