package diff

import (
	"fmt"
	"strings"
	"testing"
)

func section(path, added string) string {
	return fmt.Sprintf(`diff --git a/%s b/%s
index 0000000..1111111 100644
--- a/%s
+++ b/%s
@@ -1,2 +1,3 @@
 context line
+%s
 more context
`, path, path, path, path, added)
}

func TestParse(t *testing.T) {
	raw := section("cmd/main.go", "fmt.Println(\"hi\")") + section("internal/db/db.go", "db.Open()")

	d := Parse(raw)
	if len(d.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(d.Sections))
	}
	if d.Sections[0].Path != "cmd/main.go" {
		t.Errorf("path = %q, want cmd/main.go", d.Sections[0].Path)
	}
	if d.Sections[1].Path != "internal/db/db.go" {
		t.Errorf("path = %q, want internal/db/db.go", d.Sections[1].Path)
	}
	if d.String() != raw {
		t.Error("String() does not round-trip the raw diff")
	}
}

func TestParse_DropsCommitHeader(t *testing.T) {
	raw := "commit abc123\nAuthor: someone\n\n    message\n\n" + section("a.go", "x := 1")

	d := Parse(raw)
	if len(d.Sections) != 1 {
		t.Fatalf("sections = %d, want 1", len(d.Sections))
	}
	if strings.Contains(d.Sections[0].Body, "Author:") {
		t.Error("commit header leaked into section body")
	}
}

func TestClean_DropsNoise(t *testing.T) {
	raw := section("package-lock.json", "\"lodash\": \"4.17.21\"") +
		section("dist/bundle.js", "minified()") +
		section("PROJECT_MEMORY.md", "## Tech Stack") +
		section(".repomind/state.json", "{}") +
		section("logo.png", "binary junk") +
		section("src/app.go", "real change")

	d := Clean(Parse(raw), DefaultPolicy(".repomind/", "PROJECT_MEMORY.md"))
	if len(d.Sections) != 1 {
		t.Fatalf("sections = %d, want 1 (only src/app.go)", len(d.Sections))
	}
	if d.Sections[0].Path != "src/app.go" {
		t.Errorf("kept %q, want src/app.go", d.Sections[0].Path)
	}
}

func TestClean_NoiseOnlyDiffBecomesEmpty(t *testing.T) {
	raw := section("yarn.lock", "dep@1.0.0") + section("build/output.css", ".a{}")

	d := Clean(Parse(raw), DefaultPolicy(".repomind/", "PROJECT_MEMORY.md"))
	if !d.Empty() {
		t.Errorf("cleaned diff has %d sections, want empty", len(d.Sections))
	}
}

func TestClean_StripsBinaryMarkers(t *testing.T) {
	raw := "diff --git a/data.txt b/data.txt\n" +
		"Binary files a/data.txt and b/data.txt differ\n" +
		"+kept line\n"

	d := Clean(Parse(raw), DefaultPolicy(".repomind/", "PROJECT_MEMORY.md"))
	if len(d.Sections) != 1 {
		t.Fatalf("sections = %d, want 1", len(d.Sections))
	}
	if strings.Contains(d.Sections[0].Body, "Binary files") {
		t.Error("binary marker line not stripped")
	}
}

func TestIsCosmeticOnly(t *testing.T) {
	cosmetic := Parse("diff --git a/a.go b/a.go\n--- a/a.go\n+++ b/a.go\n@@ -1 +1 @@\n-// old comment\n+// new comment\n+\n")
	if !IsCosmeticOnly(cosmetic) {
		t.Error("comment-only diff classified as non-cosmetic")
	}

	real := Parse(section("a.go", "return fmt.Errorf(\"boom\")"))
	if IsCosmeticOnly(real) {
		t.Error("code change classified as cosmetic")
	}

	empty := Parse("")
	if IsCosmeticOnly(empty) {
		t.Error("empty diff must not be classified cosmetic")
	}
}

func TestIsCosmeticOnly_Conservative(t *testing.T) {
	// A mixed diff with one real line among comments is never cosmetic.
	raw := "diff --git a/a.go b/a.go\n--- a/a.go\n+++ b/a.go\n@@ -1 +1 @@\n+// note\n+x := compute()\n"
	if IsCosmeticOnly(Parse(raw)) {
		t.Error("diff with a non-trivial line classified cosmetic")
	}
}

func TestIsCosmeticOnly_CommentLookalikeCode(t *testing.T) {
	// Pointer writes and decrements share a first character with comment
	// markers; they must stay non-cosmetic.
	raw := "diff --git a/a.c b/a.c\n--- a/a.c\n+++ b/a.c\n@@ -1 +1 @@\n+*count = 0;\n+--retries;\n"
	if IsCosmeticOnly(Parse(raw)) {
		t.Error("diff with real code lines classified cosmetic")
	}

	// Genuine block-comment continuations and SQL comments stay trivial.
	comments := "diff --git a/a.sql b/a.sql\n--- a/a.sql\n+++ b/a.sql\n@@ -1 +1 @@\n+-- adjust the join order\n+ * rewritten for clarity\n"
	if !IsCosmeticOnly(Parse(comments)) {
		t.Error("comment-only diff classified as non-cosmetic")
	}
}

func TestSplit_CoversAllSectionsExactlyOnce(t *testing.T) {
	var raw strings.Builder
	paths := []string{
		"src/api/a.go", "src/api/b.go", "src/db/c.go",
		"web/app.ts", "web/util.ts", "README.md",
	}
	for _, p := range paths {
		raw.WriteString(section(p, strings.Repeat("x", 400)))
	}
	d := Parse(raw.String())

	chunks := Split(d, 500)
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want at least 2 for a diff 3x over budget", len(chunks))
	}

	var got []string
	for _, c := range chunks {
		for _, s := range c.Sections {
			got = append(got, s.Path)
		}
	}
	if len(got) != len(paths) {
		t.Fatalf("covered %d sections, want %d", len(got), len(paths))
	}
	seen := map[string]int{}
	for _, p := range got {
		seen[p]++
	}
	for _, p := range paths {
		if seen[p] != 1 {
			t.Errorf("section %s appears %d times, want exactly once", p, seen[p])
		}
	}
}

func TestSplit_RespectsBudget(t *testing.T) {
	var raw strings.Builder
	for i := 0; i < 8; i++ {
		raw.WriteString(section(fmt.Sprintf("pkg%d/f.go", i), strings.Repeat("y", 300)))
	}
	budget := 400

	// The full chunk text, synthetic header included, stays under the
	// fill limit for any chunk that is not a single oversized section.
	for _, c := range Split(Parse(raw.String()), budget) {
		if len(c.Sections) > 1 && c.EstimatedTokens() > int(0.8*float64(budget)) {
			t.Errorf("multi-section chunk estimate %d exceeds 0.8x budget", c.EstimatedTokens())
		}
	}
}

func TestSplit_OversizedSectionGetsOwnChunk(t *testing.T) {
	raw := section("small/a.go", "tiny") +
		section("big/huge.go", strings.Repeat("z", 4000)) +
		section("small/b.go", "tiny")
	chunks := Split(Parse(raw), 1000)

	found := false
	for _, c := range chunks {
		for _, s := range c.Sections {
			if s.Path == "big/huge.go" {
				found = true
				if len(c.Sections) != 1 {
					t.Errorf("oversized section shares a chunk with %d others", len(c.Sections)-1)
				}
			}
		}
	}
	if !found {
		t.Fatal("oversized section missing from chunk output")
	}
}

func TestSplit_SmallDiffSingleChunk(t *testing.T) {
	d := Parse(section("a.go", "one line"))
	chunks := Split(d, 10000)
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Header, "### Change group 1") {
		t.Errorf("header = %q", chunks[0].Header)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("12345678"); got != 2 {
		t.Errorf("EstimateTokens = %d, want 2", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("EstimateTokens empty = %d, want 0", got)
	}
}
