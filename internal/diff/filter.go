package diff

import (
	"path/filepath"
	"strings"
)

// Policy decides which file sections are noise. The zero value is not
// useful; build one with DefaultPolicy.
type Policy struct {
	// DirPrefixes dropped wholesale (build output, vendored deps, the
	// tool's own state directory).
	DirPrefixes []string
	// Basenames dropped exactly (lock manifests, the memory document;
	// the pipeline must never treat its own writes as input).
	Basenames []string
	// Extensions of binary assets.
	Extensions []string
}

// DefaultPolicy returns the ignore policy for a repository, parameterized
// on the tool's state directory and the memory document path so the
// anti-feedback-loop rule survives configuration changes.
func DefaultPolicy(stateDir, memoryDoc string) Policy {
	return Policy{
		DirPrefixes: []string{
			stateDir,
			"node_modules/", "vendor/", "dist/", "build/", "out/",
			"target/", ".next/", "__pycache__/", ".venv/", "coverage/",
		},
		Basenames: []string{
			filepath.Base(memoryDoc),
			"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "bun.lockb",
			"go.sum", "Cargo.lock", "poetry.lock", "Gemfile.lock",
			"composer.lock", "uv.lock",
		},
		Extensions: []string{
			".png", ".jpg", ".jpeg", ".gif", ".webp", ".ico", ".svg",
			".woff", ".woff2", ".ttf", ".eot",
			".zip", ".gz", ".tar", ".jar", ".wasm",
			".pdf", ".mp3", ".mp4", ".mov",
			".exe", ".dll", ".so", ".dylib", ".bin",
		},
	}
}

func (p Policy) ignores(path string) bool {
	if path == "" {
		return false
	}
	norm := filepath.ToSlash(path)
	for _, prefix := range p.DirPrefixes {
		if prefix != "" && strings.HasPrefix(norm, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	base := filepath.Base(norm)
	for _, b := range p.Basenames {
		if base == b {
			return true
		}
	}
	ext := strings.ToLower(filepath.Ext(norm))
	for _, e := range p.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Clean drops whole file sections matching the ignore policy and strips
// residual binary-diff marker lines from the sections it keeps.
func Clean(d Diff, p Policy) Diff {
	var out Diff
	for _, s := range d.Sections {
		if p.ignores(s.Path) || p.ignores(s.OldPath) {
			continue
		}
		s.Body = stripBinaryMarkers(s.Body)
		out.Sections = append(out.Sections, s)
	}
	return out
}

func stripBinaryMarkers(body string) string {
	lines := strings.SplitAfter(body, "\n")
	var b strings.Builder
	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\n")
		if strings.HasPrefix(trimmed, "Binary files ") ||
			strings.HasPrefix(trimmed, "GIT binary patch") {
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}

// IsCosmeticOnly reports whether every added or removed line in the diff
// is whitespace or a short comment. Deliberately conservative: any line it
// cannot positively classify as trivial makes the whole diff non-cosmetic.
func IsCosmeticOnly(d Diff) bool {
	sawChange := false
	for _, s := range d.Sections {
		for _, line := range strings.Split(s.Body, "\n") {
			if len(line) == 0 {
				continue
			}
			switch line[0] {
			case '+', '-':
			default:
				continue
			}
			// Skip the section's own "+++ b/..." and "--- a/..." header
			// lines; the trailing space keeps "+++i;" style code out.
			if strings.HasPrefix(line, "+++ ") || strings.HasPrefix(line, "--- ") {
				continue
			}
			sawChange = true
			if !isTrivialLine(line[1:]) {
				return false
			}
		}
	}
	return sawChange
}

// isTrivialLine classifies one changed line as whitespace or a short
// comment. Unknown comment syntaxes are treated as non-trivial.
func isTrivialLine(content string) bool {
	t := strings.TrimSpace(content)
	if t == "" {
		return true
	}
	if len(t) > 80 {
		return false
	}
	for _, prefix := range []string{"//", "#", "/*"} {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	// "*" and "--" open comments only with a following space; bare they
	// are code ("*count = 0;", "--retries;"). A statement terminator
	// disqualifies the line either way.
	for _, prefix := range []string{"* ", "-- "} {
		if strings.HasPrefix(t, prefix) && !strings.HasSuffix(t, ";") {
			return true
		}
	}
	return false
}
