// Package memdoc owns the project memory document: a single markdown
// file parsed into an ordered list of (header, body) sections, so schema
// validation, compaction and section edits work on structure instead of
// repeated string scanning.
package memdoc

import (
	"strings"
)

// RequiredSections are the headers every valid document must carry, in
// canonical order. Other sections (Pinned Files, Legacy Context, ...) are
// optional and additive.
var RequiredSections = []string{
	"Project Soul",
	"Tech Stack",
	"Architecture",
	"Core Rules",
	"Recent Decisions",
	"Active Tech Debt",
}

// SoftCapWords is the document size cap; exceeding it triggers compaction.
const SoftCapWords = 1500

// keepRecentDecisions is how many newest entries compaction retains.
const keepRecentDecisions = 5

// Section is one "## Header" block and its body text.
type Section struct {
	Header string // header text without the "## " prefix
	Body   string // lines under the header, up to the next section
}

// Document is the parsed memory document.
type Document struct {
	Preamble string // anything before the first "## " header (title line etc.)
	Sections []Section
}

// ParseDocument splits markdown text into sections at "## " headers.
func ParseDocument(text string) Document {
	var doc Document
	var cur *Section
	var preamble strings.Builder

	for _, line := range strings.SplitAfter(text, "\n") {
		if strings.HasPrefix(line, "## ") {
			if cur != nil {
				doc.Sections = append(doc.Sections, *cur)
			}
			cur = &Section{Header: strings.TrimSpace(strings.TrimPrefix(strings.TrimRight(line, "\n"), "## "))}
			continue
		}
		if cur == nil {
			preamble.WriteString(line)
		} else {
			cur.Body += line
		}
	}
	if cur != nil {
		doc.Sections = append(doc.Sections, *cur)
	}
	doc.Preamble = preamble.String()
	return doc
}

// Render serializes the document back to markdown.
func (d Document) Render() string {
	var b strings.Builder
	b.WriteString(d.Preamble)
	for _, s := range d.Sections {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
		b.WriteString("## " + s.Header + "\n")
		b.WriteString(s.Body)
	}
	return b.String()
}

// find locates a section whose header starts with name, tolerating
// decorative suffixes like "Recent Decisions (last 30 days)".
func (d *Document) find(name string) *Section {
	for i := range d.Sections {
		if sectionMatches(d.Sections[i].Header, name) {
			return &d.Sections[i]
		}
	}
	return nil
}

func sectionMatches(header, name string) bool {
	h := strings.ToLower(strings.TrimSpace(header))
	n := strings.ToLower(strings.TrimSpace(name))
	return h == n || strings.HasPrefix(h, n+" ") || strings.HasPrefix(h, n+"(")
}

// Validate reports whether text is a persistable document: non-empty and
// carrying every required section header. An empty document is invalid.
func Validate(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	doc := ParseDocument(text)
	for _, required := range RequiredSections {
		if doc.find(required) == nil {
			return false
		}
	}
	return true
}

// WordCount counts whitespace-separated words, the unit of the soft cap.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Compact returns text unchanged while under the soft cap; above it, the
// "Recent Decisions" section is trimmed to its newest entries and older
// ones are dropped outright. Entries are bullet-delimited and ordered
// newest first, the same convention AppendToSection maintains by
// inserting directly beneath the header, so compaction keeps the leading
// entries. Required sections are never removed.
func Compact(text string) string {
	if WordCount(text) <= SoftCapWords {
		return text
	}

	doc := ParseDocument(text)
	sec := doc.find("Recent Decisions")
	if sec == nil {
		return text
	}

	intro, entries, trailing := splitEntries(sec.Body)
	if len(entries) <= keepRecentDecisions {
		return text
	}
	kept := entries[:keepRecentDecisions]
	sec.Body = intro + strings.Join(kept, "") + trailing
	return doc.Render()
}

// splitEntries splits a section body into bullet-delimited entries. Lines
// before the first bullet (intro text) and trailing blank lines are
// preserved around whatever entries the caller keeps.
func splitEntries(body string) (intro string, entries []string, trailing string) {
	lines := strings.SplitAfter(body, "\n")

	// Peel trailing blank lines so rendering stays stable.
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	trailing = strings.Join(lines[end:], "")
	lines = lines[:end]

	var cur string
	var introB strings.Builder
	for _, line := range lines {
		if isBulletStart(line) {
			if cur != "" {
				entries = append(entries, cur)
			}
			cur = line
			continue
		}
		if cur != "" {
			cur += line // continuation line of the current entry
		} else {
			introB.WriteString(line)
		}
	}
	if cur != "" {
		entries = append(entries, cur)
	}
	return introB.String(), entries, trailing
}

func isBulletStart(line string) bool {
	t := strings.TrimLeft(line, " \t")
	return strings.HasPrefix(t, "- ") || strings.HasPrefix(t, "* ") || strings.HasPrefix(t, "+ ")
}
