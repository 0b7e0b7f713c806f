package summarizer

import (
	"fmt"
	"strings"
)

const systemPrompt = `You maintain a project memory document for a software repository.
The document is markdown with exactly these level-2 sections, in order:

## Project Soul
## Tech Stack
## Architecture
## Core Rules
## Recent Decisions
## Active Tech Debt

Rules:
- Output ONLY the complete updated document. No preamble, no code fences.
- Describe intent and decisions, never mechanics. Do not enumerate changed
  files or restate diffs line by line.
- Ignore cosmetic changes (formatting, whitespace, comment rewording).
- When new information supersedes an earlier decision, record the new
  state and note briefly what it replaced.
- Keep Recent Decisions bullets ordered newest first.
- Keep the whole document under roughly 1500 words. Prefer trimming old
  Recent Decisions entries over losing current facts.`

func updatePrompt(current, diffText string, partial bool) string {
	var b strings.Builder
	if current == "" {
		b.WriteString("There is no memory document yet. Create one from the change below.\n\n")
	} else {
		b.WriteString("Current memory document:\n\n")
		b.WriteString(current)
		b.WriteString("\n\n")
	}
	if partial {
		b.WriteString("The change below is ONE PART of a larger change set. Fold what it teaches into the document; other parts are handled separately.\n\n")
	}
	b.WriteString("Change to incorporate:\n\n")
	b.WriteString(diffText)
	b.WriteString("\n\nReturn the full updated memory document.")
	return b.String()
}

func mergePrompt(current string, partials []string) string {
	var b strings.Builder
	b.WriteString("Several partial updates to the same memory document were produced from parts of one large change set. Merge them into ONE coherent document.\n")
	b.WriteString("Deduplicate, keep the most specific statement when partials disagree, preserve the required section order.\n\n")
	if current != "" {
		b.WriteString("Document before the change set:\n\n")
		b.WriteString(current)
		b.WriteString("\n\n")
	}
	for i, p := range partials {
		fmt.Fprintf(&b, "Partial update %d of %d:\n\n%s\n\n", i+1, len(partials), p)
	}
	b.WriteString("Return the single merged memory document.")
	return b.String()
}

func coldStartPrompt(fileTree []string, readme string) string {
	var b strings.Builder
	b.WriteString("No commit history is available. Infer an initial memory document from the repository layout")
	if readme != "" {
		b.WriteString(" and README")
	}
	b.WriteString(". Mark uncertain inferences as such rather than inventing specifics.\n\nFile tree:\n\n")
	for _, f := range fileTree {
		b.WriteString(f)
		b.WriteByte('\n')
	}
	if readme != "" {
		b.WriteString("\nREADME:\n\n")
		b.WriteString(readme)
		b.WriteByte('\n')
	}
	b.WriteString("\nReturn the complete initial memory document.")
	return b.String()
}

func conflictPrompt(conflicted string) string {
	var b strings.Builder
	b.WriteString("This memory document contains version-control conflict markers (<<<<<<<, =======, >>>>>>>). Merge both sides into one coherent document.\n")
	b.WriteString("Keep every fact that appears on either side unless the sides directly contradict; then keep the more recent or more specific statement.\n")
	b.WriteString("The output must contain no conflict markers.\n\n")
	b.WriteString(conflicted)
	b.WriteString("\n\nReturn the resolved document.")
	return b.String()
}
