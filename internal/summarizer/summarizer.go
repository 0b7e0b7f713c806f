// Package summarizer turns diffs into updated memory documents through
// the generator capability. One call when everything fits the token
// budget; a map step (one call per chunk, concurrent but merged in chunk
// order) plus a reduce call otherwise.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/repomindhq/repomind/internal/diff"
	"github.com/repomindhq/repomind/internal/gitx"
	"github.com/repomindhq/repomind/internal/providers"
)

const (
	// singleCallRatio: diff + current document must fit this share of the
	// budget for a single-call update.
	singleCallRatio = 0.7

	// maxConcurrentChunkCalls bounds the map phase. Outputs are still
	// merged deterministically in chunk order before the reduce call.
	maxConcurrentChunkCalls = 2

	defaultTokenBudget = 24_000
)

// Summarizer drives generation calls against a budget.
type Summarizer struct {
	gen         providers.Generator
	tokenBudget int
}

// New creates a summarizer. tokenBudget <= 0 selects the default.
func New(gen providers.Generator, tokenBudget int) *Summarizer {
	if tokenBudget <= 0 {
		tokenBudget = defaultTokenBudget
	}
	return &Summarizer{gen: gen, tokenBudget: tokenBudget}
}

// Update produces the next memory document from a cleaned diff and the
// current document. Fails with a GenerationError from the provider.
func (s *Summarizer) Update(ctx context.Context, d diff.Diff, current string, level providers.ThinkingLevel) (string, error) {
	diffText := d.String()
	combined := diff.EstimateTokens(diffText) + diff.EstimateTokens(current)
	limit := int(float64(s.tokenBudget) * singleCallRatio)

	if combined < limit {
		return s.generate(ctx, updatePrompt(current, diffText, false), level)
	}

	chunks := diff.Split(d, s.tokenBudget)
	slog.Info("diff over budget, chunking",
		"estimated_tokens", combined, "budget", s.tokenBudget, "chunks", len(chunks))

	// Map: one call per chunk, each seeded with the running document.
	outputs := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChunkCalls)
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			out, err := s.generate(gctx, updatePrompt(current, c.Text(), true), level)
			if err != nil {
				return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	if len(outputs) == 1 {
		return outputs[0], nil
	}

	// Reduce: the generator has a fixed context window and no streaming
	// merge, so per-chunk documents must be folded into one; skipping
	// this would hand validation duplicate or conflicting sections.
	return s.generate(ctx, mergePrompt(current, outputs), level)
}

// InferFromStructure is the cold-start path: produce a complete document
// from the project layout alone, before any history exists.
func (s *Summarizer) InferFromStructure(ctx context.Context, fileTree []string, readme string) (string, error) {
	readme = TrimForPrompt(readme, DefaultReadmeMaxChars)
	return s.generate(ctx, coldStartPrompt(fileTree, readme), providers.ThinkingMedium)
}

// MergeConflictMarkers resolves VCS conflict markers in a document. A
// residual marker after the single resolution pass is a hard failure;
// silent data loss would be worse than stopping.
func (s *Summarizer) MergeConflictMarkers(ctx context.Context, conflicted string) (string, error) {
	out, err := s.generate(ctx, conflictPrompt(conflicted), providers.ThinkingMedium)
	if err != nil {
		return "", err
	}
	if gitx.HasConflictMarkers(out) {
		return "", fmt.Errorf("conflict resolution left markers in the document")
	}
	return out, nil
}

func (s *Summarizer) generate(ctx context.Context, prompt string, level providers.ThinkingLevel) (string, error) {
	out, err := s.gen.Generate(ctx, providers.Request{
		Prompt:        prompt,
		SystemPrompt:  systemPrompt,
		ThinkingLevel: level,
		MaxTokens:     8192,
		Temperature:   0.3,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stripCodeFence(out)) + "\n", nil
}

// stripCodeFence unwraps a completion the model wrapped in ```markdown
// fences despite instructions.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	lines := strings.Split(t, "\n")
	if len(lines) < 2 || !strings.HasPrefix(lines[len(lines)-1], "```") {
		return s
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}
