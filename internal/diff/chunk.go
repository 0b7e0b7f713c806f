package diff

import (
	"fmt"
	"strings"
)

const (
	// chunkFillRatio bounds a chunk's estimate relative to the token budget.
	chunkFillRatio = 0.8
	// soloSectionRatio is the point at which a single file section stops
	// being groupable and becomes its own chunk. Hunks within one file are
	// never split.
	soloSectionRatio = 0.7
)

// Chunk is a contiguous subset of a diff's file sections with a synthetic
// grouping header for the generator.
type Chunk struct {
	Header   string
	Sections []FileSection
}

// Text returns the chunk body: header line plus the sections in order.
func (c Chunk) Text() string {
	var b strings.Builder
	b.WriteString(c.Header)
	b.WriteString("\n")
	for _, s := range c.Sections {
		b.WriteString(s.Body)
	}
	return b.String()
}

// EstimatedTokens sizes the chunk with the same heuristic used to build it.
func (c Chunk) EstimatedTokens() int {
	return EstimateTokens(c.Text())
}

// Split partitions d into ordered chunks whose estimates stay under
// chunkFillRatio of tokenBudget. Sections are ordered by a coarse
// directory key so related files land in the same chunk, then accumulated
// one by one. A single section over soloSectionRatio of the budget flushes
// the accumulator and becomes its own oversized chunk; hunks inside one
// file are never split.
//
// Concatenating all chunks' sections reproduces d's sections exactly once.
func Split(d Diff, tokenBudget int) []Chunk {
	if d.Empty() {
		return nil
	}

	fillLimit := int(float64(tokenBudget) * chunkFillRatio)
	soloLimit := int(float64(tokenBudget) * soloSectionRatio)

	var chunks []Chunk
	var cur []FileSection
	var curKeys []string
	curEst := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Header:   groupHeader(curKeys, len(chunks)+1),
			Sections: cur,
		})
		cur, curKeys, curEst = nil, nil, 0
	}
	addKey := func(key string) {
		for _, k := range curKeys {
			if k == key {
				return
			}
		}
		curKeys = append(curKeys, key)
	}
	hasKey := func(key string) bool {
		for _, k := range curKeys {
			if k == key {
				return true
			}
		}
		return false
	}
	// The fill check must count the synthetic header too, or a packed
	// chunk's final estimate can slip past the limit.
	headerEst := func(key string) int {
		keys := curKeys
		if !hasKey(key) {
			keys = append(append([]string(nil), curKeys...), key)
		}
		return EstimateTokens(groupHeader(keys, len(chunks)+1) + "\n")
	}

	for _, group := range groupByDir(d.Sections) {
		for _, s := range group.sections {
			est := EstimateTokens(s.Body)

			// One file so large it can't share a chunk with anything.
			if est > soloLimit {
				flush()
				chunks = append(chunks, Chunk{
					Header:   groupHeader([]string{group.key}, len(chunks)+1),
					Sections: []FileSection{s},
				})
				continue
			}

			if curEst > 0 && curEst+est+headerEst(group.key) > fillLimit {
				flush()
			}
			cur = append(cur, s)
			addKey(group.key)
			curEst += est
		}
	}
	flush()
	return chunks
}

type dirGroup struct {
	key      string
	sections []FileSection
}

// groupByDir buckets sections by their first one or two path segments,
// preserving first-seen order so chunk output stays deterministic.
func groupByDir(sections []FileSection) []dirGroup {
	var groups []dirGroup
	index := map[string]int{}
	for _, s := range sections {
		key := dirKey(s.Path)
		if i, ok := index[key]; ok {
			groups[i].sections = append(groups[i].sections, s)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, dirGroup{key: key, sections: []FileSection{s}})
	}
	return groups
}

// dirKey reduces a path to a coarse grouping key: the first segment, or
// the first two when the first is a conventional container like src or
// internal.
func dirKey(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "./"), "/")
	if len(parts) <= 1 {
		return "."
	}
	switch parts[0] {
	case "src", "internal", "pkg", "lib", "cmd", "app", "packages":
		if len(parts) > 2 {
			return parts[0] + "/" + parts[1]
		}
	}
	return parts[0]
}

func groupHeader(keys []string, n int) string {
	return fmt.Sprintf("### Change group %d: %s", n, strings.Join(keys, ", "))
}
