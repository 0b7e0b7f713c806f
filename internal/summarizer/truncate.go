package summarizer

import "fmt"

const (
	// DefaultReadmeMaxChars caps the README excerpt passed to cold start.
	DefaultReadmeMaxChars = 12_000

	headRatio = 0.7 // keep 70% from beginning
	tailRatio = 0.2 // keep 20% from end
)

// TrimForPrompt truncates content with a head/tail split if it exceeds
// maxChars. The beginning of a README carries most of the signal, so the
// head keeps the larger share.
func TrimForPrompt(content string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultReadmeMaxChars
	}
	if len(content) <= maxChars {
		return content
	}

	headChars := int(float64(maxChars) * headRatio)
	tailChars := int(float64(maxChars) * tailRatio)

	head := content[:headChars]
	tail := content[len(content)-tailChars:]

	marker := fmt.Sprintf(
		"\n\n[...truncated: kept %d+%d chars of %d...]\n\n",
		headChars, tailChars, len(content),
	)

	return head + marker + tail
}
