package providers

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures prompt sizes with the model's real tokenizer so
// max_tokens clamping matches what the API will bill. When no encoding is
// available for the model (offline, unknown model) it falls back to the
// chars/4 heuristic, which overshoots rarely enough for a clamp.
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken

	model string
}

// NewTokenCounter creates a counter for the given model. Encoding load is
// deferred to first use; tiktoken may fetch encoding data on a cold cache.
func NewTokenCounter(model string) *TokenCounter {
	return &TokenCounter{model: model}
}

// Count returns the token count of s.
func (c *TokenCounter) Count(s string) int {
	c.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(c.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err != nil {
			slog.Warn("tiktoken encoding unavailable, using chars/4", "model", c.model, "error", err)
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return len(s) / 4
	}
	return len(c.enc.Encode(s, nil, nil))
}
