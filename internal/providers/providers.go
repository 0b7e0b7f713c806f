// Package providers defines the generator capability the pipeline
// consumes and an OpenAI-compatible implementation of it. The pipeline
// never depends on which model answers; everything upstream takes the
// Generator interface so tests can substitute a deterministic fake.
package providers

import (
	"context"
	"errors"
	"fmt"
)

// ThinkingLevel selects how much deliberate reasoning to request.
type ThinkingLevel string

const (
	ThinkingLow    ThinkingLevel = "low"
	ThinkingMedium ThinkingLevel = "medium"
	ThinkingHigh   ThinkingLevel = "high"
)

// Request is one generation call.
type Request struct {
	Prompt        string
	SystemPrompt  string
	ThinkingLevel ThinkingLevel
	MaxTokens     int
	Temperature   float64
}

// Generator produces text from a prompt. Implementations own retry,
// rate limiting and token accounting; callers treat failures per the
// GenerationError taxonomy.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrorReason classifies a generation failure for propagation decisions.
type ErrorReason string

const (
	// ReasonTransient covers network hiccups and 5xx/429 responses.
	// Retried with backoff before surfacing.
	ReasonTransient ErrorReason = "transient"
	// ReasonAuth covers bad or missing credentials. Never retried.
	ReasonAuth ErrorReason = "auth"
	// ReasonContentSafety covers provider-side safety rejections. Never
	// retried.
	ReasonContentSafety ErrorReason = "content_safety"
	// ReasonBadResponse covers empty or malformed completions.
	ReasonBadResponse ErrorReason = "bad_response"
)

// GenerationError is the failure type every Generator returns.
type GenerationError struct {
	Reason ErrorReason
	Msg    string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed (%s): %s: %v", e.Reason, e.Msg, e.Err)
	}
	return fmt.Sprintf("generation failed (%s): %s", e.Reason, e.Msg)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Retryable reports whether the error may succeed on a later attempt.
func (e *GenerationError) Retryable() bool {
	return e.Reason == ReasonTransient
}

// ReasonOf extracts the taxonomy reason from any error chain. Unknown
// errors are treated as transient so the cycle boundary retries them.
func ReasonOf(err error) ErrorReason {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Reason
	}
	return ReasonTransient
}
