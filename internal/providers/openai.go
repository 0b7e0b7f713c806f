package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAPIBase       = "https://api.openai.com/v1"
	defaultModel         = "gpt-4o-mini"
	defaultContextWindow = 128_000
	requestTimeout       = 120 * time.Second

	// defaultCallsPerMinute bounds generation calls so a pathological
	// signal storm cannot burn through quota.
	defaultCallsPerMinute = 20
)

// OpenAIGenerator talks to any OpenAI-compatible chat-completions
// endpoint. Safe for concurrent use.
type OpenAIGenerator struct {
	apiKey        string
	apiBase       string
	model         string
	contextWindow int
	httpc         *http.Client
	limiter       *rate.Limiter
	retry         RetryConfig
	counter       *TokenCounter
}

// OpenAIOption customizes the generator.
type OpenAIOption func(*OpenAIGenerator)

// WithModel overrides the default model.
func WithModel(model string) OpenAIOption {
	return func(g *OpenAIGenerator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithContextWindow sets the model context window used for MaxTokens clamping.
func WithContextWindow(tokens int) OpenAIOption {
	return func(g *OpenAIGenerator) {
		if tokens > 0 {
			g.contextWindow = tokens
		}
	}
}

// WithRetryConfig overrides backoff behavior.
func WithRetryConfig(cfg RetryConfig) OpenAIOption {
	return func(g *OpenAIGenerator) { g.retry = cfg }
}

// WithCallsPerMinute overrides the call rate limit. Zero disables limiting.
func WithCallsPerMinute(n int) OpenAIOption {
	return func(g *OpenAIGenerator) {
		if n <= 0 {
			g.limiter = nil
			return
		}
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
}

// NewOpenAIGenerator creates a generator against apiBase (default
// api.openai.com) with the given key.
func NewOpenAIGenerator(apiKey, apiBase string, opts ...OpenAIOption) *OpenAIGenerator {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	g := &OpenAIGenerator{
		apiKey:        apiKey,
		apiBase:       strings.TrimRight(apiBase, "/"),
		model:         defaultModel,
		contextWindow: defaultContextWindow,
		httpc:         &http.Client{Timeout: requestTimeout},
		limiter:       rate.NewLimiter(rate.Every(time.Minute/defaultCallsPerMinute), defaultCallsPerMinute),
		retry:         DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.counter = NewTokenCounter(g.model)
	return g
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model           string        `json:"model"`
	Messages        []chatMessage `json:"messages"`
	MaxTokens       int           `json:"max_tokens,omitempty"`
	Temperature     float64       `json:"temperature"`
	ReasoningEffort string        `json:"reasoning_effort,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Generate implements Generator with bounded retry, rate limiting and
// MaxTokens clamping against the model context window.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if g.apiKey == "" {
		return "", &GenerationError{Reason: ReasonAuth, Msg: "no API key configured"}
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", &GenerationError{Reason: ReasonTransient, Msg: "rate limiter", Err: err}
		}
	}

	maxTokens := g.clampMaxTokens(req)

	start := time.Now()
	out, err := withRetry(ctx, g.retry, func() (string, error) {
		return g.call(ctx, req, maxTokens)
	})
	if err != nil {
		return "", err
	}
	slog.Debug("generation call complete",
		"model", g.model,
		"prompt_chars", len(req.Prompt),
		"output_chars", len(out),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return out, nil
}

// clampMaxTokens keeps the completion budget inside the context window
// after accounting for measured prompt tokens.
func (g *OpenAIGenerator) clampMaxTokens(req Request) int {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	promptTokens := g.counter.Count(req.SystemPrompt) + g.counter.Count(req.Prompt)
	if room := g.contextWindow - promptTokens - 256; room < maxTokens {
		if room < 256 {
			room = 256
		}
		slog.Debug("clamping max_tokens", "requested", maxTokens, "clamped", room, "prompt_tokens", promptTokens)
		maxTokens = room
	}
	return maxTokens
}

func (g *OpenAIGenerator) call(ctx context.Context, req Request, maxTokens int) (string, error) {
	body := chatRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.ThinkingLevel != "" {
		body.ReasoningEffort = string(req.ThinkingLevel)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &GenerationError{Reason: ReasonBadResponse, Msg: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.apiBase+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &GenerationError{Reason: ReasonBadResponse, Msg: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpc.Do(httpReq)
	if err != nil {
		return "", &GenerationError{Reason: ReasonTransient, Msg: "http request", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", &GenerationError{Reason: ReasonTransient, Msg: "read response", Err: err}
	}

	var parsed chatResponse
	_ = json.Unmarshal(data, &parsed)

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(resp.StatusCode, parsed, data)
	}

	if len(parsed.Choices) == 0 {
		return "", &GenerationError{Reason: ReasonBadResponse, Msg: "no choices in response"}
	}
	choice := parsed.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", &GenerationError{Reason: ReasonContentSafety, Msg: "completion stopped by content filter"}
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", &GenerationError{Reason: ReasonBadResponse, Msg: "empty completion"}
	}
	return text, nil
}

// classifyHTTPError maps an HTTP failure onto the error taxonomy.
func classifyHTTPError(status int, parsed chatResponse, raw []byte) error {
	msg := strings.TrimSpace(string(raw))
	if parsed.Error != nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}
	if len(msg) > 300 {
		msg = msg[:300]
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &GenerationError{Reason: ReasonAuth, Msg: fmt.Sprintf("HTTP %d: %s", status, msg)}
	case parsed.Error != nil && (parsed.Error.Code == "content_filter" || parsed.Error.Type == "content_policy_violation"):
		return &GenerationError{Reason: ReasonContentSafety, Msg: msg}
	case status == http.StatusTooManyRequests || status >= 500:
		return &GenerationError{Reason: ReasonTransient, Msg: fmt.Sprintf("HTTP %d: %s", status, msg)}
	default:
		return &GenerationError{Reason: ReasonBadResponse, Msg: fmt.Sprintf("HTTP %d: %s", status, msg)}
	}
}
