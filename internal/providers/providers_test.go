package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func newTestGenerator(url string) *OpenAIGenerator {
	return NewOpenAIGenerator("test-key", url,
		WithRetryConfig(fastRetry()),
		WithCallsPerMinute(0))
}

func completion(content string) string {
	return `{"choices":[{"message":{"role":"assistant","content":"` + content + `"},"finish_reason":"stop"}]}`
}

func TestGenerate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		w.Write([]byte(completion("updated document")))
	}))
	defer srv.Close()

	g := newTestGenerator(srv.URL)
	out, err := g.Generate(context.Background(), Request{Prompt: "summarize"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "updated document" {
		t.Errorf("out = %q", out)
	}
}

func TestGenerate_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(completion("ok")))
	}))
	defer srv.Close()

	g := newTestGenerator(srv.URL)
	out, err := g.Generate(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate after retries: %v", err)
	}
	if out != "ok" {
		t.Errorf("out = %q", out)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestGenerate_AuthNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	g := newTestGenerator(srv.URL)
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})

	var ge *GenerationError
	if !errors.As(err, &ge) || ge.Reason != ReasonAuth {
		t.Fatalf("err = %v, want auth GenerationError", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1 (auth must not retry)", n)
	}
}

func TestGenerate_ContentFilterNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":""},"finish_reason":"content_filter"}]}`))
	}))
	defer srv.Close()

	g := newTestGenerator(srv.URL)
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})

	var ge *GenerationError
	if !errors.As(err, &ge) || ge.Reason != ReasonContentSafety {
		t.Fatalf("err = %v, want content-safety GenerationError", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1 (content filter must not retry)", n)
	}
}

func TestGenerate_TransientExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := newTestGenerator(srv.URL)
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
	if ReasonOf(err) != ReasonTransient {
		t.Errorf("reason = %s, want transient", ReasonOf(err))
	}
}

func TestGenerate_NoAPIKey(t *testing.T) {
	g := NewOpenAIGenerator("", "http://unused", WithCallsPerMinute(0))
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})

	var ge *GenerationError
	if !errors.As(err, &ge) || ge.Reason != ReasonAuth {
		t.Fatalf("err = %v, want auth error for missing key", err)
	}
}

func TestGenerate_EmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion("")))
	}))
	defer srv.Close()

	g := newTestGenerator(srv.URL)
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})

	var ge *GenerationError
	if !errors.As(err, &ge) || ge.Reason != ReasonBadResponse {
		t.Fatalf("err = %v, want bad-response error", err)
	}
}

func TestBackoffWithJitter_Bounds(t *testing.T) {
	for attempt := 0; attempt < 6; attempt++ {
		d := backoffWithJitter(time.Second, 10*time.Second, attempt)
		if d <= 0 {
			t.Errorf("attempt %d: delay %v not positive", attempt, d)
		}
		if d > 13*time.Second {
			t.Errorf("attempt %d: delay %v exceeds ceiling with jitter", attempt, d)
		}
	}
}
