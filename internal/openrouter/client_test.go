package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// testConfig returns a Config pointed at url with negligible backoff so
// retry tests run fast.
func testConfig(url string) Config {
	return Config{
		BaseURL:         url,
		APIKey:          "test-key",
		EmbedModel:      "openai/text-embedding-3-small",
		ChatModel:       "google/gemini-2.0-flash-001",
		Temperature:     0.7,
		MaxTokens:       500,
		MaxAttempts:     3,
		EmbedBackoff:    time.Millisecond,
		CompleteBackoff: time.Millisecond,
	}
}

func TestEmbed_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %q, want /embeddings", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float64{0.1, 0.2, 0.3}}},
		})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), srv.Client(), nil)
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("Embed() = %v, want [0.1 0.2 0.3]", vec)
	}
}

func TestEmbed_CollapsesNewlines(t *testing.T) {
	var gotInput string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotInput = req.Input
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float64{1}}},
		})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), srv.Client(), nil)
	if _, err := c.Embed(context.Background(), "line one\nline two\nline three"); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if strings.Contains(gotInput, "\n") {
		t.Errorf("input still contains newlines: %q", gotInput)
	}
	if gotInput != "line one line two line three" {
		t.Errorf("input = %q", gotInput)
	}
}

func TestEmbed_RecoversAfterTwoFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "upstream overloaded", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float64{0.5}}},
		})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), srv.Client(), nil)
	vec, err := c.Embed(context.Background(), "flaky")
	if err != nil {
		t.Fatalf("Embed() error = %v, want success on third attempt", err)
	}
	if len(vec) != 1 {
		t.Errorf("Embed() = %v", vec)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("provider called %d times, want 3", got)
	}
}

func TestEmbed_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), srv.Client(), nil)
	_, err := c.Embed(context.Background(), "doomed")
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("Embed() error = %v, want ErrEmbeddingUnavailable", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("provider called %d times, want exactly 3", got)
	}
}

func TestEmbed_MalformedBodyIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 OK but no embedding field.
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), srv.Client(), nil)
	if _, err := c.Embed(context.Background(), "x"); !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Errorf("Embed() error = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestEmbed_MissingAPIKey(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIKey = ""
	c := New(cfg, srv.Client(), nil)

	if _, err := c.Embed(context.Background(), "x"); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Embed() error = %v, want ErrMissingAPIKey", err)
	}
	if calls.Load() != 0 {
		t.Error("no HTTP call should be made without an API key")
	}
}

func TestComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		var req completionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens != 500 {
			t.Errorf("max_tokens = %d, want 500", req.MaxTokens)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Bonjour !"}},
			},
		})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), srv.Client(), nil)
	reply, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "rules"},
		{Role: "user", Content: "salut"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "Bonjour !" {
		t.Errorf("Complete() = %q", reply)
	}
}

func TestComplete_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), srv.Client(), nil)
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if !errors.Is(err, ErrCompletionUnavailable) {
		t.Fatalf("Complete() error = %v, want ErrCompletionUnavailable", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("provider called %d times, want exactly 3", got)
	}
}

func TestComplete_EmptyChoicesIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), srv.Client(), nil)
	if _, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}); !errors.Is(err, ErrCompletionUnavailable) {
		t.Errorf("Complete() error = %v, want ErrCompletionUnavailable", err)
	}
}

func TestRetryLinear_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := retryLinear(ctx, 3, 50*time.Millisecond, func() error {
		calls++
		cancel()
		return errors.New("always failing")
	})
	if err == nil {
		t.Fatal("retryLinear() = nil, want error")
	}
	if calls != 1 {
		t.Errorf("op called %d times after cancel, want 1", calls)
	}
}
