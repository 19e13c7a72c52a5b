// Package openrouter implements the outbound client for the OpenRouter API,
// covering the two endpoints the assistant depends on: text embeddings and
// chat completions.
//
// Both calls share one bounded-retry policy with linear backoff; transient
// provider failures are absorbed here and only surface to callers after the
// final attempt, wrapped in a sentinel error.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrEmbeddingUnavailable indicates the embeddings endpoint failed on
	// every attempt.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrCompletionUnavailable indicates the chat completions endpoint
	// failed on every attempt.
	ErrCompletionUnavailable = errors.New("completion provider unavailable")

	// ErrMissingAPIKey indicates no provider credential is configured.
	// This is a configuration error, never retried.
	ErrMissingAPIKey = errors.New("missing OpenRouter API key")
)

// Message is one turn of a chat conversation in the provider wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config carries the provider settings for a Client.
type Config struct {
	BaseURL     string
	APIKey      string
	EmbedModel  string
	ChatModel   string
	Temperature float64
	MaxTokens   int

	// Retry policy: MaxAttempts total calls per operation, sleeping
	// attempt*EmbedBackoff (resp. attempt*CompleteBackoff) between tries.
	MaxAttempts     int
	EmbedBackoff    time.Duration
	CompleteBackoff time.Duration

	// Attribution headers forwarded to OpenRouter.
	Referer string
	Title   string
}

// Client calls the OpenRouter embeddings and chat completions endpoints.
// It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client. httpClient may be nil, in which case a client with a
// 30-second timeout is used so a stalled provider cannot hold a request
// handler open indefinitely.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	return &Client{cfg: cfg, httpClient: httpClient, logger: logger}
}

// embedRequest is the wire format of POST /embeddings.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for text. Newlines are collapsed to
// spaces before sending, matching how the knowledge base was embedded.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	input := strings.ReplaceAll(text, "\n", " ")

	var vector []float64
	err := retryLinear(ctx, c.cfg.MaxAttempts, c.cfg.EmbedBackoff, func() error {
		v, err := c.embedOnce(ctx, input)
		if err != nil {
			c.logger.Warn("embedding attempt failed", "error", err)
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}

	return vector, nil
}

func (c *Client) embedOnce(ctx context.Context, input string) ([]float64, error) {
	var out embedResponse
	err := c.post(ctx, "/embeddings", embedRequest{
		Model: c.cfg.EmbedModel,
		Input: input,
	}, &out)
	if err != nil {
		return nil, err
	}

	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, errors.New("invalid embeddings response: no embedding in body")
	}
	return out.Data[0].Embedding, nil
}

// completionRequest is the wire format of POST /chat/completions.
type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the full message list to the chat completions endpoint and
// returns the assistant reply text.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	var reply string
	err := retryLinear(ctx, c.cfg.MaxAttempts, c.cfg.CompleteBackoff, func() error {
		r, err := c.completeOnce(ctx, messages)
		if err != nil {
			c.logger.Warn("completion attempt failed", "error", err)
			return err
		}
		reply = r
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletionUnavailable, err)
	}

	return reply, nil
}

func (c *Client) completeOnce(ctx context.Context, messages []Message) (string, error) {
	var out completionResponse
	err := c.post(ctx, "/chat/completions", completionRequest{
		Model:       c.cfg.ChatModel,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}, &out)
	if err != nil {
		return "", err
	}

	if len(out.Choices) == 0 {
		return "", errors.New("invalid completions response: no choices in body")
	}
	return out.Choices[0].Message.Content, nil
}

// maxErrorBodyBytes caps how much of a provider error body is read for
// logging. Provider error text is never forwarded to end users.
const maxErrorBodyBytes = 2048

// post sends one JSON request and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(c.cfg.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("%s returned %s: %s", path, resp.Status, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
