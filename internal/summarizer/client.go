// Package summarizer turns a block of text into a bullet-point summary by
// calling a locally hosted language model.
package summarizer

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go-summarizer/internal/config"
	"go-summarizer/internal/logging"
)

// Client sends one prompt per call to the configured inference endpoint.
// It keeps no state between calls and is safe for concurrent use.
type Client struct {
	endpoint string
	model    string
	api      string
	apiKey   string
	timeout  time.Duration

	// transport overrides the per-call transport; tests use it to inject
	// failures.
	transport http.RoundTripper
	log       *slog.Logger
}

type Option func(*Client)

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithTransport makes every call go through rt instead of a fresh transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// NewClient creates a client for the upstream described by cfg.
func NewClient(cfg *config.UpstreamConfig, opts ...Option) *Client {
	c := &Client{
		endpoint: cfg.URL,
		model:    cfg.Model,
		api:      cfg.API,
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout(),
		log:      logging.Discard(),
	}
	if c.api == "" {
		c.api = config.APIGenerate
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "summarizer")
	return c
}

func (c *Client) Model() string {
	return c.model
}

// Summarize asks the model for a summary of text in bullet points. Blank
// text short-circuits without any network traffic. Every other call makes
// exactly one request and is never retried.
func (c *Client) Summarize(ctx context.Context, text string, bullets int) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Outcome: OutcomeEmptyInput}
	}

	start := time.Now()
	prompt := BuildPrompt(bullets, text)

	var res Result
	switch c.api {
	case config.APIOpenAI:
		res = c.callChat(ctx, prompt)
	default:
		res = c.callGenerate(ctx, prompt)
	}

	attrs := []any{
		"model", c.model,
		"bullets", bullets,
		"input_chars", len(text),
		"outcome", res.Outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	switch res.Outcome {
	case OutcomeSummary:
		c.log.InfoContext(ctx, "summary generated", attrs...)
	case OutcomeUnreachable:
		c.log.WarnContext(ctx, "upstream unreachable", append(attrs, "error", transportDetail(res.Err))...)
	case OutcomeUpstreamStatus:
		c.log.WarnContext(ctx, "upstream returned an error status", append(attrs, "status", res.StatusCode)...)
	default:
		c.log.WarnContext(ctx, "upstream response unusable", attrs...)
	}
	return res
}

// SummarizeText is the display-string form of Summarize for UI callers.
func (c *Client) SummarizeText(ctx context.Context, text string, bullets int) string {
	return c.Summarize(ctx, text, bullets).Display()
}

// httpClient returns the client for a single call and a func that releases
// its connections. It must be called on every exit path.
func (c *Client) httpClient() (*http.Client, func()) {
	if c.transport != nil {
		return &http.Client{Timeout: c.timeout, Transport: c.transport}, func() {}
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	return &http.Client{Timeout: c.timeout, Transport: t}, t.CloseIdleConnections
}
