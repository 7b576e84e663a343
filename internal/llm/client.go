// Package llm calls an OpenAI-compatible chat-completion endpoint
// (OpenRouter by default).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"studynotion/internal/apperr"
	"studynotion/internal/logging"
	"studynotion/internal/metrics"
)

const maxReplyBytes = 1 << 20

// Options configures a Client.
type Options struct {
	URL       string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client calls the chat-completion provider.
type Client struct {
	opts    Options
	HTTP    *http.Client
	metrics *metrics.Metrics
	log     logging.Logger
}

// New creates a client whose transport is traced with otelhttp.
func New(opts Options, m *metrics.Metrics, log logging.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 400
	}
	return &Client{
		opts:    opts,
		metrics: m,
		log:     log,
		HTTP: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) Model() string { return c.opts.Model }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

// Complete sends prompt as a single user message. Any HTTP status comes back
// as a Reply; only a missing key (Config) or a transport failure (Network)
// is an error.
func (c *Client) Complete(ctx context.Context, prompt string) (Reply, error) {
	if c.opts.APIKey == "" {
		c.metrics.ObserveProvider("config_error", 0)
		return Reply{}, apperr.Config("Missing provider API key")
	}

	body, err := json.Marshal(completionRequest{
		Model:     c.opts.Model,
		Messages:  []message{{Role: "user", Content: prompt}},
		MaxTokens: c.opts.MaxTokens,
	})
	if err != nil {
		return Reply{}, apperr.Internal("encode provider request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(body))
	if err != nil {
		return Reply{}, apperr.Internal("build provider request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.metrics.ObserveProvider("network_error", time.Since(start))
		c.log.Error(ctx, "provider request failed", "model", c.opts.Model, "error", err)
		return Reply{}, apperr.Network("provider request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveProvider("network_error", elapsed)
		return Reply{}, apperr.Network("read provider reply", err)
	}

	reply := NewReply(resp.StatusCode, raw)
	if resp.StatusCode >= 300 {
		c.metrics.ObserveProvider("http_error", elapsed)
		c.log.Error(ctx, "provider error reply", "model", c.opts.Model, "status", resp.StatusCode, "body", string(raw))
	} else {
		c.metrics.ObserveProvider("ok", elapsed)
		c.log.Info(ctx, "provider call", "model", c.opts.Model, "status", resp.StatusCode, "latency", elapsed.String())
	}
	return reply, nil
}

// Reply is one provider response, decoded as far as it goes.
type Reply struct {
	Status int
	Body   []byte

	isJSON     bool
	hasChoices bool
	choices    []choice
}

type choice struct {
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
}

// NewReply decodes a raw provider response.
func NewReply(status int, body []byte) Reply {
	r := Reply{Status: status, Body: body, isJSON: json.Valid(body)}
	if !r.isJSON {
		return r
	}
	var envelope struct {
		Choices []choice `json:"choices"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Choices != nil {
		r.hasChoices = true
		r.choices = envelope.Choices
	}
	return r
}

// Answer returns choices[0].message.content. ok is false when the status is
// an error, or the body has no non-empty choices list.
func (r Reply) Answer() (content string, ok bool) {
	if r.Status >= 400 || !r.hasChoices || len(r.choices) == 0 {
		return "", false
	}
	if m := r.choices[0].Message; m != nil {
		return m.Content, true
	}
	return "", true
}

// Content is the best-effort text of the reply: the first choice's message
// when there is one, the raw body when it is not JSON, the compacted JSON
// otherwise.
func (r Reply) Content() string {
	if r.hasChoices && len(r.choices) > 0 && r.choices[0].Message != nil {
		return r.choices[0].Message.Content
	}
	if !r.isJSON {
		return string(r.Body)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, r.Body); err != nil {
		return string(r.Body)
	}
	return buf.String()
}

// Detail is what a failed reply echoes back to the client: the decoded JSON
// body, the raw text, or "no choices" when the body is empty.
func (r Reply) Detail() any {
	switch {
	case len(bytes.TrimSpace(r.Body)) == 0:
		return "no choices"
	case r.isJSON:
		return json.RawMessage(r.Body)
	default:
		return string(r.Body)
	}
}

func (r Reply) String() string {
	return fmt.Sprintf("status=%d body=%q", r.Status, r.Body)
}
