package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-haiku-20240307"
	DefaultMaxTokens = 300

	contentTypeText = "text"
)

var (
	ErrNotConfigured    = errors.New("anthropic API key is not configured")
	ErrUnexpectedFormat = errors.New("unexpected completion content type")
)

// ProviderError covers transport failures, non-2xx answers and malformed
// envelopes. Its text is for server logs only.
type ProviderError struct {
	StatusCode int
	Type       string
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	var sb strings.Builder
	sb.WriteString("anthropic provider error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": status %d", e.StatusCode)
	}
	if e.Type != "" {
		fmt.Fprintf(&sb, ": %s", e.Type)
	}
	if e.Message != "" {
		fmt.Fprintf(&sb, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

type Options struct {
	BaseURL   string
	Model     string
	MaxTokens int
	// Timeout bounds the whole round-trip. Zero means the transport decides.
	Timeout time.Duration
	// APIKey is consulted on every call.
	APIKey     func() string
	HTTPClient *http.Client
}

type Client struct {
	baseURL   string
	model     string
	maxTokens int
	apiKey    func() string
	sdk       sdk.Client
}

func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		apiKey:    opts.APIKey,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.apiKey == nil {
		c.apiKey = func() string { return "" }
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	// The key is attached per call; see Complete.
	c.sdk = sdk.NewClient(
		option.WithBaseURL(c.baseURL),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(0),
	)
	return c
}

// Complete sends one single-turn exchange and returns the first text block
// of the answer verbatim. It makes at most one HTTP request. Cancellation of
// ctx is ignored once the key check passes; only the client timeout, if
// any, cuts the call short.
func (c *Client) Complete(ctx context.Context, system, userMessage string) (string, error) {
	apiKey := c.apiKey()
	if apiKey == "" {
		return "", ErrNotConfigured
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System:    []sdk.TextBlockParam{{Text: system}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(userMessage)),
		},
	}

	start := time.Now()
	msg, err := c.sdk.Messages.New(context.WithoutCancel(ctx), params, option.WithAPIKey(apiKey))
	if err != nil {
		return "", providerError(err)
	}

	slog.DebugContext(ctx, "completion received",
		"model", msg.Model,
		"stop_reason", msg.StopReason,
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
		"elapsed", time.Since(start),
	)

	if len(msg.Content) == 0 {
		return "", &ProviderError{Err: errors.New("no content blocks in response")}
	}

	first := msg.Content[0]
	if first.Type != contentTypeText {
		return "", fmt.Errorf("%w: %q", ErrUnexpectedFormat, first.Type)
	}

	return first.Text, nil
}

// errorEnvelope is the body of a non-2xx Messages API answer.
type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func providerError(err error) *ProviderError {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return &ProviderError{Err: err}
	}

	pErr := &ProviderError{StatusCode: apiErr.StatusCode, Err: err}
	var envelope errorEnvelope
	if json.Unmarshal([]byte(apiErr.RawJSON()), &envelope) == nil {
		pErr.Type = envelope.Error.Type
		pErr.Message = envelope.Error.Message
	}
	return pErr
}
