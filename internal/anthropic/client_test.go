package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// sentRequest is what the Messages endpoint receives from Complete.
type sentRequest struct {
	Model     string      `json:"model"`
	MaxTokens int         `json:"max_tokens"`
	System    []textBlock `json:"system"`
	Messages  []struct {
		Role    string      `json:"role"`
		Content []textBlock `json:"content"`
	} `json:"messages"`
}

type textBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func staticKey(key string) func() string {
	return func() string { return key }
}

func newTestClient(t *testing.T, key string, handler http.HandlerFunc) (*Client, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(ts.Close)

	c := NewClient(Options{
		BaseURL:    ts.URL,
		APIKey:     staticKey(key),
		HTTPClient: ts.Client(),
	})
	return c, &calls
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func textResponse(text string) map[string]any {
	return map[string]any{
		"id":          "msg_01",
		"type":        "message",
		"role":        "assistant",
		"model":       DefaultModel,
		"stop_reason": "end_turn",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"usage":       map[string]int{"input_tokens": 812, "output_tokens": 41},
	}
}

func TestCompleteSendsSingleTurnRequest(t *testing.T) {
	const system = "You only discuss Aman's career."
	const question = "  What is Logixtecs? <b>\"quoted\"</b> "

	c, calls := newTestClient(t, "sk-test", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/messages" {
			t.Errorf("request = %s %s, want POST /v1/messages", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-test" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != "2023-06-01" {
			t.Errorf("anthropic-version = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}

		var req sentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
			return
		}
		if req.Model != DefaultModel {
			t.Errorf("model = %q, want %q", req.Model, DefaultModel)
		}
		if req.MaxTokens != DefaultMaxTokens {
			t.Errorf("max_tokens = %d, want %d", req.MaxTokens, DefaultMaxTokens)
		}
		if len(req.System) != 1 || req.System[0].Type != "text" || req.System[0].Text != system {
			t.Errorf("system = %+v, want persona verbatim", req.System)
		}
		if len(req.Messages) != 1 {
			t.Errorf("messages = %d, want 1", len(req.Messages))
		} else {
			m := req.Messages[0]
			if m.Role != "user" || len(m.Content) != 1 || m.Content[0].Text != question {
				t.Errorf("message = %+v, want verbatim user turn", m)
			}
		}

		writeJSON(w, http.StatusOK, textResponse("Logixtecs builds AI infrastructure for logistics."))
	})

	got, err := c.Complete(context.Background(), system, question)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "Logixtecs builds AI infrastructure for logistics." {
		t.Errorf("Complete() = %q", got)
	}
	if calls.Load() != 1 {
		t.Errorf("provider calls = %d, want 1", calls.Load())
	}
}

func TestCompleteReturnsTextVerbatim(t *testing.T) {
	text := "  line one\n\n**bold** and trailing space  "
	c, _ := newTestClient(t, "sk-test", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, textResponse(text))
	})

	got, err := c.Complete(context.Background(), "sys", "hi")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != text {
		t.Errorf("Complete() = %q, want %q", got, text)
	}
}

func TestCompleteNotConfigured(t *testing.T) {
	c, calls := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, textResponse("should not happen"))
	})

	_, err := c.Complete(context.Background(), "sys", "hi")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Complete() error = %v, want ErrNotConfigured", err)
	}
	if calls.Load() != 0 {
		t.Errorf("provider calls = %d, want 0", calls.Load())
	}
}

func TestCompleteReadsKeyPerCall(t *testing.T) {
	key := ""
	gotKey := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey <- r.Header.Get("x-api-key")
		writeJSON(w, http.StatusOK, textResponse("ok"))
	}))
	defer ts.Close()

	c := NewClient(Options{BaseURL: ts.URL, APIKey: func() string { return key }, HTTPClient: ts.Client()})

	if _, err := c.Complete(context.Background(), "sys", "hi"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("first Complete() error = %v, want ErrNotConfigured", err)
	}

	key = "sk-late"
	if _, err := c.Complete(context.Background(), "sys", "hi"); err != nil {
		t.Fatalf("second Complete() error = %v", err)
	}
	if got := <-gotKey; got != "sk-late" {
		t.Errorf("x-api-key = %q, want sk-late", got)
	}
}

func TestCompleteUnexpectedFormat(t *testing.T) {
	c, _ := newTestClient(t, "sk-test", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"type": "message",
			"content": []map[string]any{
				{"type": "tool_use", "id": "toolu_1", "name": "lookup", "input": map[string]string{"q": "secret"}},
				{"type": "text", "text": "second block is ignored"},
			},
		})
	})

	got, err := c.Complete(context.Background(), "sys", "hi")
	if !errors.Is(err, ErrUnexpectedFormat) {
		t.Fatalf("Complete() error = %v, want ErrUnexpectedFormat", err)
	}
	if got != "" {
		t.Errorf("Complete() = %q, want empty", got)
	}
}

func TestCompleteProviderErrors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantType   string
	}{
		{
			name: "authentication",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"type":  "error",
					"error": map[string]string{"type": "authentication_error", "message": "invalid x-api-key"},
				})
			},
			wantStatus: http.StatusUnauthorized,
			wantType:   "authentication_error",
		},
		{
			name: "overloaded",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 529, map[string]any{
					"type":  "error",
					"error": map[string]string{"type": "overloaded_error", "message": "Overloaded"},
				})
			},
			wantStatus: 529,
			wantType:   "overloaded_error",
		},
		{
			name: "plain text 502",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream gone", http.StatusBadGateway)
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "malformed envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, `{"content": [`)
			},
		},
		{
			name: "empty content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"type": "message", "content": []any{}})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := newTestClient(t, "sk-test", tt.handler)

			_, err := c.Complete(context.Background(), "sys", "hi")
			var pErr *ProviderError
			if !errors.As(err, &pErr) {
				t.Fatalf("Complete() error = %v, want *ProviderError", err)
			}
			if pErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", pErr.StatusCode, tt.wantStatus)
			}
			if pErr.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", pErr.Type, tt.wantType)
			}
			if calls.Load() != 1 {
				t.Errorf("provider calls = %d, want exactly 1", calls.Load())
			}
		})
	}
}

func TestCompleteTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c := NewClient(Options{BaseURL: url, APIKey: staticKey("sk-test")})

	_, err := c.Complete(context.Background(), "sys", "hi")
	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("Complete() error = %v, want *ProviderError", err)
	}
	if pErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for transport failure", pErr.StatusCode)
	}
}

func TestCompleteIgnoresCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, "sk-test", func(w http.ResponseWriter, r *http.Request) {
		<-release
		writeJSON(w, http.StatusOK, textResponse("finished"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
		close(release)
	}()

	got, err := c.Complete(ctx, "sys", "hi")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "finished" {
		t.Errorf("Complete() = %q", got)
	}
}

func TestCompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	c := NewClient(Options{BaseURL: ts.URL, APIKey: staticKey("sk-test"), Timeout: 50 * time.Millisecond})

	_, err := c.Complete(context.Background(), "sys", "hi")
	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("Complete() error = %v, want *ProviderError", err)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://example.test/"})
	if c.baseURL != "http://example.test" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.model != DefaultModel || c.maxTokens != DefaultMaxTokens {
		t.Errorf("model/maxTokens = %q/%d", c.model, c.maxTokens)
	}
	if _, err := c.Complete(context.Background(), "sys", "hi"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Complete() with no key source error = %v", err)
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{StatusCode: 401, Type: "authentication_error", Message: "invalid x-api-key"}
	for _, want := range []string{"401", "authentication_error", "invalid x-api-key"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Error() = %q, missing %q", err.Error(), want)
		}
	}
}

func TestCompleteMakesOneAttemptOnRetryableStatus(t *testing.T) {
	c, calls := newTestClient(t, "sk-test", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-should-retry", "true")
		w.Header().Set("retry-after-ms", "1")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"type":  "error",
			"error": map[string]string{"type": "api_error", "message": "try again"},
		})
	})

	_, err := c.Complete(context.Background(), "sys", "hi")
	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("Complete() error = %v, want *ProviderError", err)
	}
	if pErr.StatusCode != http.StatusServiceUnavailable || pErr.Message != "try again" {
		t.Errorf("ProviderError = %+v", pErr)
	}
	if calls.Load() != 1 {
		t.Errorf("provider calls = %d, want 1", calls.Load())
	}
}
