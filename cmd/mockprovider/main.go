// Command mockprovider answers POST /v1/messages the way the Anthropic API
// does, so the chat proxy can run locally without a real key:
//
//	ANTHROPIC_BASE_URL=http://localhost:9000 ANTHROPIC_API_KEY=dev go run ./cmd/server
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/caarlos0/env/v9"

	"github.com/simanam/personalsite-new/internal/logger"
)

type config struct {
	Port string `env:"MOCK_PORT" envDefault:"9000"`
	// Block is the content type of the answer: "text" or e.g. "tool_use".
	Block string `env:"MOCK_BLOCK" envDefault:"text"`
	// Status other than 200 returns an API error envelope.
	Status int `env:"MOCK_STATUS" envDefault:"200"`
}

// system and content may each be a plain string or a list of text blocks.
type messagesRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    json.RawMessage `json:"system"`
	Messages  []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

type textBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func textOf(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var blocks []textBlock
	if json.Unmarshal(raw, &blocks) != nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range blocks {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, nil)))

	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		slog.Error("parsing env config", logger.Err(err))
		os.Exit(1)
	}

	slog.Info("mock provider starting", "port", cfg.Port, "block", cfg.Block, "status", cfg.Status)
	if err := http.ListenAndServe(":"+cfg.Port, newHandler(cfg)); err != nil {
		slog.Error("mock provider failed", logger.Err(err))
		os.Exit(1)
	}
}

func newHandler(cfg config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			writeJSON(w, http.StatusBadRequest, apiError("invalid_request_error", "messages: field required"))
			return
		}

		slog.Info("received messages request",
			"model", req.Model,
			"max_tokens", req.MaxTokens,
			"system_chars", len(textOf(req.System)),
			"api_key_set", r.Header.Get("x-api-key") != "",
		)

		if r.Header.Get("x-api-key") == "" {
			writeJSON(w, http.StatusUnauthorized, apiError("authentication_error", "x-api-key header is required"))
			return
		}
		if cfg.Status != http.StatusOK {
			writeJSON(w, cfg.Status, apiError("api_error", "mock provider configured to fail"))
			return
		}

		question := textOf(req.Messages[len(req.Messages)-1].Content)
		block := map[string]any{"type": cfg.Block}
		if cfg.Block == "text" {
			block["text"] = fmt.Sprintf("(mock) You asked: %q. Aman would be happy to tell you more on LinkedIn.", question)
		} else {
			block["id"] = "toolu_mock"
			block["name"] = "lookup"
			block["input"] = map[string]string{}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"id":          "msg_mock",
			"type":        "message",
			"role":        "assistant",
			"model":       req.Model,
			"content":     []any{block},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": len(textOf(req.System)) / 4, "output_tokens": 24},
		})
	})
	return mux
}

func apiError(kind, message string) map[string]any {
	return map[string]any{
		"type":  "error",
		"error": map[string]string{"type": kind, "message": message},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding mock response", logger.Err(err))
	}
}
