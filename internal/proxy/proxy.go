package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/simanam/personalsite-new/internal/anthropic"
	"github.com/simanam/personalsite-new/internal/logger"
	"github.com/simanam/personalsite-new/internal/models"
	"github.com/simanam/personalsite-new/internal/ratelimit"
	"github.com/simanam/personalsite-new/internal/validate"
)

// DefaultMaxBodyBytes caps how much of a request body is read. Larger
// bodies are rejected unparsed as invalid input.
const DefaultMaxBodyBytes = 64 << 10

const sinkTimeout = 5 * time.Second

type Limiter interface {
	Allow(identity string) bool
}

type Completer interface {
	Complete(ctx context.Context, system, message string) (string, error)
}

type AccessLogger interface {
	LogAccess(ctx context.Context, log *models.AccessLog) error
}

type UsageRecorder interface {
	Record(ctx context.Context, outcome models.Outcome) error
}

type Handler struct {
	limiter      Limiter
	completer    Completer
	persona      string
	accessLogger AccessLogger
	usage        UsageRecorder
	maxBodyBytes int64
	writer       JSONResponseWriter
}

type Option func(*Handler)

func WithAccessLogger(l AccessLogger) Option {
	return func(h *Handler) {
		h.accessLogger = l
	}
}

func WithUsageRecorder(u UsageRecorder) Option {
	return func(h *Handler) {
		h.usage = u
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		h.maxBodyBytes = n
	}
}

func NewHandler(limiter Limiter, completer Completer, persona string, opts ...Option) *Handler {
	h := &Handler{
		limiter:      limiter,
		completer:    completer,
		persona:      persona,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP is the single guarded boundary: whatever happens below it, the
// caller gets one of the stable outcomes and never a raw internal error.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx := r.Context()
	recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	identity := ratelimit.Anonymous
	outcome := models.OutcomeInternalError

	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "chat handler panicked", "panic", p, "stack", string(debug.Stack()))
			outcome = models.OutcomeInternalError
			if !recorder.headerWritten {
				h.fail(recorder, outcome)
			}
		}
		h.logAccess(ctx, identity, outcome, recorder, r.ContentLength, time.Since(startTime))
	}()

	identity = ratelimit.ClientIdentity(r)
	outcome = h.handle(ctx, recorder, r, identity)
}

func (h *Handler) handle(ctx context.Context, w http.ResponseWriter, r *http.Request, identity string) models.Outcome {
	if !h.limiter.Allow(identity) {
		slog.InfoContext(ctx, "rate limit exceeded", "identity", identity)
		return h.fail(w, models.OutcomeRateLimited)
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes+1))
	if err != nil {
		slog.WarnContext(ctx, "reading request body", "identity", identity, logger.Err(err))
		return h.fail(w, models.OutcomeInvalidInput)
	}
	if int64(len(body)) > h.maxBodyBytes {
		slog.InfoContext(ctx, "request body over limit", "identity", identity, "max_bytes", h.maxBodyBytes)
		return h.fail(w, models.OutcomeInvalidInput)
	}

	message, err := validate.Message(body)
	switch {
	case errors.Is(err, validate.ErrTooLong):
		return h.fail(w, models.OutcomeTooLong)
	case err != nil:
		return h.fail(w, models.OutcomeInvalidInput)
	}

	text, err := h.completer.Complete(ctx, h.persona, message)
	if err != nil {
		outcome := classify(err)
		switch outcome {
		case models.OutcomeNotConfigured:
			slog.ErrorContext(ctx, "chat service is not configured", logger.Err(err))
		default:
			slog.ErrorContext(ctx, "chat completion failed", "identity", identity, "outcome", outcome, logger.Err(err))
		}
		return h.fail(w, outcome)
	}

	h.writer.WriteSuccessResponse(w, models.ChatResponse{Response: text})
	return models.OutcomeOK
}

func classify(err error) models.Outcome {
	var providerErr *anthropic.ProviderError
	switch {
	case errors.Is(err, anthropic.ErrNotConfigured):
		return models.OutcomeNotConfigured
	case errors.Is(err, anthropic.ErrUnexpectedFormat):
		return models.OutcomeUnexpectedFormat
	case errors.As(err, &providerErr):
		return models.OutcomeProviderError
	default:
		return models.OutcomeInternalError
	}
}

func (h *Handler) fail(w http.ResponseWriter, outcome models.Outcome) models.Outcome {
	status, message := Status(outcome)
	h.writer.WriteErrorResponse(w, status, message)
	return outcome
}

// logAccess hands the finished request to the sinks without holding up the
// response. Sink failures are logged and otherwise ignored.
func (h *Handler) logAccess(ctx context.Context, identity string, outcome models.Outcome, recorder *responseRecorder, reqSize int64, elapsed time.Duration) {
	requestID, _ := logger.RequestIDFromContext(ctx)

	slog.InfoContext(ctx, "chat request completed",
		"identity", identity,
		"outcome", outcome,
		"status", recorder.statusCode,
		"elapsed_ms", elapsed.Milliseconds(),
	)

	if h.accessLogger == nil && h.usage == nil {
		return
	}

	accessLog := &models.AccessLog{
		RequestID:      requestID,
		ClientIdentity: identity,
		Outcome:        outcome,
		StatusCode:     recorder.statusCode,
		ResponseTimeMs: int(elapsed.Milliseconds()),
		RequestSize:    max(reqSize, 0),
		ResponseSize:   int64(recorder.size),
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		defer cancel()

		if h.accessLogger != nil {
			if err := h.accessLogger.LogAccess(bgCtx, accessLog); err != nil {
				slog.WarnContext(bgCtx, "writing access log", logger.Err(err))
			}
		}
		if h.usage != nil {
			if err := h.usage.Record(bgCtx, outcome); err != nil {
				slog.WarnContext(bgCtx, "recording usage", logger.Err(err))
			}
		}
	}()
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode    int
	size          int
	headerWritten bool
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.headerWritten {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.headerWritten = true
	}
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.headerWritten {
		r.WriteHeader(http.StatusOK)
	}
	size, err := r.ResponseWriter.Write(b)
	r.size += size
	return size, err
}
