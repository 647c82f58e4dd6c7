package models

import "time"

// ChatRequest is the only accepted inbound body.
type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Outcome classifies how a chat request ended. Values are stable and are
// used as access-log and usage-counter labels.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeRateLimited      Outcome = "rate_limited"
	OutcomeInvalidInput     Outcome = "invalid_input"
	OutcomeTooLong          Outcome = "too_long"
	OutcomeNotConfigured    Outcome = "not_configured"
	OutcomeProviderError    Outcome = "provider_error"
	OutcomeUnexpectedFormat Outcome = "unexpected_format"
	OutcomeInternalError    Outcome = "internal_error"
)

// Outcomes lists every Outcome in a fixed order.
var Outcomes = []Outcome{
	OutcomeOK,
	OutcomeRateLimited,
	OutcomeInvalidInput,
	OutcomeTooLong,
	OutcomeNotConfigured,
	OutcomeProviderError,
	OutcomeUnexpectedFormat,
	OutcomeInternalError,
}

// AccessLog is one handled chat request. It never carries message or
// answer text.
type AccessLog struct {
	ID             int64     `json:"id"`
	RequestID      string    `json:"request_id"`
	ClientIdentity string    `json:"client_identity"`
	Outcome        Outcome   `json:"outcome"`
	StatusCode     int       `json:"status_code"`
	ResponseTimeMs int       `json:"response_time_ms"`
	RequestSize    int64     `json:"request_size"`
	ResponseSize   int64     `json:"response_size"`
	Timestamp      time.Time `json:"timestamp"`
}
