package proxy

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/simanam/personalsite-new/internal/logger"
	"github.com/simanam/personalsite-new/internal/models"
)

type outcomeResponse struct {
	status  int
	message string
}

// The messages are part of the public contract; clients match on them.
var outcomeResponses = map[models.Outcome]outcomeResponse{
	models.OutcomeRateLimited:      {http.StatusTooManyRequests, "Too many requests. Please wait a moment before asking another question."},
	models.OutcomeInvalidInput:     {http.StatusBadRequest, "Please provide a valid message."},
	models.OutcomeTooLong:          {http.StatusBadRequest, "Message is too long. Please keep your question under 500 characters."},
	models.OutcomeNotConfigured:    {http.StatusInternalServerError, "Chat service is not configured. Please try again later."},
	models.OutcomeUnexpectedFormat: {http.StatusInternalServerError, "Unexpected response format."},
	models.OutcomeProviderError:    {http.StatusInternalServerError, genericFailure},
	models.OutcomeInternalError:    {http.StatusInternalServerError, genericFailure},
}

const genericFailure = "Something went wrong. Please try again."

// Status returns the HTTP status and client-facing text for a failure
// outcome. Unknown outcomes map to the generic failure.
func Status(outcome models.Outcome) (int, string) {
	if resp, ok := outcomeResponses[outcome]; ok {
		return resp.status, resp.message
	}
	return http.StatusInternalServerError, genericFailure
}

type JSONResponseWriter struct{}

func (j *JSONResponseWriter) WriteSuccessResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding success response", logger.Err(err))
	}
}

func (j *JSONResponseWriter) WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(models.ErrorResponse{Error: message}); err != nil {
		slog.Error("encoding error response", logger.Err(err))
	}
}
