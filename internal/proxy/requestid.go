package proxy

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/simanam/personalsite-new/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with a fresh id, echoed in the response
// header and carried in the context for log lines.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set(RequestIDHeader, id)
		ctx := logger.ContextWithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
