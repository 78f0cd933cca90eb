package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// requestIDHeader carries the identifier of a locally answered request, as
// the remote API does for its own errors.
const requestIDHeader = "request-id"

// Error codes returned by the proxy itself, shaped like the remote API's errors.
const (
	errorCodeUnauthenticated = "InvalidAuthenticationToken"
	errorCodeUnavailable     = "ServiceNotAvailable"
	errorCodeBadGateway      = "BadGateway"
	errorCodeInternal        = "InternalServerError"
)

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	InnerError *InnerError `json:"innerError,omitempty"`
}

// InnerError identifies the failed request for correlation with logs.
type InnerError struct {
	Date      time.Time `json:"date"`
	RequestID string    `json:"request-id"`
}

// writeJSON writes a JSON response with the given status code.
// Logs encoding failures internally using the provided context.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	// Headers and status are written before encoding to avoid buffering.
	// If encoding fails, the client may receive a partial response.
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeJSONError writes a JSON error response with the given status code.
// Similar to http.Error but returns JSON instead of plain text.
func writeJSONError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	requestID := uuid.NewString()
	w.Header().Set(requestIDHeader, requestID)

	writeJSON(ctx, w, ErrorResponse{Error: ErrorDetail{
		Code:    code,
		Message: message,
		InnerError: &InnerError{
			Date:      time.Now().UTC().Truncate(time.Second),
			RequestID: requestID,
		},
	}}, status)
}
