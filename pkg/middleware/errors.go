package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"mercator-hq/correlator/pkg/telemetry/propagation"
)

// ErrorResponse is the JSON body written for requests the middleware
// answers itself.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a middleware error.
type ErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
}

// Error types.
const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeServer         = "server_error"
)

// rejection maps a Begin error to a status and body. A missing trace
// context is the client's fault; anything else is ours.
func rejection(err error) (int, ErrorResponse) {
	if errors.Is(err, propagation.ErrMissingTraceContext) {
		return http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{
			Message: "request carries no usable trace context",
			Type:    ErrorTypeInvalidRequest,
		}}
	}
	return http.StatusInternalServerError, serverError("")
}

func serverError(requestID string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{
		Message:   "An internal error occurred. Please try again later.",
		Type:      ErrorTypeServer,
		RequestID: requestID,
	}}
}

// writeJSON writes body with status. Encoding errors are ignored; the
// header is already gone.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
