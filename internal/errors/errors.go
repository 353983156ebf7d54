// Package errors defines the JSON error envelope returned by the HTTP
// surface and the mapping from machine-readable codes to HTTP status.
package errors

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error codes exposed to callers.
const (
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
)

// Envelope is an error with a stable code and caller-safe message.
type Envelope struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *Envelope) Error() string {
	return e.Code + ": " + e.Message
}

// New builds an envelope for a code/message pair.
func New(code, message string) *Envelope {
	return &Envelope{Code: code, Message: message}
}

// WithDetails attaches caller-safe detail fields.
func (e *Envelope) WithDetails(details map[string]any) *Envelope {
	e.Details = details
	return e
}

// HTTPStatus resolves the status code for an error code.
func HTTPStatus(code string) int {
	switch code {
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorDetail is the error body returned to callers.
type HTTPErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// HTTPErrorResponse wraps the detail in the standard envelope structure.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// Respond writes the envelope as a JSON error response. requestID may be
// empty.
func Respond(w http.ResponseWriter, envelope *Envelope, requestID string) {
	response := HTTPErrorResponse{
		Error: HTTPErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   envelope.Details,
			RequestID: requestID,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(envelope.Code))
	_ = json.NewEncoder(w).Encode(response)
}
