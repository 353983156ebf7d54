package middleware

import (
	"context"
	"net/http"

	"github.com/edgegate/edgegate/internal/core/requestlog"
)

// RequestIDHeader carries the request identifier to and from callers.
const RequestIDHeader = "X-Request-ID"

// contextKey is a custom type to avoid context key collisions.
type contextKey string

const (
	requestIDContextKey contextKey = "request_id"
	userIDContextKey    contextKey = "user_id"
)

// RequestID assigns every request a unique identifier, honoring one supplied
// by the caller, and reflects it in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = requestlog.NewRequestID()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDContextKey).(string); ok {
		return requestID
	}
	return ""
}

// WithUserID records the authenticated user for downstream keying. Called by
// the external authentication collaborator; this core never authenticates.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// GetUserID retrieves the authenticated user id, empty when anonymous.
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDContextKey).(string); ok {
		return userID
	}
	return ""
}
