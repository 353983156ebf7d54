package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/edgegate/edgegate/internal/core/requestlog"
	apperrors "github.com/edgegate/edgegate/internal/errors"
	"github.com/edgegate/edgegate/internal/observability"
)

// Recovery converts handler panics into 500 envelopes and attaches the error
// text to the request snapshot for later lookup.
func Recovery(correlator *requestlog.Correlator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					requestID := GetRequestID(r.Context())
					message := fmt.Sprintf("panic: %v", rec)

					if observability.ServerLogger != nil {
						observability.ServerLogger.Error("handler panicked",
							zap.String("request_id", requestID),
							zap.Any("panic", rec),
							zap.ByteString("stack", debug.Stack()))
					}

					if correlator != nil {
						correlator.AttachError(r.Context(), requestID, message)
					}

					envelope := apperrors.New(apperrors.CodeInternal, "Internal server error")
					apperrors.Respond(w, envelope, requestID)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
