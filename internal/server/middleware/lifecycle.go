package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/edgegate/edgegate/internal/core/ratelimit"
	"github.com/edgegate/edgegate/internal/core/requestlog"
	"github.com/edgegate/edgegate/internal/core/telemetry"
	"github.com/edgegate/edgegate/internal/observability"
)

// completionTimeout bounds the background writes dispatched after a response
// is finalized. Writes that exceed it are dropped, not retried.
const completionTimeout = 2 * time.Second

// responseWriter wraps http.ResponseWriter to capture status code and
// response size for the completion hook.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Lifecycle opens the request snapshot before domain logic runs and invokes
// the completion hook exactly once after the response is finalized. The
// completion writes (snapshot merge, rollup updates, deferred quota commit)
// run on a background goroutine: the caller never waits on them and their
// failures never surface.
func Lifecycle(correlator *requestlog.Correlator, aggregator *telemetry.Aggregator, decider *ratelimit.Decider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := withDecisionHolder(r.Context())
			r = r.WithContext(ctx)

			requestID := GetRequestID(ctx)
			userID := GetUserID(ctx)

			correlator.Begin(ctx, requestID, r, userID)

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			outcome := telemetry.Outcome{
				Method:     r.Method,
				Path:       r.URL.Path,
				StatusCode: wrapped.statusCode,
				Duration:   duration,
				UserID:     userID,
			}
			completion := requestlog.Completion{
				Duration:     duration,
				StatusCode:   wrapped.statusCode,
				ResponseSize: wrapped.bytesWritten,
			}
			holder := holderFromContext(ctx)

			go func() {
				dctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
				defer cancel()

				if holder != nil && holder.set {
					decider.Commit(dctx, holder.decision, completion.StatusCode)
				}
				correlator.Finish(dctx, requestID, completion)
				aggregator.Record(dctx, outcome)
			}()

			if observability.ServerLogger != nil {
				observability.ServerLogger.Info("request completed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", wrapped.statusCode),
					zap.Duration("duration", duration),
					zap.Int64("response_size", wrapped.bytesWritten),
					zap.String("request_id", requestID))
			}
		})
	}
}
