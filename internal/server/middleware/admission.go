package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/edgegate/edgegate/internal/errors"

	"github.com/edgegate/edgegate/internal/core/ratelimit"
)

// decisionHolder lets the admission middleware hand its decision to the
// completion dispatch that runs after the response is finalized.
type decisionHolder struct {
	decision ratelimit.Decision
	set      bool
}

const decisionContextKey contextKey = "rate_limit_decision"

func withDecisionHolder(ctx context.Context) context.Context {
	return context.WithValue(ctx, decisionContextKey, &decisionHolder{})
}

func holderFromContext(ctx context.Context) *decisionHolder {
	holder, _ := ctx.Value(decisionContextKey).(*decisionHolder)
	return holder
}

// Admission gates requests of one route class through the rate-limit
// decider. The decision strictly precedes domain logic: a denied request is
// answered here with 429 and never reaches the handler. Admitted requests
// carry X-RateLimit-* headers either way.
func Admission(decider *ratelimit.Decider, policies ratelimit.Policies, routeClass string) func(http.Handler) http.Handler {
	policy := policies.For(routeClass)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := ratelimit.Identity{
				UserID: GetUserID(r.Context()),
				IP:     ClientIP(r),
			}
			key := ratelimit.ResolveKey(identity, routeClass)

			decision := decider.Check(r.Context(), key, policy)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", decision.ResetAt.UTC().Format(time.RFC3339))

			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfterSeconds()))
				envelope := apperrors.New(apperrors.CodeRateLimited, "Too many requests, retry later").
					WithDetails(map[string]any{
						"retry_after_seconds": decision.RetryAfterSeconds(),
					})
				apperrors.Respond(w, envelope, GetRequestID(r.Context()))
				return
			}

			if holder := holderFromContext(r.Context()); holder != nil {
				holder.decision = decision
				holder.set = true
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP resolves the originating client address: first hop of
// X-Forwarded-For when present, else RemoteAddr without the port. An
// unresolvable address yields the empty string and lands the caller in the
// shared "unknown" bucket.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
