package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/edgegate/edgegate/internal/core/store"
)

const keyPrefix = "rate_limit:"

// DefaultStoreTimeout bounds every store round-trip on the admission path.
// When it elapses the decider fails open rather than stalling the request.
const DefaultStoreTimeout = 250 * time.Millisecond

// Decision is the outcome of one admission check plus the data callers need
// for standard rate-limit headers.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration

	// set for deferred-mode decisions so Commit can apply the increment
	// once the response status is known.
	storeKey string
	policy   Policy
	deferred bool
}

// RetryAfterSeconds reports the deny backoff rounded up to whole seconds,
// never less than 1 for a denied decision.
func (d Decision) RetryAfterSeconds() int {
	if d.RetryAfter <= 0 {
		return 0
	}
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Deferred reports whether the quota increment is still pending a Commit.
func (d Decision) Deferred() bool {
	return d.deferred
}

// Decider evaluates fixed-window counters against the shared store.
type Decider struct {
	counter store.Counter
	logger  *zap.Logger
	timeout time.Duration

	// now is injectable so tests control window boundaries. Each decision
	// reads the clock exactly once.
	now func() time.Time
}

// NewDecider wires a decider to the shared counter store.
func NewDecider(counter store.Counter, logger *zap.Logger, timeout time.Duration) *Decider {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decider{
		counter: counter,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// Check admits or denies one request for key under policy.
//
// The window bucket is the current time truncated to the window length; the
// store key embeds the bucket so a new window starts lazily and stale windows
// self-expire via TTL. A denied request never mutates the counter. Any store
// failure fails open: the protected service's availability wins over strict
// quota enforcement when the quota backend is degraded.
func (d *Decider) Check(ctx context.Context, key string, p Policy) Decision {
	now := d.now()
	bucket := now.Truncate(p.Window)
	resetAt := bucket.Add(p.Window)
	storeKey := fmt.Sprintf("%s%s:%d", keyPrefix, key, bucket.UnixMilli())
	ttl := resetAt.Sub(now)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if p.deferred() {
		return d.checkDeferred(ctx, storeKey, p, now, resetAt)
	}

	count, applied, err := d.counter.IncrementWithCap(ctx, storeKey, int64(p.MaxRequests), ttl)
	if err != nil {
		return d.failOpen(key, p, now, resetAt, err)
	}
	if !applied {
		return denied(p, now, resetAt)
	}

	return Decision{
		Allowed:   true,
		Limit:     p.MaxRequests,
		Remaining: p.MaxRequests - int(count),
		ResetAt:   resetAt,
	}
}

// checkDeferred evaluates the window without mutating it; the increment
// happens in Commit once the response outcome exists.
func (d *Decider) checkDeferred(ctx context.Context, storeKey string, p Policy, now, resetAt time.Time) Decision {
	raw, ok, err := d.counter.Get(ctx, storeKey)
	if err != nil {
		return d.failOpen(storeKey, p, now, resetAt, err)
	}

	var count int
	if ok {
		count, _ = strconv.Atoi(raw)
	}
	if count >= p.MaxRequests {
		return denied(p, now, resetAt)
	}

	return Decision{
		Allowed:   true,
		Limit:     p.MaxRequests,
		Remaining: p.MaxRequests - count - 1,
		ResetAt:   resetAt,
		storeKey:  storeKey,
		policy:    p,
		deferred:  true,
	}
}

// Commit applies the deferred increment for an admitted request unless the
// policy's skip condition matches the final status. Best effort: by the time
// the outcome is known the request has already been served, so failures are
// only logged.
func (d *Decider) Commit(ctx context.Context, dec Decision, statusCode int) {
	if !dec.deferred || !dec.Allowed {
		return
	}

	failed := statusCode >= 400
	if failed && dec.policy.SkipFailed {
		return
	}
	if !failed && dec.policy.SkipSuccessful {
		return
	}

	ttl := dec.ResetAt.Sub(d.now())
	if ttl <= 0 {
		// The window closed while the request was in flight.
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if _, _, err := d.counter.IncrementWithCap(ctx, dec.storeKey, int64(dec.policy.MaxRequests), ttl); err != nil {
		d.logger.Warn("rate limit commit failed",
			zap.String("key", dec.storeKey),
			zap.Error(err))
	}
}

func (d *Decider) failOpen(key string, p Policy, now, resetAt time.Time, err error) Decision {
	d.logger.Error("rate limit store unavailable, failing open",
		zap.String("key", key),
		zap.Error(err))

	return Decision{
		Allowed:   true,
		Limit:     p.MaxRequests,
		Remaining: p.MaxRequests - 1,
		ResetAt:   resetAt,
	}
}

func denied(p Policy, now, resetAt time.Time) Decision {
	return Decision{
		Allowed:    false,
		Limit:      p.MaxRequests,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: resetAt.Sub(now),
	}
}
