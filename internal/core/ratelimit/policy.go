// Package ratelimit decides, per request key, whether the current fixed
// window still has quota. Counters live in the shared store so the decision
// is consistent across service instances.
package ratelimit

import (
	"fmt"
	"time"
)

// Route classes group endpoints that share a throttling policy.
const (
	ClassAuth      = "auth"
	ClassExpensive = "expensive"
	ClassAPI       = "api"
	ClassDefault   = "default"
)

// Policy is the immutable window/quota configuration for one route class.
// Policies are built at startup and never mutated at request time.
type Policy struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`

	// SkipSuccessful/SkipFailed defer the counter increment until the
	// response status is known, so requests matching the skip condition
	// never consume quota.
	SkipSuccessful bool `mapstructure:"skip_successful"`
	SkipFailed     bool `mapstructure:"skip_failed"`
}

// Validate rejects unusable window/quota values. Called eagerly at startup;
// a failure here is fatal, never surfaced at request time.
func (p Policy) Validate() error {
	if p.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", p.Window)
	}
	if p.MaxRequests <= 0 {
		return fmt.Errorf("max_requests must be positive, got %d", p.MaxRequests)
	}
	return nil
}

func (p Policy) deferred() bool {
	return p.SkipSuccessful || p.SkipFailed
}

// Policies maps a route class to its policy.
type Policies map[string]Policy

// DefaultPolicies returns the static policy table. Login-style endpoints get
// a tight budget that only counts failed attempts; expensive operations get
// a small hourly budget; everything else falls back to a per-IP default.
func DefaultPolicies() Policies {
	return Policies{
		ClassAuth:      {Window: 15 * time.Minute, MaxRequests: 5, SkipSuccessful: true},
		ClassExpensive: {Window: time.Hour, MaxRequests: 10},
		ClassAPI:       {Window: 15 * time.Minute, MaxRequests: 100},
		ClassDefault:   {Window: 15 * time.Minute, MaxRequests: 300},
	}
}

// Validate checks every policy in the table and requires a default fallback.
func (ps Policies) Validate() error {
	if _, ok := ps[ClassDefault]; !ok {
		return fmt.Errorf("policy table is missing the %q fallback", ClassDefault)
	}
	for class, p := range ps {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("policy %q: %w", class, err)
		}
	}
	return nil
}

// For returns the policy for a route class, falling back to the default.
func (ps Policies) For(class string) Policy {
	if p, ok := ps[class]; ok {
		return p
	}
	return ps[ClassDefault]
}

// Identity is the resolved caller identity for keying: the authenticated
// user id when present, otherwise the client IP.
type Identity struct {
	UserID string
	IP     string
}

// ResolveKey maps an identity and route class to a rate-limit key. The
// structured prefix keeps unrelated identities and classes collision-free.
// An unresolvable identity lands in a shared "unknown" bucket rather than
// being rejected.
func ResolveKey(id Identity, routeClass string) string {
	if routeClass == "" {
		routeClass = ClassDefault
	}
	switch {
	case id.UserID != "":
		return routeClass + ":user:" + id.UserID
	case id.IP != "":
		return routeClass + ":ip:" + id.IP
	default:
		return routeClass + ":ip:unknown"
	}
}
