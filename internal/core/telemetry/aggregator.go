// Package telemetry turns completed request outcomes into time-bucketed
// rollups in the shared store. Every write is best effort: metrics must never
// affect the served response, so failures are logged and swallowed.
package telemetry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edgegate/edgegate/internal/core/store"
)

const (
	dateLayout = "2006-01-02"

	// RollupTTL is how long rollup buckets survive after their last write.
	RollupTTL = 30 * 24 * time.Hour

	// Bounded recent-latency lists, oldest evicted first.
	HourlyLatencyCap   = 1000
	EndpointLatencyCap = 100
)

// Outcome is the terminal record of one served request.
type Outcome struct {
	Method     string
	Path       string
	StatusCode int
	Duration   time.Duration
	UserID     string
}

// Summary is the daily aggregate exposed to operators.
type Summary struct {
	Date             string           `json:"date"`
	TotalRequests    int64            `json:"total_requests"`
	RequestsByMethod map[string]int64 `json:"requests_by_method"`
	Errors           int64            `json:"errors"`
	ErrorRate        float64          `json:"error_rate"`
	StatusCodes      map[string]int64 `json:"status_codes,omitempty"`
}

// HourlySummary reports one hour bucket plus latency statistics computed over
// the bounded recent-latency list.
type HourlySummary struct {
	Date         string  `json:"date"`
	Hour         int     `json:"hour"`
	Requests     int64   `json:"requests"`
	LatencyCount int     `json:"latency_count"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	P95LatencyMs float64 `json:"p95_latency_ms"`
}

// Aggregator fans one outcome out to the daily/hourly/endpoint/user rollups.
type Aggregator struct {
	counter store.Counter
	logger  *zap.Logger
	timeout time.Duration

	now func() time.Time
}

// NewAggregator wires an aggregator to the shared counter store.
func NewAggregator(counter store.Counter, logger *zap.Logger, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		counter: counter,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// Record updates all four rollup granularities for one completed request.
// The four writes are independent: partial failure in one dimension must not
// block the others, and no error ever reaches the caller.
func (a *Aggregator) Record(ctx context.Context, o Outcome) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	now := a.now().UTC()
	date := now.Format(dateLayout)
	durationMs := strconv.FormatInt(o.Duration.Milliseconds(), 10)

	a.recordDaily(ctx, date, o)
	a.recordHourly(ctx, date, now.Hour(), durationMs)
	a.recordEndpoint(ctx, date, o, durationMs)
	a.recordUser(ctx, date, o)
}

func (a *Aggregator) recordDaily(ctx context.Context, date string, o Outcome) {
	key := "metrics:daily:" + date

	a.incr(ctx, key, "requests")
	a.incr(ctx, key, strings.ToUpper(o.Method)+"_requests")
	if o.StatusCode >= 400 {
		a.incr(ctx, key, "errors")
		a.incr(ctx, key, "status_"+strconv.Itoa(o.StatusCode))
	}
}

func (a *Aggregator) recordHourly(ctx context.Context, date string, hour int, durationMs string) {
	key := fmt.Sprintf("metrics:hourly:%s:%02d", date, hour)

	a.incr(ctx, key, "requests")
	if err := a.counter.PushBounded(ctx, key+":latencies", durationMs, HourlyLatencyCap, RollupTTL); err != nil {
		a.logger.Warn("hourly latency write dropped", zap.String("key", key), zap.Error(err))
	}
}

func (a *Aggregator) recordEndpoint(ctx context.Context, date string, o Outcome, durationMs string) {
	key := fmt.Sprintf("metrics:endpoint:%s:%s:%s", strings.ToUpper(o.Method), NormalizePath(o.Path), date)

	a.incr(ctx, key, "requests")
	if err := a.counter.PushBounded(ctx, key+":latencies", durationMs, EndpointLatencyCap, RollupTTL); err != nil {
		a.logger.Warn("endpoint latency write dropped", zap.String("key", key), zap.Error(err))
	}
}

func (a *Aggregator) recordUser(ctx context.Context, date string, o Outcome) {
	if o.UserID == "" {
		return
	}
	a.incr(ctx, "metrics:user:"+o.UserID+":"+date, "requests")
}

func (a *Aggregator) incr(ctx context.Context, key, field string) {
	if err := a.counter.HIncrBy(ctx, key, field, 1, RollupTTL); err != nil {
		a.logger.Warn("rollup write dropped",
			zap.String("key", key),
			zap.String("field", field),
			zap.Error(err))
	}
}

// Daily aggregates the daily rollup for date (today when empty).
func (a *Aggregator) Daily(ctx context.Context, date string) (*Summary, error) {
	if date == "" {
		date = a.now().UTC().Format(dateLayout)
	}

	fields, err := a.counter.HGetAll(ctx, "metrics:daily:"+date)
	if err != nil {
		return nil, fmt.Errorf("read daily rollup: %w", err)
	}

	summary := &Summary{
		Date:             date,
		RequestsByMethod: make(map[string]int64),
		StatusCodes:      make(map[string]int64),
	}

	for field, raw := range fields {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		switch {
		case field == "requests":
			summary.TotalRequests = value
		case field == "errors":
			summary.Errors = value
		case strings.HasSuffix(field, "_requests"):
			summary.RequestsByMethod[strings.TrimSuffix(field, "_requests")] = value
		case strings.HasPrefix(field, "status_"):
			summary.StatusCodes[strings.TrimPrefix(field, "status_")] = value
		}
	}

	// Zero requests means a zero rate, never a division error.
	if summary.TotalRequests > 0 {
		summary.ErrorRate = float64(summary.Errors) / float64(summary.TotalRequests) * 100
	}

	return summary, nil
}

// Hourly reads one hourly bucket and computes latency stats over its bounded
// recent-latency list.
func (a *Aggregator) Hourly(ctx context.Context, date string, hour int) (*HourlySummary, error) {
	if date == "" {
		date = a.now().UTC().Format(dateLayout)
	}
	key := fmt.Sprintf("metrics:hourly:%s:%02d", date, hour)

	fields, err := a.counter.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read hourly rollup: %w", err)
	}

	summary := &HourlySummary{Date: date, Hour: hour}
	if raw, ok := fields["requests"]; ok {
		summary.Requests, _ = strconv.ParseInt(raw, 10, 64)
	}

	entries, err := a.counter.ListRange(ctx, key+":latencies", 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read hourly latencies: %w", err)
	}

	latencies := make([]float64, 0, len(entries))
	var total float64
	for _, raw := range entries {
		ms, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		latencies = append(latencies, ms)
		total += ms
	}

	summary.LatencyCount = len(latencies)
	if len(latencies) > 0 {
		summary.AvgLatencyMs = total / float64(len(latencies))
		sort.Float64s(latencies)
		idx := int(float64(len(latencies))*0.95) - 1
		if idx < 0 {
			idx = 0
		}
		summary.P95LatencyMs = latencies[idx]
	}

	return summary, nil
}

// NormalizePath collapses purely numeric path segments to :id so
// per-resource-instance noise does not fragment the endpoint key space.
// Non-numeric segments pass through untouched.
func NormalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if isNumeric(segment) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
