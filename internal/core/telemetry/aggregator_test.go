package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgegate/edgegate/internal/core/store"
)

func newTestAggregator(t *testing.T) (*Aggregator, *store.Memory) {
	t.Helper()

	mem := store.NewMemory()
	a := NewAggregator(mem, zap.NewNop(), 0)
	a.now = func() time.Time {
		return time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)
	}
	return a, mem
}

func TestRecordDailyRollup(t *testing.T) {
	a, _ := newTestAggregator(t)
	ctx := context.Background()

	a.Record(ctx, Outcome{Method: "GET", Path: "/api/widgets", StatusCode: 200, Duration: 12 * time.Millisecond})
	a.Record(ctx, Outcome{Method: "POST", Path: "/api/widgets", StatusCode: 201, Duration: 30 * time.Millisecond})
	a.Record(ctx, Outcome{Method: "GET", Path: "/api/widgets", StatusCode: 500, Duration: 5 * time.Millisecond})

	summary, err := a.Daily(ctx, "2026-03-14")
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.TotalRequests)
	assert.Equal(t, int64(2), summary.RequestsByMethod["GET"])
	assert.Equal(t, int64(1), summary.RequestsByMethod["POST"])
	assert.Equal(t, int64(1), summary.Errors)
	assert.Equal(t, int64(1), summary.StatusCodes["500"])
	assert.InDelta(t, 100.0/3.0, summary.ErrorRate, 0.01)
}

func TestDailyEmptyDayHasZeroErrorRate(t *testing.T) {
	a, _ := newTestAggregator(t)

	summary, err := a.Daily(context.Background(), "2026-01-01")
	require.NoError(t, err)

	assert.Equal(t, int64(0), summary.TotalRequests)
	assert.Equal(t, 0.0, summary.ErrorRate, "empty day must report exactly 0, not NaN")
}

func TestRecordHourlyRollup(t *testing.T) {
	a, mem := newTestAggregator(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		a.Record(ctx, Outcome{Method: "GET", Path: "/", StatusCode: 200, Duration: time.Duration(i+1) * 10 * time.Millisecond})
	}

	summary, err := a.Hourly(ctx, "2026-03-14", 15)
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.Requests)
	assert.Equal(t, 3, summary.LatencyCount)
	assert.InDelta(t, 20.0, summary.AvgLatencyMs, 0.01)

	// Latencies are stored newest first on the bounded list.
	entries, err := mem.ListRange(ctx, "metrics:hourly:2026-03-14:15:latencies", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"30", "20", "10"}, entries)
}

func TestRecordEndpointRollupUsesNormalizedPath(t *testing.T) {
	a, mem := newTestAggregator(t)
	ctx := context.Background()

	a.Record(ctx, Outcome{Method: "GET", Path: "/widgets/42/edit", StatusCode: 200, Duration: time.Millisecond})
	a.Record(ctx, Outcome{Method: "GET", Path: "/widgets/7/edit", StatusCode: 200, Duration: time.Millisecond})

	fields, err := mem.HGetAll(ctx, "metrics:endpoint:GET:/widgets/:id/edit:2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, "2", fields["requests"], "instances of the same endpoint must share one bucket")
}

func TestRecordUserRollup(t *testing.T) {
	a, mem := newTestAggregator(t)
	ctx := context.Background()

	a.Record(ctx, Outcome{Method: "GET", Path: "/", StatusCode: 200, UserID: "u-1"})
	a.Record(ctx, Outcome{Method: "GET", Path: "/", StatusCode: 200})

	fields, err := mem.HGetAll(ctx, "metrics:user:u-1:2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, "1", fields["requests"])

	anon, err := mem.HGetAll(ctx, "metrics:user::2026-03-14")
	require.NoError(t, err)
	assert.Empty(t, anon, "anonymous requests must not create a user bucket")
}

type brokenCounter struct {
	store.Counter
}

func (brokenCounter) HIncrBy(ctx context.Context, key, field string, delta int64, ttl time.Duration) error {
	return errors.New("store down")
}

func (brokenCounter) PushBounded(ctx context.Context, key, value string, cap int64, ttl time.Duration) error {
	return errors.New("store down")
}

func TestRecordSwallowsStoreFailures(t *testing.T) {
	a := NewAggregator(brokenCounter{}, zap.NewNop(), 0)

	// Must not panic or propagate anything.
	a.Record(context.Background(), Outcome{Method: "GET", Path: "/", StatusCode: 200})
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/widgets/42", "/widgets/:id"},
		{"/widgets/42/edit", "/widgets/:id/edit"},
		{"/widgets/abc", "/widgets/abc"},
		{"/widgets/4a2", "/widgets/4a2"},
		{"/v2/users/123/orders/456", "/v2/users/:id/orders/:id"},
		{"/", "/"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.path))
		})
	}
}
