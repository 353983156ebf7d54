package requestlog

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgegate/edgegate/internal/core/store"
)

func newTestCorrelator(t *testing.T) (*Correlator, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return NewCorrelator(mem, zap.NewNop(), DefaultConfig()), mem
}

func TestBeginPersistsSanitizedSnapshot(t *testing.T) {
	c, _ := newTestCorrelator(t)
	ctx := context.Background()

	body := `{"password":"x","other":"y","nested":{"api_key":"k","kept":1}}`
	req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer hunter2")
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "192.0.2.7:54321"

	c.Begin(ctx, "req-1", req, "u-9")

	record, ok, err := c.Get(ctx, "req-1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "req-1", record.RequestID)
	assert.Equal(t, "POST", record.Method)
	assert.Equal(t, "/auth/login", record.Path)
	assert.Equal(t, "192.0.2.7", record.IP)
	assert.Equal(t, "test-agent", record.UserAgent)
	assert.Equal(t, "u-9", record.UserID)

	assert.Equal(t, RedactionMarker, record.Headers["Authorization"], "sensitive header must be replaced, not dropped")

	// Shape preserved, sensitive values replaced at any depth.
	decoded, ok := record.Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, RedactionMarker, decoded["password"])
	assert.Equal(t, "y", decoded["other"])
	nested, ok := decoded["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, RedactionMarker, nested["api_key"])
	assert.Equal(t, float64(1), nested["kept"])
}

func TestBeginRestoresRequestBody(t *testing.T) {
	c, _ := newTestCorrelator(t)

	body := `{"password":"x"}`
	req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	c.Begin(context.Background(), "req-1", req, "")

	restored, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(restored), "downstream handlers must still see the original body")
}

func TestFinishMergesCompletionData(t *testing.T) {
	c, _ := newTestCorrelator(t)
	ctx := context.Background()

	req := httptest.NewRequest("GET", "/api/widgets", nil)
	c.Begin(ctx, "req-1", req, "")

	c.Finish(ctx, "req-1", Completion{
		Duration:     42 * time.Millisecond,
		StatusCode:   200,
		ResponseSize: 512,
	})

	record, ok, err := c.Get(ctx, "req-1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, int64(42), record.DurationMs)
	assert.Equal(t, 200, record.StatusCode)
	assert.Equal(t, int64(512), record.ResponseSize)
	assert.Equal(t, "GET", record.Method, "begin-time fields must survive the merge")
}

func TestAttachErrorAfterFinish(t *testing.T) {
	c, _ := newTestCorrelator(t)
	ctx := context.Background()

	c.Begin(ctx, "req-1", httptest.NewRequest("GET", "/", nil), "")
	c.Finish(ctx, "req-1", Completion{StatusCode: 500})
	c.AttachError(ctx, "req-1", "handler exploded")

	record, ok, err := c.Get(ctx, "req-1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "handler exploded", record.Error)
	assert.Equal(t, 500, record.StatusCode)
}

func TestAttachErrorOnExpiredRecordIsNoOp(t *testing.T) {
	c, _ := newTestCorrelator(t)

	// Never began: the record does not exist. Must not panic or write.
	c.AttachError(context.Background(), "ghost", "boom")

	_, ok, err := c.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetUnknownID(t *testing.T) {
	c, _ := newTestCorrelator(t)

	_, ok, err := c.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRequestIDUniqueness(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewRequestID()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
