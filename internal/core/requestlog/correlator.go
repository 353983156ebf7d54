// Package requestlog gives every request a stable identifier and persists a
// sanitized lifecycle snapshot keyed by it, for debugging and audit. Writes
// never block or fail the request path.
package requestlog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edgegate/edgegate/internal/core/store"
)

const keyPrefix = "request:"

// Record is the persisted request/response snapshot.
type Record struct {
	RequestID    string            `json:"request_id"`
	Method       string            `json:"method"`
	Path         string            `json:"path"`
	Headers      map[string]string `json:"headers"`
	Body         any               `json:"body,omitempty"`
	IP           string            `json:"ip"`
	UserAgent    string            `json:"user_agent"`
	UserID       string            `json:"user_id,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	DurationMs   int64             `json:"duration_ms,omitempty"`
	StatusCode   int               `json:"status_code,omitempty"`
	ResponseSize int64             `json:"response_size,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// Completion carries the terminal data merged into the snapshot when the
// response is finalized.
type Completion struct {
	Duration     time.Duration
	StatusCode   int
	ResponseSize int64
}

// Config controls snapshot retention and redaction.
type Config struct {
	TTL             time.Duration `mapstructure:"ttl"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	RedactedHeaders []string      `mapstructure:"redacted_headers"`
	RedactedFields  []string      `mapstructure:"redacted_fields"`
}

// DefaultConfig returns the standard 1-hour retention with the stock
// denylists.
func DefaultConfig() Config {
	return Config{
		TTL:             time.Hour,
		MaxBodyBytes:    16 * 1024,
		RedactedHeaders: defaultRedactedHeaders(),
		RedactedFields:  defaultRedactedFields(),
	}
}

// NewRequestID returns an identifier with negligible collision probability.
func NewRequestID() string {
	return uuid.New().String()
}

// Correlator persists and updates request snapshots in the shared store.
type Correlator struct {
	counter store.Counter
	logger  *zap.Logger
	cfg     Config
	headers denylist
	fields  denylist

	now func() time.Time
}

// NewCorrelator wires a correlator to the shared counter store.
func NewCorrelator(counter store.Counter, logger *zap.Logger, cfg Config) *Correlator {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 16 * 1024
	}
	if cfg.RedactedHeaders == nil {
		cfg.RedactedHeaders = defaultRedactedHeaders()
	}
	if cfg.RedactedFields == nil {
		cfg.RedactedFields = defaultRedactedFields()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{
		counter: counter,
		logger:  logger,
		cfg:     cfg,
		headers: newDenylist(cfg.RedactedHeaders),
		fields:  newDenylist(cfg.RedactedFields),
		now:     time.Now,
	}
}

// Begin builds the sanitized snapshot for an inbound request and persists it
// under id. Failures are logged and swallowed; the request proceeds
// regardless.
func (c *Correlator) Begin(ctx context.Context, id string, r *http.Request, userID string) {
	record := Record{
		RequestID: id,
		Method:    r.Method,
		Path:      r.URL.Path,
		Headers:   sanitizeHeaders(r.Header, c.headers),
		Body:      c.captureBody(r),
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		UserID:    userID,
		Timestamp: c.now().UTC(),
	}

	c.put(ctx, id, &record)
}

// Finish merges completion data into the stored snapshot. Read-modify-write
// with last-write-wins: at most one completion event is expected per request.
func (c *Correlator) Finish(ctx context.Context, id string, done Completion) {
	record, ok := c.load(ctx, id)
	if !ok {
		return
	}

	record.DurationMs = done.Duration.Milliseconds()
	record.StatusCode = done.StatusCode
	record.ResponseSize = done.ResponseSize

	c.put(ctx, id, record)
}

// AttachError adds error text to the snapshot; it may fire after Finish. An
// already-expired record is a logged no-op.
func (c *Correlator) AttachError(ctx context.Context, id string, message string) {
	record, ok := c.load(ctx, id)
	if !ok {
		return
	}

	record.Error = message
	c.put(ctx, id, record)
}

// Get returns the snapshot for id, or false when it does not exist or has
// expired.
func (c *Correlator) Get(ctx context.Context, id string) (*Record, bool, error) {
	raw, ok, err := c.counter.Get(ctx, keyPrefix+id)
	if err != nil || !ok {
		return nil, false, err
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, false, err
	}
	return &record, true, nil
}

func (c *Correlator) load(ctx context.Context, id string) (*Record, bool) {
	record, ok, err := c.Get(ctx, id)
	if err != nil {
		c.logger.Warn("request snapshot read failed", zap.String("request_id", id), zap.Error(err))
		return nil, false
	}
	if !ok {
		c.logger.Debug("request snapshot expired", zap.String("request_id", id))
		return nil, false
	}
	return record, true
}

func (c *Correlator) put(ctx context.Context, id string, record *Record) {
	payload, err := json.Marshal(record)
	if err != nil {
		c.logger.Warn("request snapshot encode failed", zap.String("request_id", id), zap.Error(err))
		return
	}
	if err := c.counter.SetWithTTL(ctx, keyPrefix+id, string(payload), c.cfg.TTL); err != nil {
		c.logger.Warn("request snapshot write dropped", zap.String("request_id", id), zap.Error(err))
	}
}

// captureBody reads a bounded JSON body snapshot and restores the request
// body for downstream handlers. Non-JSON and oversized bodies are skipped.
func (c *Correlator) captureBody(r *http.Request) any {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, c.cfg.MaxBodyBytes+1))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))

	if err != nil || int64(len(raw)) > c.cfg.MaxBodyBytes {
		return nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	return sanitizeBody(decoded, c.fields)
}

// clientIP resolves the originating address: first X-Forwarded-For hop,
// else RemoteAddr without the port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx > 0 {
		return addr[:idx]
	}
	return addr
}
