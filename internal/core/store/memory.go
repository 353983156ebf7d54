package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	hash      map[string]int64
	list      []string
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is an in-process Counter for tests and single-instance development.
// It honors TTLs lazily and provides the same atomicity guarantees as the
// Redis backend via a mutex. State is local to the process, so it cannot
// enforce a global budget across replicas.
type Memory struct {
	mu     sync.Mutex
	data   map[string]*memoryEntry
	closed bool

	// now is injectable so tests can control window expiry.
	now func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]*memoryEntry),
		now:  time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// live returns the entry for key, discarding it first if expired.
// Callers must hold m.mu.
func (m *Memory) live(key string) *memoryEntry {
	entry, ok := m.data[key]
	if !ok {
		return nil
	}
	if entry.expired(m.now()) {
		delete(m.data, key)
		return nil
	}
	return entry
}

func (m *Memory) ensure(key string, ttl time.Duration) *memoryEntry {
	entry := m.live(key)
	if entry == nil {
		entry = &memoryEntry{hash: make(map[string]int64)}
		if ttl > 0 {
			entry.expiresAt = m.now().Add(ttl)
		}
		m.data[key] = entry
	}
	return entry
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", false, ErrStoreClosed
	}

	entry := m.live(key)
	if entry == nil {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	entry := &memoryEntry{value: value, hash: make(map[string]int64)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.data[key] = entry
	return nil
}

func (m *Memory) IncrementWithCap(ctx context.Context, key string, cap int64, ttl time.Duration) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, false, ErrStoreClosed
	}

	entry := m.live(key)
	var count int64
	if entry != nil {
		count, _ = strconv.ParseInt(entry.value, 10, 64)
	}
	if count >= cap {
		return count, false, nil
	}
	if entry == nil {
		entry = m.ensure(key, ttl)
	}
	count++
	entry.value = strconv.FormatInt(count, 10)
	return count, true, nil
}

func (m *Memory) HIncrBy(ctx context.Context, key, field string, delta int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	entry := m.ensure(key, ttl)
	entry.hash[field] += delta
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	return nil
}

func (m *Memory) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	fields := make(map[string]string)
	entry := m.live(key)
	if entry == nil {
		return fields, nil
	}
	for field, value := range entry.hash {
		fields[field] = strconv.FormatInt(value, 10)
	}
	return fields, nil
}

func (m *Memory) PushBounded(ctx context.Context, key, value string, cap int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	entry := m.ensure(key, ttl)
	entry.list = append([]string{value}, entry.list...)
	if int64(len(entry.list)) > cap {
		entry.list = entry.list[:cap]
	}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	return nil
}

func (m *Memory) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	entry := m.live(key)
	if entry == nil {
		return nil, nil
	}

	length := int64(len(entry.list))
	if stop < 0 {
		stop = length + stop
	}
	if start < 0 {
		start = length + start
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if start > stop {
		return nil, nil
	}

	out := make([]string, 0, stop-start+1)
	out = append(out, entry.list[start:stop+1]...)
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
