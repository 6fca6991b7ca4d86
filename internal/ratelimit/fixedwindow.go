package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultLimit  = 4
	DefaultWindow = 100 * time.Second

	anonymousKey = "anonymous"
)

// Decision is the outcome of one Limit call.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Counter increments a window counter and returns the new value. The first
// increment of a key must set its expiry to ttl. Implementations must be
// atomic for concurrent callers sharing a key.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// FixedWindow admits at most limit calls per key in each window. Windows are
// aligned to the Unix epoch and reset at their boundary; there is no queueing.
type FixedWindow struct {
	counter Counter
	limit   int
	window  time.Duration
	prefix  string
	now     func() time.Time
}

func NewFixedWindow(counter Counter, limit int, window time.Duration) *FixedWindow {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}

	return &FixedWindow{
		counter: counter,
		limit:   limit,
		window:  window,
		prefix:  "ratelimit",
		now:     time.Now,
	}
}

func (f *FixedWindow) Limit(ctx context.Context, key string) (Decision, error) {
	if key == "" {
		key = anonymousKey
	}

	windowMs := f.window.Milliseconds()
	index := f.now().UnixMilli() / windowMs
	resetAt := time.UnixMilli((index + 1) * windowMs)

	count, err := f.counter.Incr(ctx, fmt.Sprintf("%s:%s:%d", f.prefix, key, index), f.window)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	remaining := f.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= int64(f.limit),
		Limit:     f.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

var incrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisCounter keeps window counters in Redis. INCR and PEXPIRE run in one
// script, so concurrent callers on the same key are serialized by Redis.
type RedisCounter struct {
	client redis.Scripter
}

func NewRedisCounter(client redis.Scripter) *RedisCounter {
	return &RedisCounter{client: client}
}

func (r *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := incrScript.Run(ctx, r.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return count, nil
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounter is a process-local Counter for single-instance runs and tests.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}

	e, ok := m.entries[key]
	if !ok {
		e = &memoryEntry{expiresAt: now.Add(ttl)}
		m.entries[key] = e
	}
	e.count++

	return e.count, nil
}
