// Package ratelimit decides whether a caller may issue another request.
//
// Keys identify the caller ("user:42", "anon:10.0.0.1"). Two backends exist:
// Memory keeps a token bucket per key in this process, Redis counts requests
// per fixed window so that limits hold across instances.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"irisapi/internal/logging"
)

// Limiter is consulted before serving a request. When err is non-nil the
// backend failed and allowed is true: limiting fails open.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, err error)
}

// Nop allows everything.
type Nop struct{}

func (Nop) Allow(context.Context, string) (bool, error) { return true, nil }

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Memory is an in-process token bucket limiter: requests per window, refilled
// continuously, with a burst of the full window allowance.
type Memory struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewMemory allows requests per window for each key. A non-positive requests
// or window allows everything.
func NewMemory(requests int, window time.Duration) *Memory {
	m := &Memory{
		buckets: make(map[string]*bucket),
		limit:   rate.Inf,
		idle:    time.Minute,
		now:     time.Now,
	}
	if requests > 0 && window > 0 {
		m.limit = rate.Every(window / time.Duration(requests))
		m.burst = requests
		m.idle = 2 * window
	}
	return m
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

// sweep drops buckets idle long enough to have refilled completely.
func (m *Memory) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.idle {
		return
	}
	m.lastSweep = now
	for key, b := range m.buckets {
		if now.Sub(b.lastSeen) >= m.idle {
			delete(m.buckets, key)
		}
	}
}

// Counter increments a shared counter that expires after ttl.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Redis is a fixed window limiter on a shared counter.
type Redis struct {
	counter  Counter
	requests int64
	window   time.Duration
	now      func() time.Time
}

// NewRedis allows requests per window for each key, counted in Redis.
func NewRedis(counter Counter, requests int, window time.Duration) *Redis {
	return &Redis{counter: counter, requests: int64(requests), window: window, now: time.Now}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	slot := r.now().UnixNano() / int64(r.window)
	count, err := r.counter.Incr(ctx, fmt.Sprintf("ratelimit:%s:%d", key, slot), r.window)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("rate limit backend failed, allowing request")
		return true, err
	}
	return count <= r.requests, nil
}

// New picks the backend. requests <= 0 disables limiting.
func New(backend string, requests int, window time.Duration, counter Counter) Limiter {
	if requests <= 0 || window <= 0 {
		return Nop{}
	}
	if backend == "redis" && counter != nil {
		return NewRedis(counter, requests, window)
	}
	return NewMemory(requests, window)
}
