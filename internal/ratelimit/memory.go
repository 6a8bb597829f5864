package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/time/rate"
)

const defaultMaxKeys = 10000

// Memory is a per-key token bucket: limit events per window, refilled
// continuously. At most MaxKeys buckets are tracked; a new key evicts the
// least recently seen one.
type Memory struct {
	mu      sync.Mutex
	limit   int
	every   rate.Limit
	now     func() time.Time
	buckets *simplelru.LRU[string, *rate.Limiter]
}

// MemoryConfig tunes the in-process limiter.
type MemoryConfig struct {
	Now     func() time.Time
	MaxKeys int
}

// NewMemory admits limit events per window for every key.
func NewMemory(limit int, window time.Duration, cfg MemoryConfig) *Memory {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = defaultMaxKeys
	}
	if window <= 0 {
		window = time.Minute
	}
	every := rate.Inf
	if limit > 0 {
		every = rate.Every(window / time.Duration(limit))
	}
	// NewLRU only fails for a non-positive size.
	buckets, _ := simplelru.NewLRU[string, *rate.Limiter](cfg.MaxKeys, nil)
	return &Memory{
		limit:   limit,
		every:   every,
		now:     cfg.Now,
		buckets: buckets,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	if m.limit <= 0 {
		return Decision{Allowed: true, Limit: m.limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	lim, ok := m.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(m.every, m.limit)
		m.buckets.Add(key, lim)
	}

	r := lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{Allowed: false, Limit: m.limit, RetryAfter: delay}, nil
	}
	return Decision{
		Allowed:   true,
		Limit:     m.limit,
		Remaining: int(lim.TokensAt(now)),
	}, nil
}

// Len reports the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buckets.Len()
}
