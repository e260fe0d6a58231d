package ratelimit

import (
	"context"
	"sync"
	"time"
)

const pruneThreshold = 4096

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

/*
TokenBucket 程序內的 token bucket，每個 key 一個 bucket
補充採用請求時計算，不需要背景 goroutine
*/
type TokenBucket struct {
	cf      Config
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
}

type Option func(*TokenBucket)

func WithClock(now func() time.Time) Option {
	return func(t *TokenBucket) {
		t.now = now
	}
}

func NewTokenBucket(cf Config, opts ...Option) *TokenBucket {
	t := &TokenBucket{
		cf:      cf,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ Limiter = (*TokenBucket)(nil)

func (t *TokenBucket) Allow(ctx context.Context, key string) (bool, error) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buckets[key]
	if !ok {
		if len(t.buckets) >= pruneThreshold {
			t.pruneLocked(now)
		}
		b = &bucket{tokens: float64(t.cf.Capacity), lastRefill: now}
		t.buckets[key] = b
	}

	b.tokens = t.cf.refill(b.tokens, now.Sub(b.lastRefill))
	b.lastRefill = now
	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// pruneLocked 移除已補滿的 bucket，補滿的 bucket 與新建的沒有差別
func (t *TokenBucket) pruneLocked(now time.Time) {
	full := t.cf.fullAfter()
	for key, b := range t.buckets {
		if now.Sub(b.lastRefill) >= full {
			delete(t.buckets, key)
		}
	}
}

func (t *TokenBucket) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}
