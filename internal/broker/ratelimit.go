package broker

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket sized from a venue's max-orders-per-minute
// capability. The router consults it before dispatching an order so the
// venue never sees traffic beyond its published limit; an exhausted bucket
// surfaces as ErrRateLimited without a health penalty.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewRateLimiter builds a limiter allowing perMinute acquisitions per
// minute. perMinute <= 0 returns nil, which TryAcquire treats as unlimited.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &RateLimiter{
		tokens:     float64(perMinute),
		capacity:   float64(perMinute),
		refillRate: float64(perMinute) / 60.0,
		lastRefill: time.Now(),
	}
}

// TryAcquire takes one token if available. A nil limiter always allows.
func (l *RateLimiter) TryAcquire() bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// Tokens returns the current token count, refilling first.
func (l *RateLimiter) Tokens() float64 {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

func (l *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * l.refillRate
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.lastRefill = now
}
