package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter limits how frequently a key may perform an action
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// TokenBucketLimiter implements rate limiting using token buckets
type TokenBucketLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	maxTokens  int
	refillRate time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewTokenBucketLimiter creates a new token bucket rate limiter
func NewTokenBucketLimiter(maxTokens int, refillRate time.Duration) *TokenBucketLimiter {
	l := &TokenBucketLimiter{
		buckets:    make(map[string]*bucket),
		maxTokens:  maxTokens,
		refillRate: refillRate,
		stopCh:     make(chan struct{}),
	}

	go l.cleanup()

	return l
}

// Allow checks if a request is allowed for the given key
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, exists := l.buckets[key]
	if !exists {
		l.buckets[key] = &bucket{tokens: l.maxTokens - 1, lastRefill: now}
		return true, nil
	}

	// Refill proportionally to elapsed time
	elapsed := now.Sub(b.lastRefill)
	refills := int(elapsed / l.refillRate)
	if refills > 0 {
		b.tokens += refills
		if b.tokens > l.maxTokens {
			b.tokens = l.maxTokens
		}
		b.lastRefill = now
	}

	if b.tokens <= 0 {
		return false, nil
	}

	b.tokens--
	return true, nil
}

// Reset clears the bucket for a key
func (l *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
	return nil
}

// Close stops the background cleanup goroutine. Safe to call twice.
func (l *TokenBucketLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// cleanup periodically removes stale buckets until Close
func (l *TokenBucketLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-30 * time.Minute)
			for key, b := range l.buckets {
				if b.lastRefill.Before(cutoff) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// IPRateLimiter limits requests per client IP
type IPRateLimiter struct {
	limiter *TokenBucketLimiter
}

// NewIPRateLimiter creates a per-IP limiter allowing requestsPerMinute requests
func NewIPRateLimiter(requestsPerMinute int) *IPRateLimiter {
	return &IPRateLimiter{
		limiter: NewTokenBucketLimiter(requestsPerMinute, time.Minute/time.Duration(requestsPerMinute)),
	}
}

// Allow checks if a request from the given IP is allowed
func (l *IPRateLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	return l.limiter.Allow(ctx, "ip:"+ip)
}

// Close stops the limiter's background cleanup
func (l *IPRateLimiter) Close() {
	l.limiter.Close()
}

// UserRateLimiter limits requests per authenticated user
type UserRateLimiter struct {
	limiter *TokenBucketLimiter
}

// NewUserRateLimiter creates a per-user limiter allowing requestsPerMinute requests
func NewUserRateLimiter(requestsPerMinute int) *UserRateLimiter {
	return &UserRateLimiter{
		limiter: NewTokenBucketLimiter(requestsPerMinute, time.Minute/time.Duration(requestsPerMinute)),
	}
}

// Allow checks if a request from the given user is allowed
func (l *UserRateLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	return l.limiter.Allow(ctx, "user:"+userID)
}

// Close stops the limiter's background cleanup
func (l *UserRateLimiter) Close() {
	l.limiter.Close()
}
