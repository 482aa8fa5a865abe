package throttle

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is an in-memory per-key token bucket throttler.
type TokenBucket struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	capacity   int
	refillRate time.Duration
	cleanup    *time.Ticker
	done       chan struct{}
}

// bucket tracks tokens for a single key.
type bucket struct {
	tokens     int
	lastRefill time.Time
}

// TokenBucketConfig holds configuration for the token bucket throttler
type TokenBucketConfig struct {
	// Capacity is the maximum number of tokens in a bucket
	Capacity int
	// RefillRate is the duration over which a full capacity of tokens
	// is restored
	RefillRate time.Duration
	// CleanupInterval is how often idle buckets are discarded
	CleanupInterval time.Duration
}

// DefaultTokenBucketConfig allows 100 requests per minute.
func DefaultTokenBucketConfig() TokenBucketConfig {
	return TokenBucketConfig{
		Capacity:        100,
		RefillRate:      time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewTokenBucket creates a token bucket throttler with the default
// configuration.
func NewTokenBucket() *TokenBucket {
	return NewTokenBucketWithConfig(DefaultTokenBucketConfig())
}

// NewTokenBucketWithConfig creates a token bucket throttler with custom
// configuration.
func NewTokenBucketWithConfig(config TokenBucketConfig) *TokenBucket {
	tb := &TokenBucket{
		buckets:    make(map[string]*bucket),
		capacity:   config.Capacity,
		refillRate: config.RefillRate,
		done:       make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		tb.cleanup = time.NewTicker(config.CleanupInterval)
		go tb.cleanupLoop()
	}

	return tb
}

// Allow consumes a token for the key when one is available.
func (tb *TokenBucket) Allow(ctx context.Context, key string) (*Info, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()

	b, exists := tb.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     tb.capacity - 1,
			lastRefill: now,
		}
		tb.buckets[key] = b

		return &Info{
			Limit:     tb.capacity,
			Remaining: b.tokens,
			ResetAt:   now.Add(tb.refillRate),
			Allowed:   true,
		}, nil
	}

	// Refill proportionally to elapsed time: capacity tokens per refillRate.
	elapsed := now.Sub(b.lastRefill)
	if elapsed > 0 {
		tokensToAdd := int(float64(tb.capacity) * elapsed.Seconds() / tb.refillRate.Seconds())
		if tokensToAdd > 0 {
			b.tokens = minInt(tb.capacity, b.tokens+tokensToAdd)
			b.lastRefill = now
		}
	}

	if b.tokens > 0 {
		b.tokens--
		return &Info{
			Limit:     tb.capacity,
			Remaining: b.tokens,
			ResetAt:   b.lastRefill.Add(tb.refillRate),
			Allowed:   true,
		}, nil
	}

	return &Info{
		Limit:     tb.capacity,
		Remaining: 0,
		ResetAt:   b.lastRefill.Add(tb.refillRate),
		Allowed:   false,
	}, nil
}

// cleanupLoop discards idle buckets until Close is called.
func (tb *TokenBucket) cleanupLoop() {
	for {
		select {
		case <-tb.cleanup.C:
			tb.cleanupIdleBuckets()
		case <-tb.done:
			return
		}
	}
}

// cleanupIdleBuckets removes buckets untouched for twice the refill rate.
func (tb *TokenBucket) cleanupIdleBuckets() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	threshold := 2 * tb.refillRate

	for key, b := range tb.buckets {
		if now.Sub(b.lastRefill) > threshold {
			delete(tb.buckets, key)
		}
	}
}

// Close stops the cleanup goroutine.
func (tb *TokenBucket) Close() error {
	close(tb.done)
	if tb.cleanup != nil {
		tb.cleanup.Stop()
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
