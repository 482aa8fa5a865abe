package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory cache with per-item TTL. A background janitor
// prunes expired items until Close is called.
type Memory struct {
	data   sync.Map
	config Config
	cancel context.CancelFunc
}

// item is a stored value with its expiration time.
type item struct {
	value      []byte
	expiration time.Time
}

// NewMemory creates an in-memory cache with the default configuration.
func NewMemory() *Memory {
	return NewMemoryWithConfig(DefaultConfig())
}

// NewMemoryWithConfig creates an in-memory cache with custom configuration.
func NewMemoryWithConfig(config Config) *Memory {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Memory{
		config: config,
		cancel: cancel,
	}
	go m.janitor(ctx)
	return m
}

// Get retrieves a value from the cache.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, ok := m.data.Load(m.config.Prefix + key)
	if !ok {
		return nil, ErrCacheMiss{Key: key}
	}

	it := value.(item)
	if expired(it, time.Now()) {
		m.data.Delete(m.config.Prefix + key)
		return nil, ErrCacheMiss{Key: key}
	}
	return it.value, nil
}

// Set stores a value with the given TTL. A zero TTL uses the configured
// default; a negative TTL stores the value without expiration.
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	it := item{value: value}
	if ttl > 0 {
		it.expiration = time.Now().Add(ttl)
	}
	m.data.Store(m.config.Prefix+key, it)
	return nil
}

// Delete removes a value from the cache.
func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data.Delete(m.config.Prefix + key)
	return nil
}

// Clear removes all values from the cache.
func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data.Range(func(key, value interface{}) bool {
		m.data.Delete(key)
		return true
	})
	return nil
}

// Exists checks if a key exists in the cache.
func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	value, ok := m.data.Load(m.config.Prefix + key)
	if !ok {
		return false, nil
	}
	if expired(value.(item), time.Now()) {
		m.data.Delete(m.config.Prefix + key)
		return false, nil
	}
	return true, nil
}

// Close stops the background janitor.
func (m *Memory) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

// janitor periodically removes expired items.
func (m *Memory) janitor(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			m.data.Range(func(key, value interface{}) bool {
				if expired(value.(item), now) {
					m.data.Delete(key)
				}
				return true
			})
		}
	}
}

func expired(it item, now time.Time) bool {
	return !it.expiration.IsZero() && now.After(it.expiration)
}
