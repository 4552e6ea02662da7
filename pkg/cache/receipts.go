package cache

import (
	"context"
	"sync"
	"time"
)

// ReceiptStore remembers which deliveries were already processed
type ReceiptStore interface {
	Seen(ctx context.Context, key string) (bool, error)
	Record(ctx context.Context, key string, ttl time.Duration) error
}

// RedisReceipts keeps receipts as expiring Redis keys
type RedisReceipts struct {
	client *Client
	prefix string
}

// NewRedisReceipts creates a Redis-backed receipt store
func NewRedisReceipts(client *Client) *RedisReceipts {
	return &RedisReceipts{client: client, prefix: "webhook:receipt:"}
}

// Seen reports whether key was recorded and has not expired
func (r *RedisReceipts) Seen(ctx context.Context, key string) (bool, error) {
	return r.client.Exists(ctx, r.prefix+key)
}

// Record stores key for ttl
func (r *RedisReceipts) Record(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl)
}

// MemoryReceipts keeps receipts in process memory; expired entries are
// dropped lazily and by Sweep.
type MemoryReceipts struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryReceipts creates an in-memory receipt store
func NewMemoryReceipts() *MemoryReceipts {
	return &MemoryReceipts{entries: make(map[string]time.Time), now: time.Now}
}

// Seen reports whether key was recorded and has not expired
func (m *MemoryReceipts) Seen(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if !m.now().Before(exp) {
		delete(m.entries, key)
		return false, nil
	}
	return true, nil
}

// Record stores key for ttl
func (m *MemoryReceipts) Record(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = m.now().Add(ttl)
	return nil
}

// Sweep removes expired receipts and returns how many were dropped
func (m *MemoryReceipts) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, exp := range m.entries {
		if !now.Before(exp) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored receipts
func (m *MemoryReceipts) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
