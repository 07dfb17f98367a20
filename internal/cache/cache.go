package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"InventoryChat/internal/backend"
	"InventoryChat/internal/config"
	"InventoryChat/internal/session"
)

// ReplyCache stores raw backend replies keyed by the exact message list
// that produced them
type ReplyCache interface {
	Get(ctx context.Context, key string) (backend.Reply, bool, error)
	Set(ctx context.Context, key string, reply backend.Reply) error
}

// CachedResponse represents a cached backend reply
type CachedResponse struct {
	Reply     backend.Reply
	Timestamp time.Time
}

// Key generates a cache key from the backend, model and messages
func Key(kind backend.Kind, model string, messages []session.Turn) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	for _, msg := range messages {
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Memory is an in-process ReplyCache. Entries older than the TTL are
// treated as missing and dropped on read. Set also sweeps every expired
// entry, at most once per TTL, so keys that are never read again do not
// accumulate.
type Memory struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time

	sweepMu   sync.Mutex
	lastSweep time.Time
}

// NewMemory creates an in-process cache
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) (backend.Reply, bool, error) {
	val, ok := m.entries.Load(key)
	if !ok {
		return backend.Reply{}, false, nil
	}
	cached := val.(CachedResponse)
	if m.ttl > 0 && m.now().Sub(cached.Timestamp) > m.ttl {
		m.entries.CompareAndDelete(key, val)
		return backend.Reply{}, false, nil
	}
	return cached.Reply, true, nil
}

func (m *Memory) Set(_ context.Context, key string, reply backend.Reply) error {
	now := m.now()
	m.entries.Store(key, CachedResponse{
		Reply:     reply,
		Timestamp: now,
	})
	m.sweep(now)
	return nil
}

// sweep drops expired entries when a TTL has passed since the last sweep
func (m *Memory) sweep(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	m.sweepMu.Lock()
	if now.Sub(m.lastSweep) < m.ttl {
		m.sweepMu.Unlock()
		return
	}
	m.lastSweep = now
	m.sweepMu.Unlock()

	m.entries.Range(func(key, val any) bool {
		if now.Sub(val.(CachedResponse).Timestamp) > m.ttl {
			m.entries.CompareAndDelete(key, val)
		}
		return true
	})
}

// Len returns the number of entries held, expired or not
func (m *Memory) Len() int {
	n := 0
	m.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// New builds the cache selected by cfg. It returns a nil cache when
// caching is disabled. The returned close function is never nil.
func New(ctx context.Context, cfg config.Cache) (ReplyCache, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Mode {
	case config.CacheNone, "":
		return nil, noop, nil
	case config.CacheMemory:
		return NewMemory(cfg.TTL), noop, nil
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return NewRedis(client, cfg.TTL), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache mode: %s", cfg.Mode)
	}
}
