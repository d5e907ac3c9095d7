package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Cache stores cards by key. Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*Card, error)
	Set(ctx context.Context, key string, card *Card) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryCache is an in-process Cache. Entries never expire.
type MemoryCache struct {
	mu    sync.RWMutex
	cards map[string]*Card
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{cards: make(map[string]*Card)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (*Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cards[key]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, card *Card) error {
	cp := *card
	m.mu.Lock()
	m.cards[key] = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.cards, k)
	}
	m.mu.Unlock()
	return nil
}

// RedisCache stores cards as JSON strings in Redis so that several server
// processes share generated content and served-card lookups.
type RedisCache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to addr and verifies the connection.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisCacheFromClient(client, ttl), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *goredis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: "learnloop:", ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, key string) (*Card, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	var card Card
	if err := json.Unmarshal(raw, &card); err != nil {
		return nil, fmt.Errorf("decode cached card %s: %w", key, err)
	}
	return &card, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, card *Card) error {
	raw, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("encode card %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
