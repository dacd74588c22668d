package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tazhate/pulsebot/internal/domain"
	"github.com/tazhate/pulsebot/pkg/logger"
)

// Cache keeps recently fetched content so a burst of fires for the same
// category hits the upstream API once.
type Cache interface {
	Get(ctx context.Context, key string) (domain.Content, bool)
	Set(ctx context.Context, key string, c domain.Content, ttl time.Duration)
}

// RedisCache misses on any Redis error; errors are logged at debug level.
type RedisCache struct {
	redis  *redis.Client
	prefix string
	log    *zap.SugaredLogger
}

func NewRedisCache(addr, password string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping content cache: %w", err)
	}
	return &RedisCache{redis: client, prefix: "pulsebot:content:", log: logger.Named("content")}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (domain.Content, bool) {
	raw, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Debugw("content cache get failed", "key", key, "error", err)
		}
		return domain.Content{}, false
	}

	var content domain.Content
	if err := json.Unmarshal(raw, &content); err != nil {
		c.log.Debugw("content cache entry unreadable", "key", key, "error", err)
		return domain.Content{}, false
	}
	return content, true
}

func (c *RedisCache) Set(ctx context.Context, key string, content domain.Content, ttl time.Duration) {
	raw, err := json.Marshal(content)
	if err != nil {
		c.log.Debugw("content cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.redis.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		c.log.Debugw("content cache set failed", "key", key, "error", err)
	}
}

func (c *RedisCache) Close() error {
	return c.redis.Close()
}

type memoryEntry struct {
	content   domain.Content
	expiresAt time.Time
}

// MemoryCache is the in-process Cache used when no Redis is configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (domain.Content, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Content{}, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return domain.Content{}, false
	}
	return e.content, true
}

func (c *MemoryCache) Set(_ context.Context, key string, content domain.Content, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{content: content, expiresAt: c.now().Add(ttl)}
}
