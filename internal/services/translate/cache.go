package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"plantdoctor/internal/logger"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores translated labels.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, expiration time.Duration) error
}

// MemoryCache is an in-process LRU.
type MemoryCache struct {
	entries *lru.Cache[string, string]
}

// NewMemoryCache creates an LRU holding at most size translations.
func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = 256
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create translation cache: %w", err)
	}
	return &MemoryCache{entries: entries}, nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	if v, ok := c.entries.Get(key); ok {
		return v, nil
	}
	return "", ErrCacheMiss
}

func (c *MemoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.entries.Add(key, value)
	return nil
}

// RedisCache shares translations between processes.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps a go-redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (c *RedisCache) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// CachedTranslator consults the cache before the wrapped translator.
// Cache failures are logged and never fail the translation.
type CachedTranslator struct {
	next   Translator
	cache  Cache
	target string
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedTranslator wraps next with cache; target namespaces the keys.
func NewCachedTranslator(next Translator, cache Cache, target string, ttl time.Duration, log *logger.Logger) *CachedTranslator {
	return &CachedTranslator{next: next, cache: cache, target: target, ttl: ttl, logger: log}
}

func (c *CachedTranslator) Translate(ctx context.Context, text string) (string, error) {
	key := c.key(text)

	cached, err := c.cache.Get(ctx, key)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warning("Translation cache read failed: %v", err)
	}

	translated, err := c.next.Translate(ctx, text)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(ctx, key, translated, c.ttl); err != nil {
		c.logger.Warning("Translation cache write failed: %v", err)
	}
	return translated, nil
}

func (c *CachedTranslator) key(text string) string {
	return fmt.Sprintf("translate:%s:%s:%s", sourceLanguage, c.target, text)
}
