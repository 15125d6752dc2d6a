package provider

import (
	"context"
	"crypto/sha1" //nolint:gosec // cache key digest, not security
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/donaldgifford/flight-price-tracker/internal/metrics"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

const defaultCacheTTL = 2 * time.Minute

// Cache stores recent provider responses.
type Cache interface {
	Get(ctx context.Context, key string) ([]domain.Quote, bool, error)
	Set(ctx context.Context, key string, quotes []domain.Quote, ttl time.Duration) error
}

// RedisCache implements Cache on Redis with JSON values.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a Redis-backed quote cache.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "fpt:quotes"
	}
	return &RedisCache{client: client, prefix: prefix}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]domain.Quote, bool, error) {
	b, err := c.client.Get(ctx, c.prefix+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached quotes: %w", err)
	}

	var quotes []domain.Quote
	if err := json.Unmarshal(b, &quotes); err != nil {
		return nil, false, fmt.Errorf("decoding cached quotes: %w", err)
	}
	return quotes, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, quotes []domain.Quote, ttl time.Duration) error {
	b, err := json.Marshal(quotes)
	if err != nil {
		return fmt.Errorf("encoding quotes: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+":"+key, b, ttl).Err(); err != nil {
		return fmt.Errorf("caching quotes: %w", err)
	}
	return nil
}

type memoryEntry struct {
	quotes    []domain.Quote
	expiresAt time.Time
}

// MemoryCache implements Cache in process memory.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	nowFunc func() time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), nowFunc: time.Now}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]domain.Quote, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.nowFunc().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return append([]domain.Quote(nil), e.quotes...), true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, quotes []domain.Quote, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{
		quotes:    append([]domain.Quote(nil), quotes...),
		expiresAt: c.nowFunc().Add(ttl),
	}
	return nil
}

// CachingProvider serves repeated identical requests from a Cache. Cache
// failures fall through to the wrapped provider.
type CachingProvider struct {
	next  Provider
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewCachingProvider wraps next. A zero ttl uses the default.
func NewCachingProvider(next Provider, cache Cache, ttl time.Duration) *CachingProvider {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachingProvider{next: next, cache: cache, ttl: ttl, log: slog.Default()}
}

// Name implements Provider.
func (c *CachingProvider) Name() string { return c.next.Name() }

// Budget forwards the wrapped provider's budget, if any.
func (c *CachingProvider) Budget() *Budget {
	if b, ok := c.next.(interface{ Budget() *Budget }); ok {
		return b.Budget()
	}
	return nil
}

// FetchQuotes implements Provider.
func (c *CachingProvider) FetchQuotes(ctx context.Context, req QuoteRequest) ([]domain.Quote, error) {
	key := cacheKey(c.next.Name(), req)

	quotes, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.QuoteCacheTotal.WithLabelValues("error").Inc()
		c.log.Warn("quote cache read failed", "provider", c.next.Name(), "error", err)
	case ok:
		metrics.QuoteCacheTotal.WithLabelValues("hit").Inc()
		return quotes, nil
	default:
		metrics.QuoteCacheTotal.WithLabelValues("miss").Inc()
	}

	quotes, err = c.next.FetchQuotes(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(quotes) > 0 {
		if err := c.cache.Set(ctx, key, quotes, c.ttl); err != nil {
			c.log.Warn("quote cache write failed", "provider", c.next.Name(), "error", err)
		}
	}
	return quotes, nil
}

func cacheKey(provider string, req QuoteRequest) string {
	sum := sha1.Sum([]byte(req.Key())) //nolint:gosec // see import
	return fmt.Sprintf("%s:%x", provider, sum[:])
}
