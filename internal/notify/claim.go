package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Claimer arbitrates in-flight deliveries across processes.
type Claimer interface {
	// Claim returns true if the caller now owns key for ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

const claimKeyPrefix = "fpt:delivery:"

// RedisClaimer claims keys with SET NX.
type RedisClaimer struct {
	client redis.Cmdable
}

// NewRedisClaimer creates a new RedisClaimer.
func NewRedisClaimer(client redis.Cmdable) *RedisClaimer {
	return &RedisClaimer{client: client}
}

// Claim implements Claimer.
func (r *RedisClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, claimKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claiming %s: %w", key, err)
	}
	return ok, nil
}

// Release implements Claimer.
func (r *RedisClaimer) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, claimKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("releasing %s: %w", key, err)
	}
	return nil
}

// localClaims is the in-process claim set.
type localClaims struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newLocalClaims() *localClaims {
	return &localClaims{keys: make(map[string]struct{})}
}

func (l *localClaims) claim(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.keys[key]; held {
		return false
	}
	l.keys[key] = struct{}{}
	return true
}

func (l *localClaims) release(key string) {
	l.mu.Lock()
	delete(l.keys, key)
	l.mu.Unlock()
}
