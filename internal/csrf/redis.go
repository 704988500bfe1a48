package csrf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps session tokens in Redis so several server processes
// can share sessions.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ SessionStore = (*RedisStore)(nil)

// NewRedisStore wraps an existing client. Keys are prefix+sessionID and
// expire after ttl.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Token implements SessionStore.
func (r *RedisStore) Token(ctx context.Context, sessionID string) (string, bool, error) {
	tok, err := r.client.Get(ctx, r.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return tok, true, nil
}

// SetTokenIfAbsent implements SessionStore using SETNX so concurrent
// first requests agree on one token.
func (r *RedisStore) SetTokenIfAbsent(ctx context.Context, sessionID, token string) (string, error) {
	key := r.key(sessionID)

	set, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx: %w", err)
	}
	if set {
		return token, nil
	}

	live, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return live, nil
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}
