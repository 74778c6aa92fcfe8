package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces revocation keys.
const DefaultRedisPrefix = "prv"

// RedisStore keeps one key per revoked token with a TTL equal to the
// token's remaining lifetime.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore returns a RedisStore. An empty prefix selects DefaultRedisPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{redis: client, prefix: prefix, now: time.Now}
}

// WithClock replaces time.Now when computing entry TTLs.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *RedisStore) key(token string) string {
	return s.prefix + ":" + HashToken(token)
}

// Add implements Store with SET NX PX.
func (s *RedisStore) Add(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return false, nil
	}
	// sub-millisecond remainders would become a PX of 0
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	added, err := s.redis.SetNX(ctx, s.key(token), expiresAt.Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return added, nil
}

// Contains implements Store.
func (s *RedisStore) Contains(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// Purge is a no-op: Redis expires the keys itself.
func (s *RedisStore) Purge(context.Context) (int64, error) {
	return 0, nil
}

var _ Store = (*RedisStore)(nil)
