package rate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds login throttle parameters.
type Config struct {
	Prefix       string
	MaxAttempts  int
	Window       time.Duration
	ThrottleByIP bool
}

// DefaultConfig allows five failed attempts per fifteen minutes, per
// identifier and per IP.
func DefaultConfig() Config {
	return Config{Prefix: "prl", MaxAttempts: 5, Window: 15 * time.Minute, ThrottleByIP: true}
}

// Limiter throttles login attempts with Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter. Zero fields of cfg take their defaults.
func New(client redis.UniversalClient, cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	return &Limiter{redis: client, config: cfg}
}

func (l *Limiter) identifierKey(identifier string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(identifier))))
	return l.config.Prefix + ":login:u:" + hex.EncodeToString(sum[:16])
}

func (l *Limiter) ipKey(ip string) string {
	return l.config.Prefix + ":login:ip:" + ip
}

func (l *Limiter) keys(identifier, ip string) []string {
	keys := []string{l.identifierKey(identifier)}
	if l.config.ThrottleByIP && ip != "" {
		keys = append(keys, l.ipKey(ip))
	}
	return keys
}

// CheckLogin returns ErrRateLimited when either counter has reached its budget.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	counts, err := l.redis.MGet(ctx, l.keys(identifier, ip)...).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for _, v := range counts {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var n int
		if _, err := fmt.Sscan(s, &n); err == nil && n >= l.config.MaxAttempts {
			return ErrRateLimited
		}
	}
	return nil
}

// IncrementLogin records a failed attempt.
func (l *Limiter) IncrementLogin(ctx context.Context, identifier, ip string) error {
	for _, key := range l.keys(identifier, ip) {
		if _, err := l.incrementWithTTL(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the identifier counter after a successful login. The IP
// counter is left to expire so one valid account cannot launder attempts
// against others from the same address.
func (l *Limiter) ResetLogin(ctx context.Context, identifier string) error {
	if err := l.redis.Del(ctx, l.identifierKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Attempts returns the failed attempt count for identifier.
func (l *Limiter) Attempts(ctx context.Context, identifier string) (int, error) {
	n, err := l.redis.Get(ctx, l.identifierKey(identifier)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// fixed window: the TTL is set by the first hit only
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return count, nil
}
