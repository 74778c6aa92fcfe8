package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when a session does not exist, has lapsed or
	// carries an id of the wrong shape.
	ErrNotFound = errors.New("session not found")
	// ErrUnavailable wraps Redis transport failures.
	ErrUnavailable = errors.New("session store unavailable")
	// ErrIDCollision is returned when every generated id was already taken.
	ErrIDCollision = errors.New("session id collision")
)

const (
	// DefaultPrefix namespaces session keys.
	DefaultPrefix = "pss"
	// DefaultIdleTTL is the inactivity timeout.
	DefaultIdleTTL = 30 * time.Minute
	// DefaultAbsoluteTTL caps a session's lifetime from login regardless of activity.
	DefaultAbsoluteTTL = 12 * time.Hour

	createAttempts = 3
)

const (
	fieldUserID       = "user_id"
	fieldEmail        = "email"
	fieldRole         = "role"
	fieldCompanyName  = "company_name"
	fieldAccessToken  = "access_token"
	fieldLoginTime    = "login_time"
	fieldLastActivity = "last_activity"
)

// ARGV[1] = ttl ms, ARGV[2..] = field/value pairs.
const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV, 2))
redis.call("PEXPIRE", KEYS[1], ARGV[1])
return 1
`

var createLua = redis.NewScript(createScript)

// ARGV[1] = now ms, ARGV[2] = idle ttl ms, ARGV[3] = absolute ttl ms.
const touchScript = `
local login_time = redis.call("HGET", KEYS[1], "login_time")
if not login_time then
  return 0
end
local now = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
local remaining = tonumber(login_time) + tonumber(ARGV[3]) - now
if remaining <= 0 then
  redis.call("DEL", KEYS[1])
  return 0
end
if remaining < ttl then
  ttl = remaining
end
redis.call("HSET", KEYS[1], "last_activity", ARGV[1])
redis.call("PEXPIRE", KEYS[1], ttl)
return 1
`

var touchLua = redis.NewScript(touchScript)

// Config tunes a Store. Zero values select the defaults.
type Config struct {
	Prefix      string
	IdleTTL     time.Duration
	AbsoluteTTL time.Duration
	// Now replaces time.Now for login_time, last_activity and the absolute
	// lifetime check.
	Now func() time.Time
}

// Store is a Redis-backed session store. It is safe for concurrent use.
type Store struct {
	redis       redis.UniversalClient
	prefix      string
	idleTTL     time.Duration
	absoluteTTL time.Duration
	now         func() time.Time
}

// NewStore creates a session [Store] backed by the given Redis client.
func NewStore(client redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.AbsoluteTTL <= 0 {
		cfg.AbsoluteTTL = DefaultAbsoluteTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		redis:       client,
		prefix:      cfg.Prefix,
		idleTTL:     cfg.IdleTTL,
		absoluteTTL: cfg.AbsoluteTTL,
		now:         cfg.Now,
	}
}

func (s *Store) key(id string) string {
	return s.prefix + ":" + id
}

// IdleTTL returns the configured inactivity timeout.
func (s *Store) IdleTTL() time.Duration { return s.idleTTL }

// Create stores rec under a fresh id and returns the id. login_time and
// last_activity are both set to now.
//
//	Performance: 1 Lua call (EXISTS + HSET + PEXPIRE).
func (s *Store) Create(ctx context.Context, rec Record) (string, error) {
	now := s.now().UnixMilli()
	ttl := min(s.idleTTL, s.absoluteTTL).Milliseconds()

	args := []any{
		ttl,
		fieldUserID, rec.UserID,
		fieldEmail, rec.Email,
		fieldRole, rec.Role,
		fieldCompanyName, rec.CompanyName,
		fieldAccessToken, rec.AccessToken,
		fieldLoginTime, now,
		fieldLastActivity, now,
	}

	for range createAttempts {
		id, err := NewID()
		if err != nil {
			return "", err
		}
		created, err := createLua.Run(ctx, s.redis, []string{s.key(id)}, args...).Int64()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if created == 1 {
			return id, nil
		}
	}
	return "", ErrIDCollision
}

// Read returns the session stored under id. A session past its absolute
// lifetime is destroyed and reported as [ErrNotFound].
//
//	Performance: 1 Redis HGETALL.
func (s *Store) Read(ctx context.Context, id string) (*Session, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}

	fields, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	sess, err := decodeFields(id, fields)
	if err != nil {
		return nil, err
	}

	if !s.now().Before(sess.LoginTime.Add(s.absoluteTTL)) {
		if err := s.Destroy(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return sess, nil
}

// Destroy deletes the session. Destroying an absent session is not an error.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if !ValidID(id) {
		return nil
	}
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Touch records activity and slides the idle timeout, capped by the absolute
// lifetime. It returns [ErrNotFound] when the session no longer exists.
//
//	Performance: 1 Lua call (HGET + HSET + PEXPIRE).
func (s *Store) Touch(ctx context.Context, id string) error {
	if !ValidID(id) {
		return ErrNotFound
	}
	touched, err := touchLua.Run(ctx, s.redis, []string{s.key(id)},
		s.now().UnixMilli(),
		s.idleTTL.Milliseconds(),
		s.absoluteTTL.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if touched == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeFields(id string, fields map[string]string) (*Session, error) {
	userID, err := strconv.ParseInt(fields[fieldUserID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt user_id", ErrNotFound)
	}
	loginMs, err := strconv.ParseInt(fields[fieldLoginTime], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt login_time", ErrNotFound)
	}
	lastMs, err := strconv.ParseInt(fields[fieldLastActivity], 10, 64)
	if err != nil {
		lastMs = loginMs
	}

	return &Session{
		ID:           id,
		UserID:       userID,
		Email:        fields[fieldEmail],
		Role:         fields[fieldRole],
		CompanyName:  fields[fieldCompanyName],
		AccessToken:  fields[fieldAccessToken],
		LoginTime:    time.UnixMilli(loginMs),
		LastActivity: time.UnixMilli(lastMs),
	}, nil
}
