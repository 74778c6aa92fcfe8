package portalauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/intranetkit/portalauth/password"
	"github.com/intranetkit/portalauth/token"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-password-123"

var testSecret = []byte(strings.Repeat("k", 32))

type memUserStore struct {
	mu           sync.Mutex
	byID         map[int64]UserRecord
	getByIDCalls int
	failWith     error
	rehashed     map[int64]string
}

func newMemUserStore(users ...UserRecord) *memUserStore {
	s := &memUserStore{byID: map[int64]UserRecord{}, rehashed: map[int64]string{}}
	for _, u := range users {
		s.byID[u.ID] = u
	}
	return s
}

func (s *memUserStore) GetByID(_ context.Context, id int64) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getByIDCalls++
	if s.failWith != nil {
		return UserRecord{}, s.failWith
	}
	u, ok := s.byID[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return UserRecord{}, s.failWith
	}
	for _, u := range s.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (s *memUserStore) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.byID[id]
	u.PasswordHash = hash
	s.byID[id] = u
	s.rehashed[id] = hash
	return nil
}

func (s *memUserStore) set(u UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[u.ID] = u
}

func (s *memUserStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getByIDCalls
}

type failingRevocations struct{}

func (failingRevocations) Add(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingRevocations) Contains(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingRevocations) Purge(context.Context) (int64, error) { return 0, nil }

func fastPasswordConfig(c *Config) {
	c.Password.Memory = 8 * 1024
	c.Password.Time = 1
	c.Password.Parallelism = 1
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Secret = testSecret
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	fastPasswordConfig(&cfg)
	return cfg
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func hashPassword(t *testing.T, pass string) string {
	t.Helper()

	h, err := password.NewArgon2(testConfig().Password.Argon2Params())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	hash, err := h.Hash(pass)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	return hash
}

type testEnv struct {
	engine *Engine
	users  *memUserStore
	mr     *miniredis.Miniredis
	admin  UserRecord
	staff  UserRecord
}

type envOption func(*Config, *Builder)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	hash := hashPassword(t, testPassword)
	admin := UserRecord{
		ID: 1, Email: "admin@example.com", PasswordHash: hash,
		Role: token.RoleAdmin, AccountState: AccountActive,
	}
	staff := UserRecord{
		ID: 2, Email: "staff@acme.example", PasswordHash: hash,
		Role: token.RoleCompany, CompanyName: "Acme", AccountState: AccountActive,
	}
	users := newMemUserStore(admin, staff)
	mr, rdb := newTestRedis(t)

	cfg := testConfig()
	b := New().WithRedis(rdb).WithUserStore(users)
	for _, opt := range opts {
		opt(&cfg, b)
	}
	engine, err := b.WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, users: users, mr: mr, admin: admin, staff: staff}
}

func (env *testEnv) login(t *testing.T, email string) (LoginResult, *SessionContext) {
	t.Helper()

	sc := &SessionContext{}
	res, err := env.engine.Login(WithClientIP(context.Background(), "198.51.100.7"), email, testPassword, sc)
	if err != nil {
		t.Fatalf("login %s failed: %v", email, err)
	}
	return res, sc
}
