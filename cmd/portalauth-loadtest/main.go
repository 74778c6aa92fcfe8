// Command portalauth-loadtest measures request authentication and refresh
// throughput against Redis (or an embedded miniredis).
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/intranetkit/portalauth"
	"github.com/intranetkit/portalauth/internal/logging"
	"github.com/intranetkit/portalauth/password"
	"github.com/intranetkit/portalauth/token"
)

const loadPassword = "load-test-password"

type memUsers struct {
	byID    map[int64]portalauth.UserRecord
	byEmail map[string]int64
}

func (m *memUsers) GetByID(_ context.Context, id int64) (portalauth.UserRecord, error) {
	rec, ok := m.byID[id]
	if !ok {
		return portalauth.UserRecord{}, portalauth.ErrUserNotFound
	}
	return rec, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (portalauth.UserRecord, error) {
	id, ok := m.byEmail[email]
	if !ok {
		return portalauth.UserRecord{}, portalauth.ErrUserNotFound
	}
	return m.GetByID(ctx, id)
}

// credential is one logged-in user.
type credential struct {
	access    string
	refresh   string
	sessionID string
}

type phase func(ctx context.Context, c credential) error

func main() {
	var (
		users       = flag.Int("users", 1000, "number of users to log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	engine, err := buildEngine(client, *users)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("logging in %d users...\n", *users)
	startLogin := time.Now()
	creds := make([]credential, *users)
	for i := range creds {
		sc := &portalauth.SessionContext{}
		res, err := engine.Login(ctx, emailFor(i), loadPassword, sc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "login %d failed: %v\n", i, err)
			os.Exit(1)
		}
		creds[i] = credential{access: res.AccessToken, refresh: res.RefreshToken, sessionID: sc.ID}
	}
	fmt.Printf("logged in in %s\n", time.Since(startLogin).Round(time.Millisecond))

	gw := engine.Gateway()
	bearer := func(ctx context.Context, c credential) error {
		return gw.Resolve(ctx, portalauth.Credentials{Bearer: c.access}).Err()
	}
	session := func(ctx context.Context, c credential) error {
		return gw.Resolve(ctx, portalauth.Credentials{SessionID: c.sessionID}).Err()
	}
	refresh := func(ctx context.Context, c credential) error {
		_, err := engine.Refresh(ctx, c.refresh)
		return err
	}

	results := []struct {
		name  string
		stats phaseStats
	}{
		{"bearer", runPhase(ctx, creds, *ops, *concurrency, bearer)},
		{"session", runPhase(ctx, creds, *ops, *concurrency, session)},
		{"refresh", runPhase(ctx, creds, *ops, *concurrency, refresh)},
	}

	fmt.Println("---- results ----")
	for _, r := range results {
		printStats(r.name, r.stats)
	}
}

func buildEngine(client redis.UniversalClient, n int) (*portalauth.Engine, error) {
	cfg := portalauth.DefaultConfig()
	cfg.Secret = []byte(strings.Repeat("L", 32))
	// cheap hashing keeps seeding fast; the phases never hash
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.RateLimit.Enabled = false
	cfg.Audit.Enabled = false

	hasher, err := password.NewHasher(cfg.Password.Argon2Params())
	if err != nil {
		return nil, err
	}
	hash, err := hasher.Hash(loadPassword)
	if err != nil {
		return nil, err
	}

	users := &memUsers{byID: make(map[int64]portalauth.UserRecord, n), byEmail: make(map[string]int64, n)}
	for i := 0; i < n; i++ {
		id := int64(i + 1)
		users.byID[id] = portalauth.UserRecord{
			ID:           id,
			Email:        emailFor(i),
			PasswordHash: hash,
			Role:         token.RoleEmployee,
			AccountState: portalauth.AccountActive,
		}
		users.byEmail[emailFor(i)] = id
	}

	return portalauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(users).
		WithLogger(logging.Discard()).
		WithLatencyHistograms(true).
		Build()
}

func emailFor(i int) string {
	return fmt.Sprintf("user%d@load.test", i)
}

func runPhase(ctx context.Context, creds []credential, ops, concurrency int, op phase) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				c := creds[r.Intn(len(creds))]
				t0 := time.Now()
				err := op(ctx, c)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(sorted []time.Duration, p int) time.Duration {
	switch {
	case len(sorted) == 0:
		return 0
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[len(sorted)-1]
	}
	return sorted[(len(sorted)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
