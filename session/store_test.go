package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T, cfg Config) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewStore(rdb, cfg), mr
}

func testRecord() Record {
	return Record{
		UserID:      7,
		Email:       "emp@acme.test",
		Role:        "company",
		CompanyName: "Acme",
		AccessToken: "a.b.c",
	}
}

func TestCreateReadRoundTrip(t *testing.T) {
	store, _ := newSessionStoreTest(t, Config{})
	fixed := time.UnixMilli(1_700_000_000_000)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()

	id, err := store.Create(ctx, testRecord())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !ValidID(id) {
		t.Fatalf("unexpected id shape %q", id)
	}

	sess, err := store.Read(ctx, id)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	rec := testRecord()
	if sess.ID != id || sess.UserID != rec.UserID || sess.Email != rec.Email ||
		sess.Role != rec.Role || sess.CompanyName != rec.CompanyName || sess.AccessToken != rec.AccessToken {
		t.Fatalf("unexpected session %+v", sess)
	}
	if !sess.LoginTime.Equal(fixed) || !sess.LastActivity.Equal(fixed) {
		t.Fatalf("expected login_time = last_activity = now, got %v / %v", sess.LoginTime, sess.LastActivity)
	}
	if !sess.Valid() {
		t.Fatal("expected valid session")
	}
}

func TestCreateUsesDistinctIDs(t *testing.T) {
	store, _ := newSessionStoreTest(t, Config{})
	ctx := context.Background()

	var (
		mu  sync.Mutex
		ids = make(map[string]struct{})
		wg  sync.WaitGroup
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := store.Create(ctx, testRecord())
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(ids) != 20 {
		t.Fatalf("expected 20 distinct ids, got %d", len(ids))
	}
}

func TestCreateNeverOverwrites(t *testing.T) {
	store, mr := newSessionStoreTest(t, Config{})
	ctx := context.Background()

	id, err := store.Create(ctx, testRecord())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	created, err := createLua.Run(ctx, store.redis, []string{store.key(id)}, 1000, fieldUserID, 99).Int64()
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	if created != 0 {
		t.Fatal("expected create script to refuse an existing key")
	}
	if got := mr.HGet(store.key(id), fieldUserID); got != "7" {
		t.Fatalf("record overwritten: user_id=%s", got)
	}
}

func TestReadMissingAndMalformedIDs(t *testing.T) {
	store, _ := newSessionStoreTest(t, Config{})
	ctx := context.Background()

	missing, _ := NewID()
	for _, id := range []string{missing, "", "short", "../../etc/passwd"} {
		if _, err := store.Read(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%q: expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	store, _ := newSessionStoreTest(t, Config{})
	ctx := context.Background()

	id, err := store.Create(ctx, testRecord())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Destroy(ctx, id); err != nil {
		t.Fatalf("first destroy: %v", err)
	}
	if err := store.Destroy(ctx, id); err != nil {
		t.Fatalf("second destroy: %v", err)
	}
	if _, err := store.Read(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after destroy, got %v", err)
	}
}

func TestTouchDoesNotResurrect(t *testing.T) {
	store, mr := newSessionStoreTest(t, Config{})
	ctx := context.Background()

	id, err := store.Create(ctx, testRecord())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Destroy(ctx, id); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if err := store.Touch(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if mr.Exists(store.key(id)) {
		t.Fatal("touch recreated a destroyed session")
	}
}

func TestTouchSlidesIdleTimeout(t *testing.T) {
	store, mr := newSessionStoreTest(t, Config{IdleTTL: time.Minute, AbsoluteTTL: time.Hour})
	ctx := context.Background()
	start := time.Now()
	store.now = func() time.Time { return start }

	id, err := store.Create(ctx, testRecord())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mr.FastForward(45 * time.Second)
	store.now = func() time.Time { return start.Add(45 * time.Second) }
	if err := store.Touch(ctx, id); err != nil {
		t.Fatalf("touch: %v", err)
	}

	mr.FastForward(45 * time.Second)
	sess, err := store.Read(ctx, id)
	if err != nil {
		t.Fatalf("expected touched session to survive: %v", err)
	}
	if !sess.LastActivity.Equal(time.UnixMilli(start.Add(45 * time.Second).UnixMilli())) {
		t.Fatalf("last_activity not updated: %v", sess.LastActivity)
	}

	mr.FastForward(time.Minute)
	if _, err := store.Read(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected idle session to lapse, got %v", err)
	}
}

func TestAbsoluteLifetime(t *testing.T) {
	store, mr := newSessionStoreTest(t, Config{IdleTTL: time.Hour, AbsoluteTTL: 2 * time.Hour})
	ctx := context.Background()
	start := time.Now()
	store.now = func() time.Time { return start }

	id, err := store.Create(ctx, testRecord())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	store.now = func() time.Time { return start.Add(90 * time.Minute) }
	if err := store.Touch(ctx, id); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if ttl := mr.TTL(store.key(id)); ttl > 30*time.Minute {
		t.Fatalf("idle ttl must be capped by absolute lifetime, got %v", ttl)
	}

	store.now = func() time.Time { return start.Add(2 * time.Hour) }
	if _, err := store.Read(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound past absolute lifetime, got %v", err)
	}
	if mr.Exists(store.key(id)) {
		t.Fatal("expected lapsed session to be deleted")
	}
}

func TestStoreUnavailable(t *testing.T) {
	store, mr := newSessionStoreTest(t, Config{})
	id, _ := NewID()
	mr.Close()
	ctx := context.Background()

	if _, err := store.Create(ctx, testRecord()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("create: expected ErrUnavailable, got %v", err)
	}
	if _, err := store.Read(ctx, id); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("read: expected ErrUnavailable, got %v", err)
	}
	if err := store.Touch(ctx, id); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("touch: expected ErrUnavailable, got %v", err)
	}
}

func TestSessionValid(t *testing.T) {
	cases := []struct {
		sess *Session
		want bool
	}{
		{nil, false},
		{&Session{UserID: 0, Role: "admin"}, false},
		{&Session{UserID: 1, Role: ""}, false},
		{&Session{UserID: 1, Role: "employee"}, true},
	}
	for i, tc := range cases {
		if got := tc.sess.Valid(); got != tc.want {
			t.Fatalf("case %d: got %v want %v", i, got, tc.want)
		}
	}
}
