package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
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
	return NewRedisStore(rdb, ""), mr
}

func TestRedisStoreAddIsIdempotent(t *testing.T) {
	store, _ := newRedisStoreTest(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	added, err := store.Add(ctx, "tok-a", exp)
	if err != nil || !added {
		t.Fatalf("first add: added=%v err=%v", added, err)
	}
	added, err = store.Add(ctx, "tok-a", exp)
	if err != nil || added {
		t.Fatalf("second add: added=%v err=%v", added, err)
	}

	ok, err := store.Contains(ctx, "tok-a")
	if err != nil || !ok {
		t.Fatalf("contains: ok=%v err=%v", ok, err)
	}
	ok, err = store.Contains(ctx, "tok-b")
	if err != nil || ok {
		t.Fatalf("contains other: ok=%v err=%v", ok, err)
	}
}

func TestRedisStoreKeysByHash(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	if _, err := store.Add(context.Background(), "raw-token", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !mr.Exists(DefaultRedisPrefix + ":" + HashToken("raw-token")) {
		t.Fatal("expected hashed key")
	}
	for _, k := range mr.Keys() {
		if k == "raw-token" || k == DefaultRedisPrefix+":raw-token" {
			t.Fatalf("raw token leaked into key %q", k)
		}
	}
}

func TestRedisStoreEntryLapsesAtExpiry(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, "short", time.Now().Add(2*time.Second)); err != nil {
		t.Fatalf("add: %v", err)
	}
	mr.FastForward(3 * time.Second)

	ok, err := store.Contains(ctx, "short")
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if ok {
		t.Fatal("expected lapsed entry to read as absent")
	}
}

func TestRedisStoreSkipsExpiredToken(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	added, err := store.Add(context.Background(), "old", time.Now().Add(-time.Second))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added {
		t.Fatal("expected expired token to be skipped")
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected no keys, got %v", mr.Keys())
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	mr.Close()

	if _, err := store.Add(context.Background(), "x", time.Now().Add(time.Minute)); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("add: expected ErrUnavailable, got %v", err)
	}
	if _, err := store.Contains(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("contains: expected ErrUnavailable, got %v", err)
	}
}

func TestHashTokenIsHexSHA256(t *testing.T) {
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashToken("abc"); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}
