package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := Open(context.Background(), Options{Addr: mr.Addr(), KeyPrefix: "test:"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestPutGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "ratings", "tt0071562"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := store.Put(ctx, "ratings", "tt0071562", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	raw, err := mr.Get("test:ratings:tt0071562")
	if err != nil || raw != `{"v":1}` {
		t.Fatalf("unexpected raw value %q err=%v", raw, err)
	}
	if ttl := mr.TTL("test:ratings:tt0071562"); ttl != 0 {
		t.Fatalf("expected no expiry, got %v", ttl)
	}

	got, ok, err := store.Get(ctx, "ratings", "tt0071562")
	if err != nil || !ok || string(got) != `{"v":1}` {
		t.Fatalf("unexpected Get result %q ok=%v err=%v", got, ok, err)
	}
}

func TestGetSurfacesServerErrors(t *testing.T) {
	store, mr := newTestStore(t)
	mr.SetError("LOADING")

	if _, _, err := store.Get(context.Background(), "ratings", "k"); err == nil {
		t.Fatal("expected error from failing server")
	}
	if err := store.Put(context.Background(), "ratings", "k", []byte("v")); err == nil {
		t.Fatal("expected put error from failing server")
	}
}

func TestNewDoesNotCloseSharedClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := New(client, "")
	if err := store.Put(context.Background(), "ratings", "k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !mr.Exists(DefaultKeyPrefix + "ratings:k") {
		t.Fatal("expected default prefix")
	}
	_ = store.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("shared client should stay open: %v", err)
	}
}

func TestOpenRequiresAddr(t *testing.T) {
	if _, err := Open(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for missing address")
	}
}

func TestCountScansCollection(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	for _, key := range []string{"tt0071562", "tt0068646", "tt0110912"} {
		if err := store.Put(ctx, "ratings", key, []byte("{}")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	_ = store.Put(ctx, "other", "tt0071562", []byte("{}"))
	_ = mr.Set("foreign:ratings:tt1", "{}")

	if n, err := store.Count(ctx, "ratings"); err != nil || n != 3 {
		t.Fatalf("Count = %d err=%v, want 3", n, err)
	}
	if n, err := store.Count(ctx, "missing"); err != nil || n != 0 {
		t.Fatalf("Count(missing) = %d err=%v, want 0", n, err)
	}
	if _, err := store.Count(ctx, " "); err == nil {
		t.Fatal("expected error for empty collection")
	}
}
