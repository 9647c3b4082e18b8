package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/al0nec0der/StrIve-sub000/internal/docstore/sqlite"
)

func TestPutGetAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "ratings.db")
	store, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "ratings", "tt0071562"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := store.Put(ctx, "ratings", "tt0071562", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "ratings", "tt0071562", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	if count, err := store.Count(ctx, "ratings"); err != nil || count != 1 {
		t.Fatalf("expected one document, got %d err=%v", count, err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	got, ok, err := reopened.Get(ctx, "ratings", "tt0071562")
	if err != nil || !ok {
		t.Fatalf("expected persisted document, ok=%v err=%v", ok, err)
	}
	if string(got) != `{"v":2}` {
		t.Fatalf("expected last write to win, got %s", got)
	}
}

func TestCollectionsAreIsolated(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "docs.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	if err := store.Put(ctx, "ratings", "k", []byte("a")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "other", "k"); ok {
		t.Fatal("expected collection isolation")
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := sqlite.Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
