package idmap

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/al0nec0der/StrIve-sub000/internal/tmdb"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(capacity int, path string) (*Cache, *testClock) {
	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewCache(CacheOptions{Capacity: capacity, TTL: DefaultTTL, Path: path, Clock: clock.Now}, nil), clock
}

func TestLRUEvictsLeastRecentlyAccessed(t *testing.T) {
	cache, clock := newTestCache(3, "")
	for _, id := range []string{"1", "2", "3"} {
		if err := cache.Put(Mapping{CatalogID: id, MediaType: tmdb.MediaMovie, ExternalID: "tt000000" + id, Found: true}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		clock.advance(time.Minute)
	}

	// Touch "1" so "2" becomes the least recently accessed.
	if _, ok := cache.Get("1", tmdb.MediaMovie); !ok {
		t.Fatal("expected hit for 1")
	}
	clock.advance(time.Minute)

	if err := cache.Put(Mapping{CatalogID: "4", MediaType: tmdb.MediaMovie, ExternalID: "tt0000004", Found: true}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if cache.Count() != 3 {
		t.Fatalf("count = %d, want 3", cache.Count())
	}
	if _, ok := cache.Peek("2", tmdb.MediaMovie); ok {
		t.Fatal("expected 2 to be evicted")
	}
	for _, id := range []string{"1", "3", "4"} {
		if _, ok := cache.Peek(id, tmdb.MediaMovie); !ok {
			t.Fatalf("expected %s to survive eviction", id)
		}
	}
}

func TestTTLExpiry(t *testing.T) {
	cache, clock := newTestCache(10, "")
	if err := cache.Put(Mapping{CatalogID: "9", MediaType: tmdb.MediaSeries}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	clock.advance(DefaultTTL - time.Second)
	if m, ok := cache.Get("9", tmdb.MediaSeries); !ok || m.Found {
		t.Fatalf("expected cached negative mapping, got %+v ok=%v", m, ok)
	}
	clock.advance(time.Second)
	if _, ok := cache.Get("9", tmdb.MediaSeries); ok {
		t.Fatal("expected mapping to expire at the TTL boundary")
	}
	if cache.Count() != 0 {
		t.Fatalf("expected expired entry removed, count=%d", cache.Count())
	}
}

func TestPutSweepsExpiredEntries(t *testing.T) {
	cache, clock := newTestCache(10, "")
	_ = cache.Put(Mapping{CatalogID: "old", MediaType: tmdb.MediaMovie})
	clock.advance(DefaultTTL)
	_ = cache.Put(Mapping{CatalogID: "new", MediaType: tmdb.MediaMovie})
	if cache.Count() != 1 {
		t.Fatalf("expected expired entry swept on write, count=%d", cache.Count())
	}
}

func TestMediaTypesAreDistinctKeys(t *testing.T) {
	cache, _ := newTestCache(10, "")
	_ = cache.Put(Mapping{CatalogID: "100", MediaType: tmdb.MediaMovie, ExternalID: "tt0000100", Found: true})
	_ = cache.Put(Mapping{CatalogID: "100", MediaType: tmdb.MediaSeries})
	movie, _ := cache.Get("100", tmdb.MediaMovie)
	series, _ := cache.Get("100", tmdb.MediaSeries)
	if !movie.Found || series.Found {
		t.Fatalf("unexpected mappings movie=%+v series=%+v", movie, series)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idmap.json")
	cache, clock := newTestCache(10, path)
	_ = cache.Put(Mapping{CatalogID: "240", MediaType: tmdb.MediaMovie, ExternalID: "tt0071562", Found: true})
	clock.advance(time.Minute)
	_ = cache.Put(Mapping{CatalogID: "241", MediaType: tmdb.MediaMovie})

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file: %v", err)
	}

	reloaded := NewCache(CacheOptions{Capacity: 10, Path: path, Clock: clock.Now}, nil)
	if reloaded.Count() != 2 {
		t.Fatalf("reloaded count = %d, want 2", reloaded.Count())
	}
	list := reloaded.List()
	if list[0].CatalogID != "241" {
		t.Fatalf("expected most recent first, got %+v", list)
	}
	m, ok := reloaded.Get("240", tmdb.MediaMovie)
	if !ok || m.ExternalID != "tt0071562" {
		t.Fatalf("unexpected reloaded mapping: %+v", m)
	}

	if err := reloaded.Remove("240", tmdb.MediaMovie); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := reloaded.Remove("240", tmdb.MediaMovie); err == nil {
		t.Fatal("expected error removing missing mapping")
	}
	if err := reloaded.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	again := NewCache(CacheOptions{Path: path, Clock: clock.Now}, nil)
	if again.Count() != 0 {
		t.Fatalf("expected empty cache after clear, got %d", again.Count())
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idmap.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cache, _ := newTestCache(10, path)
	if cache.Count() != 0 {
		t.Fatalf("expected empty cache, got %d", cache.Count())
	}
}

func TestPutRejectsInvalid(t *testing.T) {
	cache, _ := newTestCache(10, "")
	if err := cache.Put(Mapping{CatalogID: " ", MediaType: tmdb.MediaMovie}); err == nil {
		t.Fatal("expected error for empty catalog id")
	}
	if err := cache.Put(Mapping{CatalogID: "1", MediaType: "anime"}); err == nil {
		t.Fatal("expected error for invalid media type")
	}
}

func TestReadsDoNotWaitForFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idmap.json")
	cache, _ := newTestCache(10, path)
	if err := cache.Put(Mapping{CatalogID: "1", MediaType: tmdb.MediaMovie, ExternalID: "tt0000001", Found: true}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	other := flock.New(path + ".lock")
	if err := other.Lock(); err != nil {
		t.Fatalf("lock cache file: %v", err)
	}
	locked := true
	defer func() {
		if locked {
			_ = other.Unlock()
		}
	}()

	putDone := make(chan error, 1)
	go func() {
		putDone <- cache.Put(Mapping{CatalogID: "2", MediaType: tmdb.MediaMovie, ExternalID: "tt0000002", Found: true})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := cache.Peek("2", tmdb.MediaMovie); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("in-memory update not visible while the file lock is held")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := cache.Peek("1", tmdb.MediaMovie); !ok {
		t.Fatal("expected unrelated mapping to stay readable")
	}
	if _, ok := cache.Get("1", tmdb.MediaMovie); !ok {
		t.Fatal("expected Get to succeed while the file lock is held")
	}
	select {
	case err := <-putDone:
		t.Fatalf("Put returned before the file lock was released: %v", err)
	default:
	}

	if err := other.Unlock(); err != nil {
		t.Fatalf("unlock cache file: %v", err)
	}
	locked = false
	select {
	case err := <-putDone:
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Put did not finish after the file lock was released")
	}

	reloaded := NewCache(CacheOptions{Capacity: 10, Path: path, Clock: cache.now}, nil)
	if reloaded.Count() != 2 {
		t.Fatalf("reloaded count = %d, want 2", reloaded.Count())
	}
}

func TestConcurrentPutGetKeepsListConsistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idmap.json")
	const capacity = 16
	cache, _ := newTestCache(capacity, path)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Go(func() {
			for i := range 50 {
				id := fmt.Sprintf("%d", (w*50+i)%40)
				if err := cache.Put(Mapping{CatalogID: id, MediaType: tmdb.MediaMovie, ExternalID: "tt" + id, Found: true}); err != nil {
					t.Errorf("Put(%s): %v", id, err)
					return
				}
				cache.Get(id, tmdb.MediaMovie)
				cache.Peek(fmt.Sprintf("%d", i%40), tmdb.MediaMovie)
				if n := cache.Count(); n > capacity {
					t.Errorf("count %d exceeds capacity %d", n, capacity)
					return
				}
			}
		})
	}
	wg.Wait()

	cache.mu.Lock()
	defer cache.mu.Unlock()
	if len(cache.items) > capacity {
		t.Fatalf("items = %d, want <= %d", len(cache.items), capacity)
	}
	seen := 0
	for n := cache.head.next; n != cache.tail; n = n.next {
		if n.next.prev != n {
			t.Fatalf("broken back link at %s", n.mapping.Key())
		}
		if cache.items[n.mapping.Key()] != n {
			t.Fatalf("list node %s missing from index", n.mapping.Key())
		}
		seen++
		if seen > capacity {
			t.Fatal("list longer than capacity")
		}
	}
	if seen != len(cache.items) {
		t.Fatalf("list has %d nodes, index has %d", seen, len(cache.items))
	}

	reloaded := NewCache(CacheOptions{Capacity: capacity, Path: path, Clock: cache.now}, nil)
	if reloaded.Count() != len(cache.items) {
		t.Fatalf("persisted %d mappings, memory holds %d", reloaded.Count(), len(cache.items))
	}
}
