package idmap

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/al0nec0der/StrIve-sub000/internal/logging"
	"github.com/al0nec0der/StrIve-sub000/internal/tmdb"
)

// Default bounds for the mapping cache.
const (
	DefaultCapacity = 1000
	DefaultTTL      = 7 * 24 * time.Hour
)

// Mapping links a catalog title to its rating provider id. Found=false is a
// confirmed negative answer and is cached like any other mapping.
type Mapping struct {
	CatalogID      string         `json:"catalog_id"`
	MediaType      tmdb.MediaType `json:"media_type"`
	ExternalID     string         `json:"external_id,omitempty"`
	Found          bool           `json:"found"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
}

// Key returns the cache key for the mapping.
func (m Mapping) Key() string {
	return cacheKey(m.CatalogID, m.MediaType)
}

func cacheKey(catalogID string, mediaType tmdb.MediaType) string {
	return string(mediaType) + ":" + strings.TrimSpace(catalogID)
}

type node struct {
	mapping Mapping
	prev    *node
	next    *node
}

// CacheOptions configures a Cache.
type CacheOptions struct {
	Capacity int
	TTL      time.Duration
	// Path enables JSON persistence when non-empty.
	Path  string
	Clock func() time.Time
}

// Cache is a bounded LRU of catalog to external id mappings with TTL expiry.
// Recency follows LastAccessedAt; head.next is the most recently accessed.
// mu guards the in-memory state only; file writes happen after it is released
// and are ordered by version under writeMu.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*node
	head     *node
	tail     *node
	now      func() time.Time
	store    *fileStore
	logger   *slog.Logger
	version  uint64

	writeMu sync.Mutex
	written uint64
}

// NewCache creates a mapping cache, loading persisted entries when a path is
// configured. Load failures are logged and the cache starts empty.
func NewCache(opts CacheOptions, logger *slog.Logger) *Cache {
	logger = logging.NewComponentLogger(logger, "idmap")
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	c := &Cache{
		capacity: opts.Capacity,
		ttl:      opts.TTL,
		items:    make(map[string]*node, opts.Capacity),
		head:     &node{},
		tail:     &node{},
		now:      opts.Clock,
		logger:   logger,
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	if strings.TrimSpace(opts.Path) == "" {
		return c
	}
	c.store = newFileStore(opts.Path)
	if err := c.load(); err != nil {
		logging.WarnWithContext(logger, "failed to load id mapping cache", "idmap_load_failed",
			logging.Error(err),
			logging.String("path", opts.Path),
			logging.String(logging.FieldErrorHint, "cache will start empty"),
			logging.String(logging.FieldImpact, "previously resolved ids will be looked up again"),
		)
	}
	return c
}

// Get returns an unexpired mapping and marks it as most recently accessed.
func (c *Cache) Get(catalogID string, mediaType tmdb.MediaType) (Mapping, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[cacheKey(catalogID, mediaType)]
	if !ok {
		return Mapping{}, false
	}
	now := c.now()
	if c.expired(n.mapping, now) {
		c.unlink(n)
		return Mapping{}, false
	}
	n.mapping.LastAccessedAt = now
	c.moveToFront(n)
	return n.mapping, true
}

// Peek returns an unexpired mapping without touching its recency.
func (c *Cache) Peek(catalogID string, mediaType tmdb.MediaType) (Mapping, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[cacheKey(catalogID, mediaType)]
	if !ok || c.expired(n.mapping, c.now()) {
		return Mapping{}, false
	}
	return n.mapping, true
}

// Put inserts or replaces a mapping. Expired entries are swept first, then the
// least recently accessed entries are evicted until the cache is within
// capacity. The in-memory update survives a persistence error.
func (c *Cache) Put(m Mapping) error {
	m.CatalogID = strings.TrimSpace(m.CatalogID)
	if m.CatalogID == "" {
		return errors.New("catalog id cannot be empty")
	}
	if !m.MediaType.Valid() {
		return fmt.Errorf("invalid media type %q", m.MediaType)
	}
	if !m.Found {
		m.ExternalID = ""
	}

	c.mu.Lock()
	now := c.now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.LastAccessedAt = now

	c.sweepExpired(now)

	key := m.Key()
	if n, ok := c.items[key]; ok {
		n.mapping = m
		c.moveToFront(n)
	} else {
		n := &node{mapping: m}
		c.addToFront(n)
		c.items[key] = n
	}

	evicted := 0
	for len(c.items) > c.capacity {
		c.evictOldest()
		evicted++
	}
	entries, version := c.snapshotLocked()
	c.mu.Unlock()

	if evicted > 0 {
		c.logger.Debug("evicted id mappings", logging.Int("evicted", evicted), logging.Int("capacity", c.capacity))
	}
	return c.persist(entries, version)
}

// Remove deletes a mapping and persists the change.
func (c *Cache) Remove(catalogID string, mediaType tmdb.MediaType) error {
	c.mu.Lock()
	key := cacheKey(catalogID, mediaType)
	n, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("mapping %q not found in cache", key)
	}
	c.unlink(n)
	entries, version := c.snapshotLocked()
	c.mu.Unlock()

	return c.persist(entries, version)
}

// Clear removes all mappings and persists the empty cache.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.items = make(map[string]*node, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
	entries, version := c.snapshotLocked()
	c.mu.Unlock()

	return c.persist(entries, version)
}

// List returns all unexpired mappings, most recently accessed first.
func (c *Cache) List() []Mapping {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]Mapping, 0, len(c.items))
	for n := c.head.next; n != c.tail; n = n.next {
		if c.expired(n.mapping, now) {
			continue
		}
		out = append(out, n.mapping)
	}
	return out
}

// Count returns the number of mappings currently held, expired or not.
func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity reports the configured bound.
func (c *Cache) Capacity() int { return c.capacity }

func (c *Cache) expired(m Mapping, now time.Time) bool {
	return !now.Before(m.CreatedAt.Add(c.ttl))
}

func (c *Cache) sweepExpired(now time.Time) {
	for n := c.head.next; n != c.tail; {
		next := n.next
		if c.expired(n.mapping, now) {
			c.unlink(n)
		}
		n = next
	}
}

func (c *Cache) addToFront(n *node) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *Cache) moveToFront(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
	c.addToFront(n)
}

func (c *Cache) unlink(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
	delete(c.items, n.mapping.Key())
}

func (c *Cache) evictOldest() {
	if oldest := c.tail.prev; oldest != c.head {
		c.unlink(oldest)
	}
}

func (c *Cache) load() error {
	entries, err := c.store.read()
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccessedAt.Before(entries[j].LastAccessedAt)
	})
	now := c.now()
	for _, m := range entries {
		if strings.TrimSpace(m.CatalogID) == "" || !m.MediaType.Valid() || c.expired(m, now) {
			continue
		}
		key := m.Key()
		if existing, ok := c.items[key]; ok {
			c.unlink(existing)
		}
		n := &node{mapping: m}
		c.addToFront(n)
		c.items[key] = n
	}
	for len(c.items) > c.capacity {
		c.evictOldest()
	}
	c.logger.Debug("loaded id mapping cache",
		logging.Int("entry_count", len(c.items)),
		logging.String("path", c.store.path))
	return nil
}

// snapshotLocked copies the entries for persistence and stamps the copy with
// a new version. Callers hold c.mu.
func (c *Cache) snapshotLocked() ([]Mapping, uint64) {
	if c.store == nil {
		return nil, 0
	}
	c.version++
	entries := make([]Mapping, 0, len(c.items))
	for n := c.head.next; n != c.tail; n = n.next {
		entries = append(entries, n.mapping)
	}
	return entries, c.version
}

// persist writes entries unless a newer snapshot already reached the file.
func (c *Cache) persist(entries []Mapping, version uint64) error {
	if c.store == nil {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if version <= c.written {
		return nil
	}
	if err := c.store.write(entries); err != nil {
		return fmt.Errorf("persist id mapping cache: %w", err)
	}
	c.written = version
	return nil
}
