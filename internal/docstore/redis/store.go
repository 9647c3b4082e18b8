// Package redis implements docstore.Store on a Redis server. Each document is
// a plain string value under "<prefix><collection>:<key>".
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/al0nec0der/StrIve-sub000/internal/docstore"
)

// DefaultKeyPrefix namespaces keys when no prefix is configured.
const DefaultKeyPrefix = "strive:"

// Options configures the connection.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Store is a docstore.Store backed by Redis.
type Store struct {
	client *redis.Client
	prefix string
	owned  bool
}

var (
	_ docstore.Store   = (*Store)(nil)
	_ docstore.Counter = (*Store)(nil)
)

const scanBatch = 500

// Open connects to Redis and verifies the server answers PING.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, errors.New("redis address required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	store := New(client, opts.KeyPrefix)
	store.owned = true
	return store, nil
}

// New wraps an existing client. Close leaves the client open.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) makeKey(collection, key string) string {
	return s.prefix + collection + ":" + key
}

// Get loads the document stored under collection/key.
func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, bool, error) {
	collection, key, err := docstore.ValidateKey(collection, key)
	if err != nil {
		return nil, false, err
	}
	data, err := s.client.Get(ctx, s.makeKey(collection, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return data, true, nil
}

// Put writes the document without expiry; staleness is judged by readers.
func (s *Store) Put(ctx context.Context, collection, key string, doc []byte) error {
	collection, key, err := docstore.ValidateKey(collection, key)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.makeKey(collection, key), doc, 0).Err(); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, key, err)
	}
	return nil
}

// Count walks the collection's keys with SCAN.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return 0, docstore.ErrInvalidKey
	}
	count := 0
	iter := s.client.Scan(ctx, 0, s.makeKey(collection, "*"), scanBatch).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return count, nil
}

// Close closes the client when the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
