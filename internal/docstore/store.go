package docstore

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("docstore: closed")

// ErrInvalidKey indicates an empty collection or key.
var ErrInvalidKey = errors.New("docstore: collection and key required")

// Store persists opaque documents by collection and key.
type Store interface {
	Get(ctx context.Context, collection, key string) ([]byte, bool, error)
	Put(ctx context.Context, collection, key string, doc []byte) error
	Close() error
}

// Counter is implemented by stores that can report collection sizes.
type Counter interface {
	Count(ctx context.Context, collection string) (int, error)
}

// ValidateKey trims and checks a collection/key pair.
func ValidateKey(collection, key string) (string, string, error) {
	collection = strings.TrimSpace(collection)
	key = strings.TrimSpace(key)
	if collection == "" || key == "" {
		return "", "", ErrInvalidKey
	}
	return collection, key, nil
}

// Memory is a process-local Store. It is used when cache.backend is "memory"
// and in tests.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]map[string][]byte
	closed bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string][]byte)}
}

// Get returns a copy of the stored document.
func (m *Memory) Get(ctx context.Context, collection, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	collection, key, err := ValidateKey(collection, key)
	if err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	doc, ok := m.docs[collection][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), doc...), true, nil
}

// Put stores a copy of doc, replacing any previous value.
func (m *Memory) Put(ctx context.Context, collection, key string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	collection, key, err := ValidateKey(collection, key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	bucket, ok := m.docs[collection]
	if !ok {
		bucket = make(map[string][]byte)
		m.docs[collection] = bucket
	}
	bucket[key] = append([]byte(nil), doc...)
	return nil
}

// Len reports the number of documents in collection.
func (m *Memory) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[collection])
}

// Count implements Counter.
func (m *Memory) Count(ctx context.Context, collection string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return len(m.docs[collection]), nil
}

// Close releases the documents. Further calls return ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.docs = nil
	return nil
}
