package repositories

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/desertthunder/glance/internal/shared"
)

// BlobStore persists opaque bytes under string keys.
type BlobStore interface {
	Store(key string, data []byte) error
	Load(key string) ([]byte, error)
}

// Backend is a [BlobStore] that can also list keys and release its connection.
type Backend interface {
	BlobStore
	Keys(prefix string) ([]string, error)
	Close() error
}

// OpenBackend builds the blob store selected by store.driver.
func OpenBackend(c *shared.Config) (Backend, error) {
	switch c.Store.Driver {
	case "sqlite":
		db, err := shared.OpenCardDatabase(c.Database)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(db), nil
	case "redis":
		return OpenRedisStore(c.Redis)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownStoreDriver, c.Store.Driver)
	}
}

// MemoryStore is an in-process [Backend].
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Store(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Load(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrBlobNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) Close() error { return nil }
