package repositories

import (
	"fmt"
	"sort"
	"strings"

	"github.com/desertthunder/glance/internal/shared"
	"github.com/go-redis/redis"
)

// RedisStore keeps blobs as plain Redis strings.
type RedisStore struct {
	DB *redis.Client
}

// OpenRedisStore connects to Redis and verifies the connection with PING.
func OpenRedisStore(c shared.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis at %s: %v", shared.ErrServiceUnavailable, c.Addr, err)
	}
	return &RedisStore{DB: client}, nil
}

// Store sets key to data with no expiry.
func (r *RedisStore) Store(key string, data []byte) error {
	if err := r.DB.Set(key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: store %s: %v", shared.ErrStoreFailure, key, err)
	}
	return nil
}

// Load returns the bytes stored at key.
func (r *RedisStore) Load(key string) ([]byte, error) {
	data, err := r.DB.Get(key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrBlobNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", shared.ErrStoreFailure, key, err)
	}
	return data, nil
}

// Keys lists keys with the given prefix. Glob metacharacters in prefix are escaped.
func (r *RedisStore) Keys(prefix string) ([]string, error) {
	keys, err := r.DB.Keys(escapeGlob(prefix) + "*").Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list keys: %v", shared.ErrStoreFailure, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.DB.Close()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
