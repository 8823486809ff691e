package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/glance/internal/shared"
)

// SQLiteStore keeps blobs in the card_blobs table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps a migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Store inserts or replaces the blob at key.
func (s *SQLiteStore) Store(key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	query := `
		INSERT INTO card_blobs (key, data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, key, data); err != nil {
		return fmt.Errorf("%w: store %s: %v", shared.ErrStoreFailure, key, err)
	}
	return nil
}

// Load returns the blob at key.
func (s *SQLiteStore) Load(key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM card_blobs WHERE key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrBlobNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", shared.ErrStoreFailure, key, err)
	}
	return data, nil
}

// Keys lists stored keys that start with prefix, in key order.
func (s *SQLiteStore) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query("SELECT key FROM card_blobs WHERE substr(key, 1, ?) = ? ORDER BY key", len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: list keys: %v", shared.ErrStoreFailure, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
