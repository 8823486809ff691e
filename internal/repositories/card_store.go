package repositories

import (
	"errors"
	"fmt"

	"github.com/desertthunder/glance/internal/models"
	"github.com/desertthunder/glance/internal/shared"
)

// CardStore maps (user, slot) pairs onto blob keys.
type CardStore struct {
	blobs     BlobStore
	namespace string
}

// NewCardStore creates a [CardStore] writing keys under namespace.
func NewCardStore(blobs BlobStore, namespace string) *CardStore {
	return &CardStore{blobs: blobs, namespace: namespace}
}

// Key returns the blob key for a user's slot, e.g. "glance_0_true" for user 0's primary slot.
func (s *CardStore) Key(userID int, slot models.Slot) string {
	return fmt.Sprintf("%s_%d_%t", s.namespace, userID, slot.IsPrimary())
}

// Prefix returns the key prefix shared by both slots of a user.
func (s *CardStore) Prefix(userID int) string {
	return fmt.Sprintf("%s_%d_", s.namespace, userID)
}

// Put stores a persisted card wrapper for a user's slot.
func (s *CardStore) Put(userID int, slot models.Slot, wrapper []byte) error {
	return s.blobs.Store(s.Key(userID, slot), wrapper)
}

// Tombstone marks a user's slot as cleared.
func (s *CardStore) Tombstone(userID int, slot models.Slot) error {
	return s.blobs.Store(s.Key(userID, slot), []byte{})
}

// Get returns the stored wrapper for a user's slot.
//
// A tombstone is reported as [shared.ErrBlobNotFound].
func (s *CardStore) Get(userID int, slot models.Slot) ([]byte, error) {
	key := s.Key(userID, slot)
	data, err := s.blobs.Load(key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is a tombstone", shared.ErrBlobNotFound, key)
	}
	return data, nil
}

// IsTombstone reports whether a user's slot holds an explicit tombstone.
func (s *CardStore) IsTombstone(userID int, slot models.Slot) (bool, error) {
	data, err := s.blobs.Load(s.Key(userID, slot))
	if errors.Is(err, shared.ErrBlobNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(data) == 0, nil
}
