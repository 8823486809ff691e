// Package repositories implements blob persistence for card slots.
//
// A [BlobStore] is a keyed get/put over opaque bytes. Three drivers are provided:
//   - [SQLiteStore] : the card_blobs table created by the embedded migrations
//   - [RedisStore] : plain SET/GET against a shared Redis
//   - [MemoryStore] : a map, for tests and throwaway instances
//
// [CardStore] sits on top and owns the key format "<namespace>_<userId>_<primary>", one blob per user and slot.
// Tombstones are empty blobs. Loading a tombstone or a key that was never written returns [shared.ErrBlobNotFound].
package repositories
