// Package cache defines the port interface for the session snapshot cache.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for key-value snapshot caching. Values are
// serialized session snapshots; the cache is written only after a confirmed
// load or confirmed remote write, never optimistically.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SnapshotKey derives the cache key for a user's last published snapshot.
// Dot-separated to stay within the NATS KV key charset.
func SnapshotKey(userID string) string {
	return "session." + userID
}
