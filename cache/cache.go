// Package cache holds the per-unit-of-work entity caches of a repository and
// the optional shared byte stores they can write through to.
//
// Positive and Negative are owned by a single repository instance and are
// not safe for concurrent use. Store implementations are.
package cache

import (
	"context"
	"time"
)

// Store is a shared key/value store for encoded cache entries.
type Store interface {
	// Get retrieves a value by key. The boolean indicates a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under key with the given TTL. A zero TTL means the
	// entry has no automatic expiration.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Shared describes how a local cache writes through to a Store.
type Shared struct {
	Store Store

	// Namespace prefixes every key, typically with the resource path, so
	// that repositories for different resources do not collide.
	Namespace string

	// TTL bounds how long positive entries live in the store. Negative
	// entries use their own category TTL.
	TTL time.Duration
}

func (s *Shared) key(kind, id string) string {
	return "rawr:" + kind + ":" + s.Namespace + ":" + id
}

func (s *Shared) enabled() bool {
	return s != nil && s.Store != nil
}
