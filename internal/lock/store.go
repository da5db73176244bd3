// Package lock serializes edit access to order records across every gateway
// process. The shared atomic store is the single source of truth; nothing in
// process memory is ever authoritative.
package lock

import (
	"context"
	"time"
)

// Store is the minimal atomic surface the manager needs from a shared
// key-value store. Both operations must be atomic on the store side: the
// at-most-one-lock invariant cannot be upheld by a read-then-write pair from
// the application layer.
type Store interface {
	// SetIfAbsent writes value under key with the given TTL only when the key
	// does not currently exist. Returns true when the write happened.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the current value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// DeleteIfHolder deletes key only when the stored lock record's
	// locked_by_user_id equals holderID. Returns true when a delete happened.
	// A stale release from an already-expired holder must never remove a
	// newer lock, which is why the comparison happens inside the store.
	DeleteIfHolder(ctx context.Context, key, holderID string) (bool, error)
}
