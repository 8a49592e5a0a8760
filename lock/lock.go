// Package lock serializes attempts on the same document across consumers.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLocked is returned when another holder owns the key.
var ErrLocked = errors.New("lock held")

// Locker hands out exclusive, expiring leases on keys.
type Locker interface {
	// Acquire takes key for ttl. It fails with ErrLocked when the key is held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	// Release frees the key if this lease still owns it.
	Release(ctx context.Context) error
}

// DocumentKey is the lock key of one document of an owner.
func DocumentKey(ownerID, documentID string) string {
	return "lock:" + ownerID + ":" + documentID
}
