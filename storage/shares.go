// Package storage declares the secure share-store abstraction and its
// sentinel errors. Concrete backends (external vault, local badger-backed
// KMS) live in subpackages; callers depend only on the interface.
package storage

import "context"

// ShareStore persists opaque encrypted byte blobs by path. Encryption is the
// backend's responsibility; the signing core treats values as opaque.
//
// Individual paths have key-value semantics and are safe for concurrent use.
// Callers must not assume read-after-write consistency across different
// backend instances.
type ShareStore interface {
	// StoreShare writes data at path, overwriting any previous value.
	StoreShare(ctx context.Context, path string, data []byte) error

	// GetShare returns the blob at path, or ErrNotFound.
	GetShare(ctx context.Context, path string) ([]byte, error)

	// DeleteShare removes the blob at path. Deleting an absent path is not
	// an error.
	DeleteShare(ctx context.Context, path string) error

	// HealthCheck reports whether the backend is reachable.
	HealthCheck(ctx context.Context) bool
}
