// Package storage defines the durable key-value surface used for
// per-device state, with an embedded implementation under storage/badger
// and an in-memory implementation for tests and replay runs.
package storage

import "context"

// Store is a minimal durable key-value store. Get reports presence
// explicitly so absent keys are not errors.
type Store interface {
	// Get returns the value for key, whether it exists, and any storage error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put writes the value for key.
	Put(ctx context.Context, key string, value []byte) error

	// Close releases store resources.
	Close() error
}
