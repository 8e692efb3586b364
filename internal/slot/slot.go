// Package slot defines the durable key-value slot a cart is persisted to.
package slot

import "context"

// Slot is a durable key-value store holding one serialized value per key.
type Slot interface {
	// Load returns the raw value stored under key. A missing key yields
	// an error wrapping errors.ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Store overwrites the value under key.
	Store(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
