package kv

import "context"

// Store is the persistent key-value backing store. Each call is atomic on its own.
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=ports.go Store
type Store interface {
	// Get returns the value stored under key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
