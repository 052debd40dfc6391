package kvstore

import (
	"context"
	"time"
)

// Store is a TTL key-value store with two isolated namespaces. Methods
// without a prefix operate on the attribute namespace; Login-prefixed
// methods operate on the login namespace. Implementations must be safe for
// concurrent use by multiple request goroutines.
type Store interface {
	// Put sets value under key and (re)arms the TTL in one step.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value under key, or ErrNotFound on miss or expiry.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Contains reports whether key holds a live value.
	Contains(ctx context.Context, key string) (bool, error)

	// Size returns the number of live keys in the attribute namespace.
	Size(ctx context.Context) (int64, error)

	LoginPut(ctx context.Context, key string, value []byte, ttl time.Duration) error
	LoginGet(ctx context.Context, key string) ([]byte, error)
	LoginDelete(ctx context.Context, key string) error
	LoginContains(ctx context.Context, key string) (bool, error)
	LoginSize(ctx context.Context) (int64, error)
}
