package port

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the interface for caching read-model results
type Cache interface {
	// Get retrieves a value from cache into dest; returns ErrCacheMiss when absent
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value in cache with the default TTL
	Set(ctx context.Context, key string, value interface{}) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// DeletePattern removes all keys matching pattern
	DeletePattern(ctx context.Context, pattern string) error

	// Close closes the cache connection
	Close() error
}
