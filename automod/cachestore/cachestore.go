package cachestore

import (
	"context"
)

// Values are encoded by the store: JSON in memory, msgpack in redis.
type CacheStore interface {
	// Decodes a cached value into dst, which must be a pointer. Reports false (and no error) on a miss.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, val any) error
	Purge(ctx context.Context, key string) error
}
