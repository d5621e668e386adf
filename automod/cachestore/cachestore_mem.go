package cachestore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Stores encoded values, so callers never share a value with the cache.
type MemCacheStore struct {
	Data *expirable.LRU[string, []byte]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{
		Data: expirable.NewLRU[string, []byte](capacity, nil, ttl),
	}
}

func (s *MemCacheStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok := s.Data.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *MemCacheStore) Set(ctx context.Context, key string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	s.Data.Add(key, raw)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, key string) error {
	s.Data.Remove(key)
	return nil
}
