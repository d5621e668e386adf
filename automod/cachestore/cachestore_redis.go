package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

const redisCachePrefix = "warden/cache/"

type RedisCacheStore struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(redisURL string, ttl time.Duration) (*RedisCacheStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.Background()).Result()
	if err != nil {
		return nil, err
	}
	return NewRedisCacheStoreFromClient(rdb, ttl, 10_000), nil
}

// Shared redis client, with a process-local TinyLFU of localSize entries in front of it (0 disables the local layer). With the local layer a purge is only immediately visible in this process; other processes see it after at most the TTL.
func NewRedisCacheStoreFromClient(rdb *redis.Client, ttl time.Duration, localSize int) *RedisCacheStore {
	opts := &cache.Options{
		Redis: rdb,
	}
	if localSize > 0 {
		opts.LocalCache = cache.NewTinyLFU(localSize, ttl)
	}
	return &RedisCacheStore{
		Data: cache.New(opts),
		TTL:  ttl,
	}
}

func (s *RedisCacheStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	err := s.Data.Get(ctx, redisCachePrefix+key, dst)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, key string, val any) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCachePrefix + key,
		Value: val,
		TTL:   s.TTL,
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, key string) error {
	err := s.Data.Delete(ctx, redisCachePrefix+key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
