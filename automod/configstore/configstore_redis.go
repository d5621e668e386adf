package configstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var redisConfigPrefix string = "warden/tenant-config/"

type RedisConfigStore struct {
	Client *redis.Client
}

var _ ConfigStore = (*RedisConfigStore)(nil)

func NewRedisConfigStore(redisURL string) (*RedisConfigStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return NewRedisConfigStoreFromClient(rdb), nil
}

func NewRedisConfigStoreFromClient(rdb *redis.Client) *RedisConfigStore {
	return &RedisConfigStore{
		Client: rdb,
	}
}

func (s *RedisConfigStore) Load(ctx context.Context, tenantID string) ([]byte, error) {
	raw, err := s.Client.Get(ctx, redisConfigPrefix+tenantID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return raw, nil
}

// no expiration: tenant config is the authoritative copy until replaced
func (s *RedisConfigStore) Save(ctx context.Context, tenantID string, raw []byte) error {
	return s.Client.Set(ctx, redisConfigPrefix+tenantID, raw, 0).Err()
}

func (s *RedisConfigStore) Delete(ctx context.Context, tenantID string) error {
	return s.Client.Del(ctx, redisConfigPrefix+tenantID).Err()
}
