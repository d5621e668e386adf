package countstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisCountPrefix    = "warden/count/"
	redisDistinctPrefix = "warden/distinct/"
)

// Counters in redis. Hour and day buckets expire on their own; distinct counts use HyperLogLog, so they are estimates.
type RedisCountStore struct {
	Client *redis.Client
	// defaults to time.Now
	Clock func() time.Time
}

var _ CountStore = (*RedisCountStore)(nil)

func NewRedisCountStore(redisURL string) (*RedisCountStore, error) {
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
	return NewRedisCountStoreFromClient(rdb), nil
}

// Wraps an existing client, for sharing one connection pool between stores.
func NewRedisCountStoreFromClient(rdb *redis.Client) *RedisCountStore {
	return &RedisCountStore{
		Client: rdb,
		Clock:  time.Now,
	}
}

func (s *RedisCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	k, err := periodBucket(name, val, period, s.Clock())
	if err != nil {
		return 0, err
	}
	c, err := s.Client.Get(ctx, redisCountPrefix+k).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return c, nil
}

func (s *RedisCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error) {
	k, err := periodBucket(name, bucket, period, s.Clock())
	if err != nil {
		return 0, err
	}
	c, err := s.Client.PFCount(ctx, redisDistinctPrefix+k).Result()
	if err != nil {
		return 0, err
	}
	return int(c), nil
}

// Every counter in the batch, across all periods, goes out in a single pipeline.
func (s *RedisCountStore) IncrementMany(ctx context.Context, counters []Counter) error {
	if len(counters) == 0 {
		return nil
	}
	now := s.Clock()
	multi := s.Client.Pipeline()
	for _, c := range counters {
		for _, p := range periods {
			k, err := periodBucket(c.Name, c.Val, p.name, now)
			if err != nil {
				return err
			}
			var key string
			if c.Distinct() {
				key = redisDistinctPrefix + k
				multi.PFAdd(ctx, key, c.Member)
			} else {
				key = redisCountPrefix + k
				multi.Incr(ctx, key)
			}
			if p.keep > 0 {
				multi.Expire(ctx, key, p.keep)
			}
		}
	}
	_, err := multi.Exec(ctx)
	return err
}
