package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedPerms struct {
	CanMute      bool `json:"canMute"`
	EnforcerRank int  `json:"enforcerRank"`
}

func testCacheStore(t *testing.T, cs CacheStore) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	var got cachedPerms
	ok, err := cs.Get(ctx, "perms/t1/u1", &got)
	require.NoError(err)
	assert.False(ok)

	require.NoError(cs.Set(ctx, "perms/t1/u1", cachedPerms{CanMute: true, EnforcerRank: 3}))
	ok, err = cs.Get(ctx, "perms/t1/u1", &got)
	require.NoError(err)
	assert.True(ok)
	assert.Equal(cachedPerms{CanMute: true, EnforcerRank: 3}, got)

	// a cached zero value is still a hit
	require.NoError(cs.Set(ctx, "perms/t1/u2", cachedPerms{}))
	ok, err = cs.Get(ctx, "perms/t1/u2", &got)
	require.NoError(err)
	assert.True(ok)
	assert.Equal(cachedPerms{}, got)

	require.NoError(cs.Purge(ctx, "perms/t1/u1"))
	ok, err = cs.Get(ctx, "perms/t1/u1", &got)
	require.NoError(err)
	assert.False(ok)

	// purging a missing key is fine
	assert.NoError(cs.Purge(ctx, "perms/nope"))
}

func TestMemCacheStore(t *testing.T) {
	testCacheStore(t, NewMemCacheStore(100, time.Minute))
}

func TestMemCacheStoreCopiesValues(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cs := NewMemCacheStore(100, time.Minute)

	roles := []string{"mod"}
	assert.NoError(cs.Set(ctx, "roles", roles))
	roles[0] = "admin"

	var got []string
	ok, err := cs.Get(ctx, "roles", &got)
	assert.NoError(err)
	assert.True(ok)
	assert.Equal([]string{"mod"}, got)
}

func TestMemCacheStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cs := NewMemCacheStore(100, 20*time.Millisecond)

	assert.NoError(cs.Set(ctx, "perms/k", cachedPerms{CanMute: true}))
	assert.Eventually(func() bool {
		var got cachedPerms
		ok, _ := cs.Get(ctx, "perms/k", &got)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestRedisCacheStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cs, err := NewRedisCacheStore("redis://"+mr.Addr(), time.Minute)
	require.NoError(t, err)
	testCacheStore(t, cs)
}

func TestRedisCacheStoreSharedAcrossProcesses(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	// no local layer, so a purge in one store is seen by the other right away
	a := NewRedisCacheStoreFromClient(rdb, time.Minute, 0)
	b := NewRedisCacheStoreFromClient(rdb, time.Minute, 0)

	assert.NoError(a.Set(ctx, "perms/t1/u1", cachedPerms{EnforcerRank: 2}))
	var got cachedPerms
	ok, err := b.Get(ctx, "perms/t1/u1", &got)
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(2, got.EnforcerRank)

	assert.NoError(a.Purge(ctx, "perms/t1/u1"))
	ok, err = b.Get(ctx, "perms/t1/u1", &got)
	assert.NoError(err)
	assert.False(ok)
	assert.False(mr.Exists(redisCachePrefix + "perms/t1/u1"))
}
