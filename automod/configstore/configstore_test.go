package configstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreBasics(t *testing.T, cs ConfigStore) {
	assert := assert.New(t)
	ctx := context.Background()

	raw, err := cs.Load(ctx, "guild1")
	assert.NoError(err)
	assert.Nil(raw)

	assert.NoError(cs.Save(ctx, "guild1", []byte(`{"enabled":false}`)))
	raw, err = cs.Load(ctx, "guild1")
	assert.NoError(err)
	assert.Equal(`{"enabled":false}`, string(raw))

	// other tenants are unaffected
	raw, err = cs.Load(ctx, "guild2")
	assert.NoError(err)
	assert.Nil(raw)

	assert.NoError(cs.Save(ctx, "guild1", []byte(`{"enabled":true}`)))
	raw, err = cs.Load(ctx, "guild1")
	assert.NoError(err)
	assert.Equal(`{"enabled":true}`, string(raw))

	assert.NoError(cs.Delete(ctx, "guild1"))
	raw, err = cs.Load(ctx, "guild1")
	assert.NoError(err)
	assert.Nil(raw)
}

func TestMemConfigStoreBasics(t *testing.T) {
	testStoreBasics(t, NewMemConfigStore())
}

func TestMemConfigStoreCopiesValues(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemConfigStore()
	buf := []byte(`{"enabled":false}`)
	assert.NoError(cs.Save(ctx, "guild1", buf))
	buf[2] = 'X'

	raw, err := cs.Load(ctx, "guild1")
	assert.NoError(err)
	assert.Equal(`{"enabled":false}`, string(raw))
}

func TestRedisConfigStoreBasics(t *testing.T) {
	mr := miniredis.RunT(t)
	cs, err := NewRedisConfigStore("redis://" + mr.Addr())
	require.NoError(t, err)
	testStoreBasics(t, cs)
}
