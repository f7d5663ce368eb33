package helpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type sample struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func TestRedisJSON(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, RedisSetJSON(ctx, rdb, "k", sample{Name: "a", N: 1}, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	var got sample
	found, err := RedisGetJSON(ctx, rdb, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, sample{Name: "a", N: 1}, got)

	found, err = RedisGetJSON(ctx, rdb, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, mr.Set("corrupt", "{not json"))
	found, err = RedisGetJSON(ctx, rdb, "corrupt", &got)
	assert.True(t, found)
	assert.Error(t, err)
}

func TestRedisDeleteByPattern(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("users:list:%d", i), "x"))
	}
	require.NoError(t, mr.Set("user:1", "keep"))

	n, err := RedisDeleteByPattern(ctx, rdb, "users:list:*")
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	assert.True(t, mr.Exists("user:1"))
	assert.Len(t, mr.Keys(), 1)
}
