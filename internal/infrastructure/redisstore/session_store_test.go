package redisstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-user-auth-service/internal/domain/domainerr"
	"github.com/oksasatya/go-user-auth-service/internal/domain/entity"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testSession(refresh string) *entity.Session {
	return &entity.Session{ID: "sid-1", UserID: 7, Roles: []string{"user"}, RefreshToken: refresh}
}

func TestSessionCreateGetDelete(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSessionStore(rdb)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSession("r1"), time.Minute))
	assert.True(t, mr.Exists("session:sid-1"))

	got, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, []string{"user"}, got.Roles)
	assert.Equal(t, "r1", got.RefreshToken)

	require.NoError(t, store.Delete(ctx, "sid-1"))
	require.NoError(t, store.Delete(ctx, "sid-1"))

	got, err = store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionExpiryAndRefresh(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSessionStore(rdb)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSession("r1"), time.Minute))
	mr.FastForward(50 * time.Second)
	require.NoError(t, store.Refresh(ctx, "sid-1", time.Minute))
	mr.FastForward(50 * time.Second)

	got, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r1", got.RefreshToken)

	mr.FastForward(time.Minute)
	got, err = store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// refreshing a gone session is a no-op
	require.NoError(t, store.Refresh(ctx, "sid-1", time.Minute))
}

func TestSessionCorruptReadsAsAbsent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSessionStore(rdb)
	require.NoError(t, mr.Set("session:sid-1", "{not json"))

	got, err := store.Get(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionRotate(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSessionStore(rdb)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, testSession("r1"), time.Minute))

	require.NoError(t, store.Rotate(ctx, testSession("r2"), "r1", time.Hour))
	got, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RefreshToken)
	assert.Greater(t, mr.TTL("session:sid-1"), time.Minute)

	err = store.Rotate(ctx, testSession("r3"), "r1", time.Hour)
	assert.ErrorIs(t, err, domainerr.ErrTokenExpired)

	require.NoError(t, store.Rotate(ctx, testSession("r3"), "r2", time.Hour))

	require.NoError(t, store.Delete(ctx, "sid-1"))
	err = store.Rotate(ctx, testSession("r4"), "r3", time.Hour)
	assert.ErrorIs(t, err, domainerr.ErrLoggedOut)
}

func TestSessionRotateCorrupt(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSessionStore(rdb)
	require.NoError(t, mr.Set("session:sid-1", "garbage"))

	err := store.Rotate(context.Background(), testSession("r2"), "r1", time.Hour)
	assert.ErrorIs(t, err, domainerr.ErrLoggedOut)
}

func TestSessionRotateRace(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewSessionStore(rdb)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, testSession("r1"), time.Minute))

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := testSession("next-" + string(rune('a'+i)))
			results <- store.Rotate(ctx, next, "r1", time.Minute)
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, domainerr.ErrTokenExpired)
	}
	assert.Equal(t, 1, wins)
}
