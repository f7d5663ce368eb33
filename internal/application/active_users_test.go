package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-user-auth-service/internal/infrastructure/redisstore"
)

func TestActiveUsersWindows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewActiveUsersService(redisstore.NewActiveUsersStore(env.rdb))

	now := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return now.Add(-3 * time.Hour) }
	require.NoError(t, svc.RegisterActivity(ctx, 1))
	svc.now = func() time.Time { return now.Add(-48 * time.Hour) }
	require.NoError(t, svc.RegisterActivity(ctx, 2))
	svc.now = func() time.Time { return now }
	require.NoError(t, svc.RegisterActivity(ctx, 3))

	n, err := svc.CountActive(ctx, time.Hour, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = svc.CountActive(ctx, 72*time.Hour, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = svc.CountActive(ctx, 24*time.Hour, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// the cleanup dropped user 2 for every window
	n, err = svc.CountActive(ctx, 72*time.Hour, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
