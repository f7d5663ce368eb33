package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunPostCommitHooksKeepsGoing(t *testing.T) {
	var ran []int
	failed := map[int]string{}
	hooks := []PostCommitHook{
		func(context.Context) error { ran = append(ran, 0); return errors.New("redis down") },
		func(context.Context) error { ran = append(ran, 1); panic("bad hook") },
		func(context.Context) error { ran = append(ran, 2); return nil },
	}

	RunPostCommitHooks(context.Background(), hooks, func(i int, err error) { failed[i] = err.Error() })

	assert.Equal(t, []int{0, 1, 2}, ran)
	assert.Equal(t, map[int]string{0: "redis down", 1: "hook panic: bad hook"}, failed)
}

func TestRunPostCommitHooksIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "req-1"))
	cancel()

	var seen error
	var value any
	RunPostCommitHooks(ctx, []PostCommitHook{func(ctx context.Context) error {
		seen = ctx.Err()
		value = ctx.Value(ctxKey{})
		return nil
	}}, nil)

	assert.NoError(t, seen)
	assert.Equal(t, "req-1", value)
}

type ctxKey struct{}
