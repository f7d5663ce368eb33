package repository

import (
	"context"
	"fmt"
)

// RunPostCommitHooks runs hooks in order on a context that outlives the
// request. A failing or panicking hook is reported to onError and does not
// stop the rest.
func RunPostCommitHooks(ctx context.Context, hooks []PostCommitHook, onError func(i int, err error)) {
	hctx := context.WithoutCancel(ctx)
	for i, hook := range hooks {
		if err := runHook(hctx, hook); err != nil && onError != nil {
			onError(i, err)
		}
	}
}

func runHook(ctx context.Context, hook PostCommitHook) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panic: %v", r)
		}
	}()
	return hook(ctx)
}
