package application

import (
	"context"

	"github.com/oksasatya/go-user-auth-service/internal/domain/repository"
)

// UnitOfWork is one transaction plus the side effects deferred to its commit.
type UnitOfWork interface {
	Users() repository.UserRepository
	AddPostCommitHook(hook repository.PostCommitHook)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// BeginFunc opens a new unit of work.
type BeginFunc func(ctx context.Context) (UnitOfWork, error)

// inUnitOfWork commits when fn succeeds and rolls back otherwise, including
// when fn panics.
func inUnitOfWork(ctx context.Context, begin BeginFunc, fn func(uow UnitOfWork) error) error {
	uow, err := begin(ctx)
	if err != nil {
		return err
	}
	committing := false
	defer func() {
		if !committing {
			_ = uow.Rollback(ctx)
		}
	}()
	if err := fn(uow); err != nil {
		return err
	}
	committing = true
	return uow.Commit(ctx)
}
