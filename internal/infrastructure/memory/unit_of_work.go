package memory

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-user-auth-service/internal/metrics"
)

// RepositoryBuilder wraps the store for one unit of work, e.g. with a cache.
type RepositoryBuilder func(store repository.UserRepository, hooks repository.HookRegistrar) repository.UserRepository

// UnitOfWork snapshots the store at Begin and restores it on Rollback.
// Units of work on the same store must not overlap.
type UnitOfWork struct {
	users   repository.UserRepository
	hooks   []repository.PostCommitHook
	logger  logrus.FieldLogger
	restore func()
	done    bool
}

func (u *UnitOfWork) Users() repository.UserRepository { return u.users }

func (u *UnitOfWork) AddPostCommitHook(hook repository.PostCommitHook) {
	u.hooks = append(u.hooks, hook)
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	u.done = true
	u.RunHooks(ctx)
	return nil
}

func (u *UnitOfWork) Rollback(context.Context) error {
	u.hooks = nil
	if !u.done {
		u.restore()
		u.done = true
	}
	return nil
}

func (u *UnitOfWork) RunHooks(ctx context.Context) {
	hooks := u.hooks
	u.hooks = nil
	repository.RunPostCommitHooks(ctx, hooks, func(i int, err error) {
		metrics.PostCommitHookFailuresTotal.Inc()
		if u.logger != nil {
			u.logger.WithError(err).WithField("hook", i).Warn("post-commit hook failed")
		}
	})
}

type UnitOfWorkFactory struct {
	Store  *UserStore
	Build  RepositoryBuilder
	Logger logrus.FieldLogger
}

func (f *UnitOfWorkFactory) Begin(context.Context) (*UnitOfWork, error) {
	users, next := f.Store.snapshot()
	u := &UnitOfWork{
		logger:  f.Logger,
		restore: func() { f.Store.restore(users, next) },
	}
	if f.Build != nil {
		u.users = f.Build(f.Store, u)
	} else {
		u.users = f.Store
	}
	return u, nil
}

var _ repository.HookRegistrar = (*UnitOfWork)(nil)
