package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-user-auth-service/internal/metrics"
)

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RepositoryBuilder binds a user repository to one transaction.
type RepositoryBuilder func(db DBTX, hooks repository.HookRegistrar) repository.UserRepository

// UnitOfWork wraps one transaction and the side effects that must wait for
// it to commit. It is not safe for concurrent use; one request owns it.
type UnitOfWork struct {
	tx     pgx.Tx
	users  repository.UserRepository
	hooks  []repository.PostCommitHook
	logger logrus.FieldLogger
}

func NewUnitOfWork(tx pgx.Tx, build RepositoryBuilder, logger logrus.FieldLogger) *UnitOfWork {
	u := &UnitOfWork{tx: tx, logger: logger}
	if build == nil {
		u.users = NewUserStore(tx)
	} else {
		u.users = build(tx, u)
	}
	return u
}

func (u *UnitOfWork) Tx() pgx.Tx { return u.tx }

func (u *UnitOfWork) Users() repository.UserRepository { return u.users }

func (u *UnitOfWork) AddPostCommitHook(hook repository.PostCommitHook) {
	u.hooks = append(u.hooks, hook)
}

// Commit commits the transaction, then runs the post-commit hooks. Hook
// failures never fail the commit.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		u.hooks = nil
		return err
	}
	u.RunHooks(ctx)
	return nil
}

// Rollback discards pending hooks. Rolling back a finished transaction is a no-op.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	u.hooks = nil
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// RunHooks runs registered hooks in order and clears them. Hooks keep running
// if the request context is cancelled.
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

// UnitOfWorkFactory opens a UnitOfWork per business operation.
type UnitOfWorkFactory struct {
	db     TxBeginner
	build  RepositoryBuilder
	logger logrus.FieldLogger
}

func NewUnitOfWorkFactory(db TxBeginner, build RepositoryBuilder, logger logrus.FieldLogger) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{db: db, build: build, logger: logger}
}

func (f *UnitOfWorkFactory) Begin(ctx context.Context) (*UnitOfWork, error) {
	tx, err := f.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return NewUnitOfWork(tx, f.build, f.logger), nil
}

var _ repository.HookRegistrar = (*UnitOfWork)(nil)
