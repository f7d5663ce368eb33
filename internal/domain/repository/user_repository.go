package repository

import (
	"context"

	"github.com/oksasatya/go-user-auth-service/internal/domain/entity"
)

// FilterMode combines list predicates.
type FilterMode string

const (
	FilterAnd FilterMode = "and"
	FilterOr  FilterMode = "or"
)

// UserFilters are optional equality predicates. Nil fields are ignored.
type UserFilters struct {
	ID       *int64         `json:"id,omitempty"`
	Username *string        `json:"username,omitempty"`
	Role     *entity.Role   `json:"role,omitempty"`
	Status   *entity.Status `json:"status,omitempty"`
}

func (f UserFilters) Empty() bool {
	return f.ID == nil && f.Username == nil && f.Role == nil && f.Status == nil
}

type ListQuery struct {
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	Filters UserFilters `json:"filters"`
	Mode    FilterMode  `json:"mode"`
}

// UserRepository defines the persistence operations on users.
// Lookups return domainerr.ErrUserDoesNotExist when nothing matches.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	List(ctx context.Context, q ListQuery) ([]*entity.User, error)
	Create(ctx context.Context, u *entity.User) (*entity.User, error)
	// Update fails with domainerr.ErrStaleData when u.Version no longer
	// matches the stored version.
	Update(ctx context.Context, u *entity.User) (*entity.User, error)
	Delete(ctx context.Context, u *entity.User) error
	EnsureAdminExists(ctx context.Context, username, password string, hasher entity.PasswordHasher) (bool, error)
}

// PostCommitHook runs after the enclosing transaction commits.
type PostCommitHook func(ctx context.Context) error

// HookRegistrar defers side effects until commit.
type HookRegistrar interface {
	AddPostCommitHook(hook PostCommitHook)
}
