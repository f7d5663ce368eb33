package application

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-auth-service/internal/domain/domainerr"
	"github.com/oksasatya/go-user-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-user-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-user-auth-service/pkg/helpers"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// UserService applies the profile and role rules. Every mutation re-reads the
// target inside its unit of work so the version check runs against fresh state.
type UserService struct {
	Begin  BeginFunc
	Hasher entity.PasswordHasher
	Events EventPublisher
	Logger logrus.FieldLogger
}

func NewUserService(begin BeginFunc, hasher entity.PasswordHasher, events EventPublisher, logger logrus.FieldLogger) *UserService {
	return &UserService{Begin: begin, Hasher: hasher, Events: events, Logger: logger}
}

func (s *UserService) publishAfterCommit(uow UnitOfWork, t UserEventType, u *entity.User) {
	if s.Events == nil {
		return
	}
	ev := NewUserEvent(t, u)
	uow.AddPostCommitHook(func(ctx context.Context) error {
		if err := s.Events.PublishUserEvent(ctx, ev); err != nil {
			helpers.LogError(s.Logger, "publish user event failed", err, logrus.Fields{"user_id": ev.UserID, "type": ev.Type})
			return err
		}
		return nil
	})
}

func requireAdmin(caller *entity.User) error {
	if caller == nil || !caller.IsAdmin() {
		return domainerr.NotAllowed("for admins only")
	}
	return nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*entity.User, error) {
	var out *entity.User
	err := inUnitOfWork(ctx, s.Begin, func(uow UnitOfWork) error {
		u, err := uow.Users().GetByID(ctx, id)
		out = u
		return err
	})
	return out, err
}

func normalizeListQuery(q repository.ListQuery) repository.ListQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Mode == "" {
		q.Mode = repository.FilterAnd
	}
	return q
}

func (s *UserService) List(ctx context.Context, q repository.ListQuery) ([]*entity.User, error) {
	q = normalizeListQuery(q)
	if q.Mode != repository.FilterAnd && q.Mode != repository.FilterOr {
		return nil, domainerr.Value("filter mode must be 'and' or 'or'")
	}
	var out []*entity.User
	err := inUnitOfWork(ctx, s.Begin, func(uow UnitOfWork) error {
		users, err := uow.Users().List(ctx, q)
		out = users
		return err
	})
	return out, err
}

func (s *UserService) create(ctx context.Context, username, password string, role entity.Role) (*entity.User, error) {
	u, err := entity.NewUser(ctx, username, password, role, s.Hasher)
	if err != nil {
		return nil, err
	}
	var out *entity.User
	err = inUnitOfWork(ctx, s.Begin, func(uow UnitOfWork) error {
		created, err := uow.Users().Create(ctx, u)
		if err != nil {
			return err
		}
		s.publishAfterCommit(uow, UserCreated, created)
		out = created
		return nil
	})
	return out, err
}

// Signup creates an active user with the user role, whatever was asked for.
func (s *UserService) Signup(ctx context.Context, username, password string) (*entity.User, error) {
	return s.create(ctx, username, password, entity.RoleUser)
}

func (s *UserService) AdminCreate(ctx context.Context, caller *entity.User, in CreateUserInput) (*entity.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	role := entity.RoleUser
	if in.Role != "" {
		r, err := entity.ParseRole(in.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}
	return s.create(ctx, in.Username, in.Password, role)
}

func (s *UserService) update(ctx context.Context, id int64, apply func(u *entity.User) error) (*entity.User, error) {
	var out *entity.User
	err := inUnitOfWork(ctx, s.Begin, func(uow UnitOfWork) error {
		u, err := uow.Users().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(u); err != nil {
			return err
		}
		updated, err := uow.Users().Update(ctx, u)
		if err != nil {
			return err
		}
		s.publishAfterCommit(uow, UserUpdated, updated)
		out = updated
		return nil
	})
	return out, err
}

// Update is the self-service edit. Changing the password needs both the old
// and the new one.
func (s *UserService) Update(ctx context.Context, caller *entity.User, in UpdateUserInput) (*entity.User, error) {
	if (in.OldPassword == nil) != (in.NewPassword == nil) {
		return nil, domainerr.Value("both password fields must be provided")
	}
	return s.update(ctx, caller.ID, func(u *entity.User) error {
		if in.Username != nil {
			if err := u.Rename(*in.Username); err != nil {
				return err
			}
		}
		if in.OldPassword != nil {
			return u.ChangePassword(ctx, *in.OldPassword, *in.NewPassword, s.Hasher)
		}
		return nil
	})
}

// AdminUpdate edits any user. Admins editing themselves may not change their
// own role or deactivate themselves.
func (s *UserService) AdminUpdate(ctx context.Context, caller *entity.User, targetID int64, in AdminUpdateUserInput) (*entity.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	self := caller.ID == targetID
	return s.update(ctx, targetID, func(u *entity.User) error {
		if self {
			if in.Role != nil && *in.Role != string(u.Role) {
				return domainerr.NotAllowed("Admins are not allowed to change their own role.")
			}
			if in.Status != nil && *in.Status != string(entity.StatusActive) {
				return domainerr.NotAllowed("Admins cannot deactivate their own account")
			}
		}
		if in.Username != nil {
			if err := u.Rename(*in.Username); err != nil {
				return err
			}
		}
		if in.NewPassword != nil {
			if err := u.ForceChangePassword(ctx, *in.NewPassword, s.Hasher); err != nil {
				return err
			}
		}
		if in.Role != nil {
			if err := u.SetRole(*in.Role); err != nil {
				return err
			}
		}
		if in.Status != nil {
			if err := u.SetStatus(*in.Status); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *UserService) delete(ctx context.Context, id int64) error {
	return inUnitOfWork(ctx, s.Begin, func(uow UnitOfWork) error {
		u, err := uow.Users().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := uow.Users().Delete(ctx, u); err != nil {
			return err
		}
		s.publishAfterCommit(uow, UserDeleted, u)
		return nil
	})
}

// Delete removes the caller's own account.
func (s *UserService) Delete(ctx context.Context, caller *entity.User) error {
	return s.delete(ctx, caller.ID)
}

// AdminDelete removes another user. An admin cannot delete themselves
// through this path.
func (s *UserService) AdminDelete(ctx context.Context, caller *entity.User, targetID int64) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if caller.ID == targetID {
		return domainerr.NotAllowed("Admins cannot delete their own accounts")
	}
	return s.delete(ctx, targetID)
}

// EnsureAdminExists creates the bootstrap admin unless an admin is already
// stored. It reports whether a user was created.
func (s *UserService) EnsureAdminExists(ctx context.Context, username, password string) (bool, error) {
	var created bool
	err := inUnitOfWork(ctx, s.Begin, func(uow UnitOfWork) error {
		ok, err := uow.Users().EnsureAdminExists(ctx, username, password, s.Hasher)
		created = ok
		return err
	})
	return created, err
}
