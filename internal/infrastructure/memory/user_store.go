// Package memory holds in-process implementations of the user store and
// unit of work. Tests and local tooling use them in place of Postgres.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/oksasatya/go-user-auth-service/internal/domain/domainerr"
	"github.com/oksasatya/go-user-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-user-auth-service/internal/domain/repository"
)

// UserStore mirrors the Postgres store semantics: unique usernames and ids,
// version compare-and-swap on update, AND/OR list filters ordered by id.
type UserStore struct {
	mu     sync.Mutex
	users  map[int64]entity.User
	nextID int64
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[int64]entity.User), nextID: 1}
}

func (s *UserStore) GetByID(_ context.Context, id int64) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domainerr.ErrUserDoesNotExist
	}
	return &u, nil
}

func (s *UserStore) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byUsername(strings.ToLower(username)); ok {
		return &u, nil
	}
	return nil, domainerr.ErrUserDoesNotExist
}

func (s *UserStore) byUsername(name string) (entity.User, bool) {
	for _, u := range s.users {
		if u.Username == name {
			return u, true
		}
	}
	return entity.User{}, false
}

func matches(u entity.User, f repository.UserFilters, mode repository.FilterMode) bool {
	var results []bool
	if f.ID != nil {
		results = append(results, u.ID == *f.ID)
	}
	if f.Username != nil {
		results = append(results, u.Username == strings.ToLower(*f.Username))
	}
	if f.Role != nil {
		results = append(results, u.Role == *f.Role)
	}
	if f.Status != nil {
		results = append(results, u.Status == *f.Status)
	}
	if len(results) == 0 {
		return true
	}
	for _, r := range results {
		if mode == repository.FilterOr && r {
			return true
		}
		if mode != repository.FilterOr && !r {
			return false
		}
	}
	return mode != repository.FilterOr
}

func (s *UserStore) List(_ context.Context, q repository.ListQuery) ([]*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.users))
	for id, u := range s.users {
		if matches(u, q.Filters, q.Mode) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if q.Offset > 0 {
		if q.Offset >= len(ids) {
			ids = nil
		} else {
			ids = ids[q.Offset:]
		}
	}
	if q.Limit > 0 && len(ids) > q.Limit {
		ids = ids[:q.Limit]
	}
	out := make([]*entity.User, 0, len(ids))
	for _, id := range ids {
		u := s.users[id]
		out = append(out, &u)
	}
	return out, nil
}

func (s *UserStore) Create(_ context.Context, u *entity.User) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername(u.Username); taken {
		return nil, domainerr.ErrUserAlreadyExists
	}
	stored := *u
	if stored.ID == 0 {
		stored.ID = s.nextID
	} else if _, taken := s.users[stored.ID]; taken {
		return nil, domainerr.ErrUserAlreadyExists
	}
	if stored.ID >= s.nextID {
		s.nextID = stored.ID + 1
	}
	stored.Version = 0
	s.users[stored.ID] = stored
	return &stored, nil
}

func (s *UserStore) Update(_ context.Context, u *entity.User) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.users[u.ID]
	if !ok {
		return nil, domainerr.ErrUserDoesNotExist
	}
	if cur.Version != u.Version {
		return nil, domainerr.ErrStaleData
	}
	if other, taken := s.byUsername(u.Username); taken && other.ID != u.ID {
		return nil, domainerr.ErrUserAlreadyExists
	}
	stored := *u
	stored.Version = cur.Version + 1
	s.users[stored.ID] = stored
	return &stored, nil
}

func (s *UserStore) Delete(_ context.Context, u *entity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return domainerr.ErrUserDoesNotExist
	}
	delete(s.users, u.ID)
	return nil
}

func (s *UserStore) EnsureAdminExists(ctx context.Context, username, password string, hasher entity.PasswordHasher) (bool, error) {
	s.mu.Lock()
	for _, u := range s.users {
		if u.Role == entity.RoleAdmin {
			s.mu.Unlock()
			return false, nil
		}
	}
	s.mu.Unlock()

	admin, err := entity.NewUser(ctx, username, password, entity.RoleAdmin, hasher)
	if err != nil {
		return false, err
	}
	if _, err := s.Create(ctx, admin); err != nil {
		return false, err
	}
	return true, nil
}

func (s *UserStore) snapshot() (map[int64]entity.User, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[int64]entity.User, len(s.users))
	for k, v := range s.users {
		cp[k] = v
	}
	return cp, s.nextID
}

func (s *UserStore) restore(users map[int64]entity.User, nextID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
	s.nextID = nextID
}

var _ repository.UserRepository = (*UserStore)(nil)
