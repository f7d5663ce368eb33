package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/go-user-auth-service/internal/domain/domainerr"
	"github.com/oksasatya/go-user-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-user-auth-service/internal/domain/repository"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id, username, password_hash, role, status, version`

// UserStore is the relational user repository.
type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	var role, status string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &status, &u.Version); err != nil {
		return nil, err
	}
	u.Role = entity.Role(role)
	u.Status = entity.Status(status)
	return u, nil
}

func (s *UserStore) getOne(ctx context.Context, where string, arg any) (*entity.User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerr.ErrUserDoesNotExist
		}
		return nil, err
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return s.getOne(ctx, `id = $1`, id)
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return s.getOne(ctx, `username = $1`, strings.ToLower(username))
}

// buildListQuery renders the filters as one AND or OR group.
func buildListQuery(q repository.ListQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	f := q.Filters
	if f.ID != nil {
		add("id", *f.ID)
	}
	if f.Username != nil {
		add("username", strings.ToLower(*f.Username))
	}
	if f.Role != nil {
		add("role", string(*f.Role))
	}
	if f.Status != nil {
		add("status", string(*f.Status))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + userColumns + ` FROM users`)
	if len(conds) > 0 {
		joiner := " AND "
		if q.Mode == repository.FilterOr {
			joiner = " OR "
		}
		sb.WriteString(" WHERE " + strings.Join(conds, joiner))
	}
	sb.WriteString(" ORDER BY id")
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}
	return sb.String(), args
}

func (s *UserStore) List(ctx context.Context, q repository.ListQuery) ([]*entity.User, error) {
	sql, args := buildListQuery(q)
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*entity.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create inserts u and returns the stored row. An explicit ID is honoured so
// a duplicate id surfaces as ErrUserAlreadyExists like a duplicate username.
func (s *UserStore) Create(ctx context.Context, u *entity.User) (*entity.User, error) {
	var row pgx.Row
	if u.ID != 0 {
		row = s.db.QueryRow(ctx, `
			INSERT INTO users (id, username, password_hash, role, status, version)
			VALUES ($1, $2, $3, $4, $5, 0)
			RETURNING `+userColumns,
			u.ID, u.Username, u.PasswordHash, string(u.Role), string(u.Status))
	} else {
		row = s.db.QueryRow(ctx, `
			INSERT INTO users (username, password_hash, role, status, version)
			VALUES ($1, $2, $3, $4, 0)
			RETURNING `+userColumns,
			u.Username, u.PasswordHash, string(u.Role), string(u.Status))
	}
	created, err := scanUser(row)
	if err != nil {
		return nil, translateError(err)
	}
	return created, nil
}

// Update writes u only if the stored version still equals u.Version and
// bumps it in the same statement.
func (s *UserStore) Update(ctx context.Context, u *entity.User) (*entity.User, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE users
		SET username = $1, password_hash = $2, role = $3, status = $4,
		    version = version + 1, updated_at = now()
		WHERE id = $5 AND version = $6
		RETURNING `+userColumns,
		u.Username, u.PasswordHash, string(u.Role), string(u.Status), u.ID, u.Version)
	updated, err := scanUser(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, translateError(err)
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, u.ID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domainerr.ErrUserDoesNotExist
	}
	return nil, fmt.Errorf("%w: user %d is no longer at version %d", domainerr.ErrStaleData, u.ID, u.Version)
}

func (s *UserStore) Delete(ctx context.Context, u *entity.User) error {
	res, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, u.ID)
	if err != nil {
		return translateError(err)
	}
	if res.RowsAffected() == 0 {
		return domainerr.ErrUserDoesNotExist
	}
	return nil
}

// EnsureAdminExists creates the default admin when no admin-role user exists.
// It reports whether a user was created.
func (s *UserStore) EnsureAdminExists(ctx context.Context, username, password string, hasher entity.PasswordHasher) (bool, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE role = $1)`, string(entity.RoleAdmin)).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	admin, err := entity.NewUser(ctx, username, password, entity.RoleAdmin, hasher)
	if err != nil {
		return false, err
	}
	if _, err := s.Create(ctx, admin); err != nil {
		return false, err
	}
	return true, nil
}

var _ repository.UserRepository = (*UserStore)(nil)
