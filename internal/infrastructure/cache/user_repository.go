// Package cache decorates the user store with a Redis cache-aside layer.
//
// Reads go cache first and fall back to the store; a corrupt or unreadable
// entry counts as a miss. Writes go to the store and queue cache priming and
// invalidation on the enclosing unit of work, so Redis only ever sees
// committed state. Without a unit of work the store write is already durable
// and the cache work runs right away.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-auth-service/internal/domain/domainerr"
	"github.com/oksasatya/go-user-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-user-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-user-auth-service/internal/metrics"
	"github.com/oksasatya/go-user-auth-service/pkg/helpers"
)

const (
	DefaultTTL = 300 * time.Second

	listPattern = "users:list:*"
)

func userKey(id int64) string { return fmt.Sprintf("user:%d", id) }

func usernameKey(name string) string { return "user:username:" + name }

// listKey hashes the full query so every filter combination gets its own entry.
func listKey(q repository.ListQuery) string {
	b, _ := json.Marshal(q)
	sum := sha256.Sum256(b)
	return "users:list:" + hex.EncodeToString(sum[:])
}

type cachedUser struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Role         string `json:"role"`
	Status       string `json:"status"`
	Version      int    `json:"version"`
}

func toCached(u *entity.User) cachedUser {
	return cachedUser{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		Version:      u.Version,
	}
}

// toEntity rejects entries that decode but are not a valid user.
func (c cachedUser) toEntity() (*entity.User, error) {
	role, err := entity.ParseRole(c.Role)
	if err != nil {
		return nil, err
	}
	status, err := entity.ParseStatus(c.Status)
	if err != nil {
		return nil, err
	}
	if c.ID == 0 || c.Username == "" {
		return nil, fmt.Errorf("incomplete cache entry")
	}
	return &entity.User{
		ID:           c.ID,
		Username:     c.Username,
		PasswordHash: c.PasswordHash,
		Role:         role,
		Status:       status,
		Version:      c.Version,
	}, nil
}

type UserRepository struct {
	inner  repository.UserRepository
	rdb    redis.Cmdable
	hooks  repository.HookRegistrar
	ttl    time.Duration
	logger logrus.FieldLogger
}

// NewUserRepository wraps inner. hooks may be nil when inner is not bound
// to a transaction.
func NewUserRepository(inner repository.UserRepository, rdb redis.Cmdable, hooks repository.HookRegistrar, ttl time.Duration, logger logrus.FieldLogger) *UserRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = helpers.NewNopLogger()
	}
	return &UserRepository{inner: inner, rdb: rdb, hooks: hooks, ttl: ttl, logger: logger}
}

func (r *UserRepository) afterCommit(hook repository.PostCommitHook) {
	if r.hooks != nil {
		r.hooks.AddPostCommitHook(hook)
		return
	}
	if err := hook(context.Background()); err != nil {
		r.logger.WithError(err).Warn("cache update failed")
	}
}

func (r *UserRepository) readUser(ctx context.Context, key string) *entity.User {
	var c cachedUser
	found, err := helpers.RedisGetJSON(ctx, r.rdb, key, &c)
	if !found && err == nil {
		metrics.UserCacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil
	}
	if !found {
		metrics.UserCacheLookupsTotal.WithLabelValues("error").Inc()
		r.logger.WithError(err).WithField("key", key).Debug("user cache read failed, falling back to store")
		return nil
	}
	if err == nil {
		var u *entity.User
		if u, err = c.toEntity(); err == nil {
			metrics.UserCacheLookupsTotal.WithLabelValues("hit").Inc()
			return u
		}
	}
	metrics.UserCacheLookupsTotal.WithLabelValues("corrupt").Inc()
	r.logger.WithError(err).WithField("key", key).Debug("corrupt user cache entry")
	return nil
}

func (r *UserRepository) prime(ctx context.Context, u *entity.User) error {
	c := toCached(u)
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := helpers.RedisSetJSON(ctx, pipe, userKey(u.ID), c, r.ttl); err != nil {
			return err
		}
		return helpers.RedisSetJSON(ctx, pipe, usernameKey(u.Username), c, r.ttl)
	})
	return err
}

func (r *UserRepository) primeQuietly(ctx context.Context, u *entity.User) {
	if err := r.prime(ctx, u); err != nil {
		r.logger.WithError(err).WithField("user_id", u.ID).Debug("user cache prime failed")
	}
}

func (r *UserRepository) evict(ctx context.Context, keys ...string) {
	if err := helpers.RedisDel(ctx, r.rdb, keys...); err != nil {
		r.logger.WithError(err).WithField("keys", keys).Debug("user cache eviction failed")
	}
}

func (r *UserRepository) invalidateLists(ctx context.Context) error {
	_, err := helpers.RedisDeleteByPattern(ctx, r.rdb, listPattern)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if u := r.readUser(ctx, userKey(id)); u != nil {
		return u, nil
	}
	u, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.primeQuietly(ctx, u)
	return u, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	if name, err := entity.NormalizeUsername(username); err == nil {
		if u := r.readUser(ctx, usernameKey(name)); u != nil {
			return u, nil
		}
	}
	u, err := r.inner.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	r.primeQuietly(ctx, u)
	return u, nil
}

func (r *UserRepository) List(ctx context.Context, q repository.ListQuery) ([]*entity.User, error) {
	key := listKey(q)
	var cached []cachedUser
	found, err := helpers.RedisGetJSON(ctx, r.rdb, key, &cached)
	if found && err == nil {
		if users, ok := r.fromCachedList(cached); ok {
			return users, nil
		}
	}
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Debug("user list cache read failed")
	}

	users, err := r.inner.List(ctx, q)
	if err != nil {
		return nil, err
	}
	entries := make([]cachedUser, 0, len(users))
	for _, u := range users {
		entries = append(entries, toCached(u))
	}
	if err := helpers.RedisSetJSON(ctx, r.rdb, key, entries, r.ttl); err != nil {
		r.logger.WithError(err).WithField("key", key).Debug("user list cache write failed")
	}
	return users, nil
}

func (r *UserRepository) fromCachedList(cached []cachedUser) ([]*entity.User, bool) {
	users := make([]*entity.User, 0, len(cached))
	for _, c := range cached {
		u, err := c.toEntity()
		if err != nil {
			r.logger.WithError(err).Debug("corrupt user list cache entry")
			return nil, false
		}
		users = append(users, u)
	}
	return users, true
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) (*entity.User, error) {
	created, err := r.inner.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	snapshot := *created
	r.afterCommit(func(ctx context.Context) error {
		if err := r.prime(ctx, &snapshot); err != nil {
			return err
		}
		return r.invalidateLists(ctx)
	})
	return created, nil
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) (*entity.User, error) {
	// the stored row still carries the old username
	before, err := r.inner.GetByID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	updated, err := r.inner.Update(ctx, u)
	if errors.Is(err, domainerr.ErrStaleData) {
		// the caller read an outdated copy, likely from here; drop it so a retry hits the store
		r.evict(ctx, userKey(u.ID), usernameKey(before.Username), usernameKey(u.Username))
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	oldName := before.Username
	snapshot := *updated
	r.afterCommit(func(ctx context.Context) error {
		if err := helpers.RedisDel(ctx, r.rdb, usernameKey(oldName)); err != nil {
			return err
		}
		if err := r.prime(ctx, &snapshot); err != nil {
			return err
		}
		return r.invalidateLists(ctx)
	})
	return updated, nil
}

func (r *UserRepository) Delete(ctx context.Context, u *entity.User) error {
	if err := r.inner.Delete(ctx, u); err != nil {
		return err
	}
	id, name := u.ID, u.Username
	r.afterCommit(func(ctx context.Context) error {
		if err := helpers.RedisDel(ctx, r.rdb, userKey(id), usernameKey(name)); err != nil {
			return err
		}
		return r.invalidateLists(ctx)
	})
	return nil
}

func (r *UserRepository) EnsureAdminExists(ctx context.Context, username, password string, hasher entity.PasswordHasher) (bool, error) {
	created, err := r.inner.EnsureAdminExists(ctx, username, password, hasher)
	if err != nil || !created {
		return created, err
	}
	r.afterCommit(r.invalidateLists)
	return true, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
