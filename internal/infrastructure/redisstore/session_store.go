package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-user-auth-service/internal/domain/domainerr"
	"github.com/oksasatya/go-user-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-user-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-user-auth-service/pkg/helpers"
)

const (
	rotateMissing  int64 = 0
	rotateOK       int64 = 1
	rotateMismatch int64 = 2
	rotateCorrupt  int64 = 3
)

// Compare the stored refresh token and write the new payload in one step so
// two refreshes racing on the same token cannot both win.
var rotateRefreshLua = redis.NewScript(`
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
local ok, sess = pcall(cjson.decode, data)
if not ok or type(sess) ~= "table" then
  return 3
end
if sess["refresh_token"] ~= ARGV[1] then
  return 2
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// SessionStore keeps sessions as JSON under session:<id>.
type SessionStore struct {
	rdb redis.Cmdable
}

func NewSessionStore(rdb redis.Cmdable) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func sessionKey(id string) string { return "session:" + id }

// Create upserts the session; the last write wins.
func (s *SessionStore) Create(ctx context.Context, sess *entity.Session, ttl time.Duration) error {
	return helpers.RedisSetJSON(ctx, s.rdb, sessionKey(sess.ID), sess, ttl)
}

// Get returns (nil, nil) for a missing, expired or undecodable session.
func (s *SessionStore) Get(ctx context.Context, id string) (*entity.Session, error) {
	var sess entity.Session
	found, err := helpers.RedisGetJSON(ctx, s.rdb, sessionKey(id), &sess)
	if !found {
		return nil, err
	}
	if err != nil {
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return helpers.RedisDel(ctx, s.rdb, sessionKey(id))
}

// Refresh extends the TTL and leaves the payload untouched.
func (s *SessionStore) Refresh(ctx context.Context, id string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, sessionKey(id), ttl).Err()
}

func (s *SessionStore) Rotate(ctx context.Context, next *entity.Session, presented string, ttl time.Duration) error {
	payload, err := json.Marshal(next)
	if err != nil {
		return err
	}
	res, err := rotateRefreshLua.Run(ctx, s.rdb, []string{sessionKey(next.ID)}, presented, payload, ttl.Milliseconds()).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainerr.ErrLoggedOut
		}
		return err
	}
	switch res {
	case rotateOK:
		return nil
	case rotateMismatch:
		return fmt.Errorf("%w: refresh token already used", domainerr.ErrTokenExpired)
	case rotateMissing, rotateCorrupt:
		return domainerr.ErrLoggedOut
	}
	return fmt.Errorf("unexpected rotate result %d", res)
}

var _ repository.SessionRepository = (*SessionStore)(nil)
