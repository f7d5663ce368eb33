package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-user-auth-service/internal/domain/repository"
)

const activeUsersKey = "metrics:active_users"

// ActiveUsersStore keeps one sorted-set member per user scored by the unix
// time of its latest activity.
type ActiveUsersStore struct {
	rdb redis.Cmdable
	key string
}

func NewActiveUsersStore(rdb redis.Cmdable) *ActiveUsersStore {
	return &ActiveUsersStore{rdb: rdb, key: activeUsersKey}
}

func (s *ActiveUsersStore) RegisterActivity(ctx context.Context, userID int64, at time.Time) error {
	return s.rdb.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(at.Unix()),
		Member: strconv.FormatInt(userID, 10),
	}).Err()
}

func (s *ActiveUsersStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return s.rdb.ZCount(ctx, s.key, strconv.FormatInt(since.Unix(), 10), "+inf").Result()
}

func (s *ActiveUsersStore) RemoveBefore(ctx context.Context, before time.Time) error {
	return s.rdb.ZRemRangeByScore(ctx, s.key, "-inf", "("+strconv.FormatInt(before.Unix(), 10)).Err()
}

var _ repository.ActiveUsersRepository = (*ActiveUsersStore)(nil)
