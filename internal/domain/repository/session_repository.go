package repository

import (
	"context"
	"time"

	"github.com/oksasatya/go-user-auth-service/internal/domain/entity"
)

// SessionRepository persists rotating-token sessions. A missing session and
// an expired one are indistinguishable; Get returns (nil, nil) for both.
type SessionRepository interface {
	Create(ctx context.Context, s *entity.Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*entity.Session, error)
	Delete(ctx context.Context, id string) error
	Refresh(ctx context.Context, id string, ttl time.Duration) error
	// Rotate overwrites the session with next only if the stored refresh
	// token still equals presented, and resets the TTL. Fails with
	// ErrLoggedOut when the session is gone and ErrTokenExpired when
	// presented was already rotated away.
	Rotate(ctx context.Context, next *entity.Session, presented string, ttl time.Duration) error
}

// ActiveUsersRepository tracks last-activity timestamps per user.
type ActiveUsersRepository interface {
	RegisterActivity(ctx context.Context, userID int64, at time.Time) error
	CountSince(ctx context.Context, since time.Time) (int64, error)
	RemoveBefore(ctx context.Context, before time.Time) error
}
