package application

import (
	"context"
	"time"

	"github.com/oksasatya/go-user-auth-service/internal/domain/entity"
)

type UserEventType string

const (
	UserCreated UserEventType = "user.created"
	UserUpdated UserEventType = "user.updated"
	UserDeleted UserEventType = "user.deleted"
)

// UserEvent is published after a user mutation commits.
type UserEvent struct {
	Type       UserEventType `json:"type"`
	UserID     int64         `json:"user_id"`
	Username   string        `json:"username"`
	Role       string        `json:"role"`
	Status     string        `json:"status"`
	Version    int           `json:"version"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func NewUserEvent(t UserEventType, u *entity.User) UserEvent {
	return UserEvent{
		Type:       t,
		UserID:     u.ID,
		Username:   u.Username,
		Role:       string(u.Role),
		Status:     string(u.Status),
		Version:    u.Version,
		OccurredAt: time.Now().UTC(),
	}
}

type EventPublisher interface {
	PublishUserEvent(ctx context.Context, ev UserEvent) error
}
