package application

import (
	"context"
	"time"

	"github.com/oksasatya/go-user-auth-service/internal/domain/entity"
)

type TokenPair struct {
	AccessToken    string    `json:"access_token"`
	RefreshToken   string    `json:"refresh_token"`
	TokenType      string    `json:"token_type"`
	AccessExpires  time.Time `json:"access_expires"`
	RefreshExpires time.Time `json:"refresh_expires"`
}

// Authenticator resolves an access token to the user behind it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*entity.User, error)
}

type LoginLogout interface {
	Login(ctx context.Context, username, password string) (TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
}

type PasswordCapable interface {
	HashPassword(ctx context.Context, password string) (string, error)
	VerifyPassword(ctx context.Context, password, hash string) (bool, error)
}

type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// AuthStrategy is the full capability set used by the HTTP layer.
type AuthStrategy interface {
	Authenticator
	LoginLogout
	PasswordCapable
	TokenRefresher
}
