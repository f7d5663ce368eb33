package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-auth-service/internal/domain/domainerr"
	"github.com/oksasatya/go-user-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-user-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-user-auth-service/pkg/helpers"
)

const tokenTypeBearer = "bearer"

// StatefulOAuth issues JWT pairs bound to a server-side session. A token is
// only honoured while its session exists, so logout takes effect
// immediately. Refresh tokens are single use.
type StatefulOAuth struct {
	Users    repository.UserRepository
	Sessions repository.SessionRepository
	JWT      *helpers.JWTManager
	Hasher   entity.PasswordHasher
	Logger   logrus.FieldLogger
}

func NewStatefulOAuth(users repository.UserRepository, sessions repository.SessionRepository, jwt *helpers.JWTManager, hasher entity.PasswordHasher, logger logrus.FieldLogger) *StatefulOAuth {
	return &StatefulOAuth{Users: users, Sessions: sessions, JWT: jwt, Hasher: hasher, Logger: logger}
}

var _ AuthStrategy = (*StatefulOAuth)(nil)

func tokenError(err error) error {
	if errors.Is(err, helpers.ErrTokenExpired) {
		return domainerr.ErrTokenExpired
	}
	return fmt.Errorf("%w: %v", domainerr.ErrCredentials, err)
}

func (s *StatefulOAuth) issue(sessionID string) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(sessionID)
	if err != nil {
		helpers.LogError(s.Logger, "generate access token failed", err, logrus.Fields{"session_id": sessionID})
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(sessionID)
	if err != nil {
		helpers.LogError(s.Logger, "generate refresh token failed", err, logrus.Fields{"session_id": sessionID})
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:    access,
		RefreshToken:   refresh,
		TokenType:      tokenTypeBearer,
		AccessExpires:  aexp,
		RefreshExpires: rexp,
	}, nil
}

// Login verifies the password and opens a session that lives as long as
// the access token.
func (s *StatefulOAuth) Login(ctx context.Context, username, password string) (TokenPair, error) {
	u, err := s.Users.GetByUsername(ctx, username)
	if err != nil {
		return TokenPair{}, err
	}
	ok, err := s.Hasher.Verify(ctx, password, u.PasswordHash)
	if err != nil {
		return TokenPair{}, err
	}
	if !ok {
		return TokenPair{}, fmt.Errorf("%w: incorrect username or password", domainerr.ErrCredentials)
	}
	if !u.IsActive() {
		return TokenPair{}, fmt.Errorf("%w: account is deactivated", domainerr.ErrCredentials)
	}

	sid := uuid.NewString()
	pair, err := s.issue(sid)
	if err != nil {
		return TokenPair{}, err
	}
	sess := &entity.Session{
		ID:           sid,
		UserID:       u.ID,
		Roles:        []string{string(u.Role)},
		RefreshToken: pair.RefreshToken,
	}
	if err := s.Sessions.Create(ctx, sess, s.JWT.AccessTTL); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Logout ends the session named by the token. Logging out twice is fine.
func (s *StatefulOAuth) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.JWT.ParseAccessToken(accessToken)
	if err != nil {
		return tokenError(err)
	}
	return s.Sessions.Delete(ctx, claims.SessionID)
}

func (s *StatefulOAuth) Authenticate(ctx context.Context, accessToken string) (*entity.User, error) {
	claims, err := s.JWT.ParseAccessToken(accessToken)
	if err != nil {
		return nil, tokenError(err)
	}
	sess, err := s.Sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domainerr.ErrLoggedOut
	}
	u, err := s.Users.GetByID(ctx, sess.UserID)
	if errors.Is(err, domainerr.ErrUserDoesNotExist) {
		return nil, domainerr.ErrLoggedOut
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive() {
		return nil, domainerr.ErrLoggedOut
	}
	return u, nil
}

// Refresh swaps a refresh token for a new pair. The presented token must be
// the one currently stored on the session; an older one means it was
// already used.
func (s *StatefulOAuth) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, tokenError(err)
	}
	sess, err := s.Sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return TokenPair{}, err
	}
	if sess == nil {
		return TokenPair{}, domainerr.ErrLoggedOut
	}
	if sess.RefreshToken != refreshToken {
		return TokenPair{}, fmt.Errorf("%w: refresh token already used", domainerr.ErrTokenExpired)
	}

	pair, err := s.issue(sess.ID)
	if err != nil {
		return TokenPair{}, err
	}
	next := *sess
	next.RefreshToken = pair.RefreshToken
	if err := s.Sessions.Rotate(ctx, &next, refreshToken, s.JWT.RefreshTTL); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (s *StatefulOAuth) HashPassword(ctx context.Context, password string) (string, error) {
	return s.Hasher.Hash(ctx, password)
}

func (s *StatefulOAuth) VerifyPassword(ctx context.Context, password, hash string) (bool, error) {
	return s.Hasher.Verify(ctx, password, hash)
}
