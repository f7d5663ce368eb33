package entity

import (
	"context"
	"strings"
	"unicode"

	"github.com/oksasatya/go-user-auth-service/internal/domain/domainerr"
)

const (
	UsernameMinLen   = 3
	UsernameMaxLen   = 32
	PasswordMinLen   = 8
	// bcrypt only reads the first 72 bytes and refuses anything longer
	PasswordMaxBytes = 72
)

// PasswordHasher hashes and verifies passwords. Verify reports a mismatch as
// false and only errors on a malformed hash.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, hash string) (bool, error)
}

// User is the aggregate root for the user domain.
// ID is zero until the store assigns one. Version is the optimistic
// concurrency token and is bumped by the store on every update.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	Status       Status
	Version      int
}

// NewUser validates input, hashes the password and returns an active user
// that has not been persisted yet.
func NewUser(ctx context.Context, username, password string, role Role, hasher PasswordHasher) (*User, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := hasher.Hash(ctx, password)
	if err != nil {
		return nil, err
	}
	return &User{
		Username:     name,
		PasswordHash: hash,
		Role:         role,
		Status:       StatusActive,
	}, nil
}

// NormalizeUsername checks length and charset and lowercases the name.
func NormalizeUsername(username string) (string, error) {
	n := len([]rune(username))
	if n < UsernameMinLen || n > UsernameMaxLen {
		return "", domainerr.Value("username must be between 3 and 32 characters")
	}
	for _, r := range username {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return "", domainerr.Value("username may contain only numbers and letters")
		}
	}
	return strings.ToLower(username), nil
}

func ValidatePassword(password string) error {
	if len([]rune(password)) < PasswordMinLen {
		return domainerr.Value("minimal password length is 8")
	}
	if len(password) > PasswordMaxBytes {
		return domainerr.Value("password must be at most 72 bytes")
	}
	return nil
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

func (u *User) IsActive() bool { return u.Status == StatusActive }

func (u *User) Rename(username string) error {
	name, err := NormalizeUsername(username)
	if err != nil {
		return err
	}
	u.Username = name
	return nil
}

// ChangePassword requires proof of the current password and a new password
// that differs from it.
func (u *User) ChangePassword(ctx context.Context, oldPassword, newPassword string, hasher PasswordHasher) error {
	ok, err := hasher.Verify(ctx, oldPassword, u.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return domainerr.Value("Old password invalid")
	}
	if oldPassword == newPassword {
		return domainerr.Value("password must not match the old one")
	}
	return u.ForceChangePassword(ctx, newPassword, hasher)
}

// ForceChangePassword replaces the password without proof of the old one.
func (u *User) ForceChangePassword(ctx context.Context, newPassword string, hasher PasswordHasher) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) SetRole(role string) error {
	r, err := ParseRole(role)
	if err != nil {
		return err
	}
	u.Role = r
	return nil
}

func (u *User) SetStatus(status string) error {
	s, err := ParseStatus(status)
	if err != nil {
		return err
	}
	u.Status = s
	return nil
}
