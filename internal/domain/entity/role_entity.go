package entity

import "github.com/oksasatya/go-user-auth-service/internal/domain/domainerr"

// Role is the authorization role of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleAdmin:
		return r, nil
	}
	return "", domainerr.Value("role must be one of: user, admin")
}

// Status turns a user account on or off.
type Status string

const (
	StatusActive      Status = "active"
	StatusDeactivated Status = "deactivated"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusActive, StatusDeactivated:
		return st, nil
	}
	return "", domainerr.Value("status must be one of: active, deactivated")
}
