package application

import "github.com/oksasatya/go-user-auth-service/internal/domain/entity"

// UserDTO is the public view of a user. It never carries the password hash.
type UserDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

func ToUserDTO(u *entity.User) UserDTO {
	return UserDTO{ID: u.ID, Username: u.Username, Role: string(u.Role), Status: string(u.Status)}
}

func ToUserDTOs(users []*entity.User) []UserDTO {
	out := make([]UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserDTO(u))
	}
	return out
}

type CreateUserInput struct {
	Username string
	Password string
	Role     string
}

// UpdateUserInput is the self-service patch. Nil fields are left unchanged.
type UpdateUserInput struct {
	Username    *string
	OldPassword *string
	NewPassword *string
}

// AdminUpdateUserInput is the admin patch. Nil fields are left unchanged.
type AdminUpdateUserInput struct {
	Username    *string
	NewPassword *string
	Role        *string
	Status      *string
}
