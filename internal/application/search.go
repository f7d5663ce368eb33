package application

import "context"

// UserSearcher runs free-text queries over the user directory.
type UserSearcher interface {
	SearchUsers(ctx context.Context, q string, size int) ([]UserDTO, error)
}
