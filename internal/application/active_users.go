package application

import (
	"context"
	"time"

	"github.com/oksasatya/go-user-auth-service/internal/domain/repository"
)

// ActiveUsersService counts distinct users seen within a time window.
type ActiveUsersService struct {
	repo repository.ActiveUsersRepository
	now  func() time.Time
}

func NewActiveUsersService(repo repository.ActiveUsersRepository) *ActiveUsersService {
	return &ActiveUsersService{repo: repo, now: time.Now}
}

func (s *ActiveUsersService) RegisterActivity(ctx context.Context, userID int64) error {
	return s.repo.RegisterActivity(ctx, userID, s.now())
}

// CountActive returns how many users were active within timespan. Pass
// cleanup only for the widest window you report on: it drops everything
// older than timespan, which would starve any wider window.
func (s *ActiveUsersService) CountActive(ctx context.Context, timespan time.Duration, cleanup bool) (int64, error) {
	since := s.now().Add(-timespan)
	if cleanup {
		if err := s.repo.RemoveBefore(ctx, since); err != nil {
			return 0, err
		}
	}
	return s.repo.CountSince(ctx, since)
}
