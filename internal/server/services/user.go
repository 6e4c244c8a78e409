package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/uow"
)

// UserService reads user accounts.
type UserService struct {
	uow uow.Factory
	log logging.Logger
}

func NewUserService(f uow.Factory, log logging.Logger) *UserService {
	return &UserService{uow: f, log: log.With("component", "user_service")}
}

// GetUserByID returns the public view of the user with the given id, or
// ErrUserNotFound. Ids that are not UUIDs never match.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.UserResponse, error) {
	var user *models.User
	err := uow.Run(ctx, s.uow, func(ctx context.Context, u uow.UnitOfWork) error {
		var err error
		user, err = u.Users().FindByID(ctx, id)
		return err
	})

	switch {
	case errors.Is(err, common.ErrorNotFound):
		return nil, common.ErrUserNotFound
	case err != nil:
		s.log.Error(ctx, "get user failed", "user_id", id, "error", err)
		if errors.Is(err, common.ErrStoreFailure) {
			return nil, common.ErrStoreFailure
		}
		return nil, common.ErrorInternal
	}

	return user.Public(), nil
}
