// Package users holds the persistence contract for user accounts and its
// PostgreSQL implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository reads and writes user rows. Lookups of absent users return
// common.ErrorNotFound; a duplicate email on Create returns
// common.ErrorAlreadyExists; every other failure wraps common.ErrStoreFailure.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}
