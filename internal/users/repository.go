package users

import (
	"context"

	"farewatch/pkg/models"
)

// Repository stores whole user documents. Preferences are embedded and are
// only ever written by replacing the owning user.
type Repository interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Replace(ctx context.Context, user models.User) error
	Delete(ctx context.Context, id string) (*models.User, error)
}
