package users

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository stores user accounts. Lookups return common.ErrorNotFound when
// no row matches; Create returns common.ErrAlreadyExists when the email is
// taken.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	// SetActive flips the account's active flag and returns the number of
	// users updated.
	SetActive(ctx context.Context, id string, active bool) (int64, error)
	// Delete removes the user and, by cascade, every refresh token the user
	// holds. It returns the number of users removed.
	Delete(ctx context.Context, id string) (int64, error)
}
