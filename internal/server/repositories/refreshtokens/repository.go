// Package refreshtokens declares the server-side repository contract for
// managing refresh-token records in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh tokens.
type Repository interface {
	// Create stores a record for token owned by userID, expiring at expiresAt.
	// It returns common.ErrorNotFound when userID does not exist and
	// common.ErrAlreadyExists when token is already stored.
	Create(ctx context.Context, userID string, token string, expiresAt time.Time) error

	// FindWithOwner looks up a record by its token string together with the
	// owning user. It returns common.ErrorNotFound when the token is absent.
	FindWithOwner(ctx context.Context, token string) (*models.RefreshTokenWithOwner, error)

	// Delete removes a record by its token string and reports how many rows
	// went away. Deleting a non-existent token is not an error.
	Delete(ctx context.Context, token string) (int64, error)

	// DeleteAllForUser removes every record owned by userID.
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}
