package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
)

type RefreshTokensRepository struct {
	s  *Store
	db dbx.DBTX
}

var _ refreshtokens.Repository = (*RefreshTokensRepository)(nil)

// RefreshTokens returns a refreshtokens.Repository over db, which is nil or a *Tx.
func (s *Store) RefreshTokens(db dbx.DBTX) *RefreshTokensRepository {
	return &RefreshTokensRepository{s: s, db: db}
}

func (r *RefreshTokensRepository) Create(ctx context.Context, userID string, token string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.s.write(r.db, func(st *state) error {
		if _, ok := st.users[userID]; !ok {
			return fmt.Errorf("%w: refresh token owner %q", common.ErrorNotFound, userID)
		}
		if _, dup := st.tokens[token]; dup {
			return common.ErrAlreadyExists
		}
		now := r.s.now()
		st.tokens[token] = models.RefreshToken{
			ID:        uuid.NewString(),
			Token:     token,
			UserID:    userID,
			ExpiresAt: expiresAt,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return nil
	})
}

func (r *RefreshTokensRepository) FindWithOwner(ctx context.Context, token string) (*models.RefreshTokenWithOwner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out models.RefreshTokenWithOwner
	err := r.s.read(r.db, func(st *state) error {
		t, ok := st.tokens[token]
		if !ok {
			return common.ErrorNotFound
		}
		owner, ok := st.users[t.UserID]
		if !ok {
			return common.ErrorNotFound
		}
		out = models.RefreshTokenWithOwner{RefreshToken: t, Owner: owner}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RefreshTokensRepository) Delete(ctx context.Context, token string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	err := r.s.write(r.db, func(st *state) error {
		if _, ok := st.tokens[token]; ok {
			delete(st.tokens, token)
			n = 1
		}
		return nil
	})
	return n, err
}

func (r *RefreshTokensRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	err := r.s.write(r.db, func(st *state) error {
		for k, t := range st.tokens {
			if t.UserID == userID {
				delete(st.tokens, k)
				n++
			}
		}
		return nil
	})
	return n, err
}
