package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

type UsersRepository struct {
	s  *Store
	db dbx.DBTX
}

var _ users.Repository = (*UsersRepository)(nil)

// Users returns a users.Repository over db, which is nil or a *Tx.
func (s *Store) Users(db dbx.DBTX) *UsersRepository {
	return &UsersRepository{s: s, db: db}
}

func (r *UsersRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err := r.s.write(r.db, func(st *state) error {
		if _, taken := st.byEmail[user.Email]; taken {
			return common.ErrAlreadyExists
		}
		now := r.s.now()
		user.ID = uuid.NewString()
		user.IsActive = true
		user.CreatedAt = now
		user.UpdatedAt = now
		st.users[user.ID] = *user
		st.byEmail[user.Email] = user.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UsersRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var u models.User
	err := r.s.read(r.db, func(st *state) error {
		id, ok := st.byEmail[email]
		if !ok {
			return common.ErrorNotFound
		}
		u = st.users[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UsersRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var u models.User
	err := r.s.read(r.db, func(st *state) error {
		found, ok := st.users[id]
		if !ok {
			return common.ErrorNotFound
		}
		u = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UsersRepository) SetActive(ctx context.Context, id string, active bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	err := r.s.write(r.db, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return nil
		}
		u.IsActive = active
		u.UpdatedAt = r.s.now()
		st.users[id] = u
		n = 1
		return nil
	})
	return n, err
}

// Delete removes the user and its refresh tokens.
func (r *UsersRepository) Delete(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	err := r.s.write(r.db, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return nil
		}
		delete(st.users, id)
		delete(st.byEmail, u.Email)
		for k, t := range st.tokens {
			if t.UserID == id {
				delete(st.tokens, k)
			}
		}
		n = 1
		return nil
	})
	return n, err
}
