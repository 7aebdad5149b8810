// Package services contains server-side business logic. This file implements
// UserService, which registers users, verifies credentials and issues,
// refreshes and revokes sessions.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// PasswordHasher is satisfied by *password.Hasher.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Compare(ctx context.Context, hash, plain string) (bool, error)
	CompareDummy(ctx context.Context, plain string)
}

// RegisterInput is the data accepted at registration.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName *string
	LastName  *string
}

// Session is what a successful register or login hands back: the public
// user view plus a fresh access and refresh token.
type Session struct {
	User         models.PublicUser
	AccessToken  auth.IssuedToken
	RefreshToken auth.IssuedToken
}

var errPasswordTooLong = common.NewError(common.KindValidation, "validation_error", "password must be at most 72 bytes")

// UserService provides authentication-related operations:
// - Register: create users
// - Login: verify credentials and mint tokens
// - Refresh: mint a new access token from a stored refresh token
// - Logout, LogoutAll: revoke refresh tokens
type UserService struct {
	repomanager repomanager.RepositoryManager
	codec       *auth.Codec
	hasher      PasswordHasher
	logger      logging.Logger
}

// NewUserService constructs a UserService. The manager is the only handle to
// persistent state.
func NewUserService(m repomanager.RepositoryManager, codec *auth.Codec, hasher PasswordHasher, logger logging.Logger) *UserService {
	return &UserService{
		repomanager: m,
		codec:       codec,
		hasher:      hasher,
		logger:      logger,
	}
}

// Register creates a user and opens the first session for it. The user row
// and the refresh-token record are written in one transaction.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if in.Email == "" || in.Password == "" {
		return nil, common.ErrValidation
	}

	_, err := s.repomanager.Users(s.repomanager.Conn()).GetUserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, common.ErrEmailTaken
	case !errors.Is(err, common.ErrorNotFound):
		return nil, s.internal(ctx, "register: lookup user", err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return nil, errPasswordTooLong
		}
		return nil, s.internal(ctx, "register: hash password", err)
	}

	var session *Session
	err = s.repomanager.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).Create(ctx, &models.User{
			Email:        in.Email,
			PasswordHash: hash,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
		})
		if err != nil {
			return err
		}
		session, err = s.openSession(ctx, tx, user)
		return err
	})
	if err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrEmailTaken
		}
		return nil, s.internal(ctx, "register: create user", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", session.User.ID)
	return session, nil
}

// Login verifies email and password and opens a new session. Unknown emails
// and wrong passwords fail identically.
func (s *UserService) Login(ctx context.Context, email, plain string) (*Session, error) {
	if email == "" || plain == "" {
		return nil, common.ErrValidation
	}

	user, err := s.repomanager.Users(s.repomanager.Conn()).GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.CompareDummy(ctx, plain)
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.internal(ctx, "login: lookup user", err)
	}

	if !user.IsActive {
		return nil, common.ErrAccountDeactivated
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, plain)
	if err != nil {
		// No stored password is longer than 72 bytes, so a longer one never matches.
		if errors.Is(err, password.ErrTooLong) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.internal(ctx, "login: compare password", err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	session, err := s.openSession(ctx, s.repomanager.Conn(), user)
	if err != nil {
		// The user was deleted after the lookup.
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.internal(ctx, "login: open session", err)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return session, nil
}

// Refresh mints a new access token for a stored, unexpired refresh token.
// The refresh token itself is not rotated and stays valid until it expires
// or is revoked.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (auth.IssuedToken, error) {
	if refreshToken == "" {
		return auth.IssuedToken{}, common.ErrMissingToken
	}

	if _, err := s.codec.VerifyRefreshToken(refreshToken); err != nil {
		return auth.IssuedToken{}, common.ErrInvalidRefreshToken
	}

	rec, err := s.repomanager.RefreshTokens(s.repomanager.Conn()).FindWithOwner(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return auth.IssuedToken{}, common.ErrRefreshTokenExpired
		}
		return auth.IssuedToken{}, s.internal(ctx, "refresh: lookup token", err)
	}

	// The stored expiry is checked on its own; revocation and expiry are
	// decided by the record, not by the signature.
	if rec.Expired(s.codec.Now()) {
		return auth.IssuedToken{}, common.ErrRefreshTokenExpired
	}

	if !rec.Owner.IsActive {
		return auth.IssuedToken{}, common.ErrAccountDeactivated
	}

	access, err := s.codec.MintAccessToken(auth.AccessPayload{UserID: rec.Owner.ID, Email: rec.Owner.Email})
	if err != nil {
		return auth.IssuedToken{}, s.internal(ctx, "refresh: mint access token", err)
	}
	return access, nil
}

// Logout revokes a single refresh token. An empty or unknown token is not an
// error.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	n, err := s.repomanager.RefreshTokens(s.repomanager.Conn()).Delete(ctx, refreshToken)
	if err != nil {
		return s.internal(ctx, "logout: delete token", err)
	}
	s.logger.Debug(ctx, "refresh token revoked", "deleted", n)
	return nil
}

// LogoutAll revokes every refresh token of userID and reports how many were
// removed. Outstanding access tokens stay valid until they expire.
func (s *UserService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.repomanager.RefreshTokens(s.repomanager.Conn()).DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, s.internal(ctx, "logout-all: delete tokens", err)
	}
	s.logger.Info(ctx, "all sessions revoked", "user_id", userID, "deleted", n)
	return n, nil
}

// Profile returns the public view of userID.
func (s *UserService) Profile(ctx context.Context, userID string) (models.PublicUser, error) {
	user, err := s.repomanager.Users(s.repomanager.Conn()).GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return models.PublicUser{}, common.ErrUserNotFound
		}
		return models.PublicUser{}, s.internal(ctx, "profile: lookup user", err)
	}
	return user.ToPublic(), nil
}

// openSession mints both tokens and stores the refresh-token record through db.
func (s *UserService) openSession(ctx context.Context, db dbx.DBTX, user *models.User) (*Session, error) {
	access, err := s.codec.MintAccessToken(auth.AccessPayload{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.MintRefreshToken(auth.RefreshPayload{UserID: user.ID, TokenID: auth.NewTokenID()})
	if err != nil {
		return nil, err
	}
	if err := s.repomanager.RefreshTokens(db).Create(ctx, user.ID, refresh.Value, refresh.ExpiresAt); err != nil {
		return nil, err
	}
	return &Session{User: user.ToPublic(), AccessToken: access, RefreshToken: refresh}, nil
}

// internal logs err in full and returns an error that classifies as
// KindInternal, so only the generic message reaches clients.
func (s *UserService) internal(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, op+" failed", "error", err)
	return fmt.Errorf("%w: %s: %w", common.ErrorInternal, op, err)
}
