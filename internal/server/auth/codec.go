// Package auth mints and verifies the two token kinds. Access and refresh
// tokens are HS256 JWTs signed with independent secrets, so a leaked access
// key cannot forge refresh tokens and vice versa.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// AccessPayload is what an access token asserts.
type AccessPayload struct {
	UserID string
	Email  string
}

// RefreshPayload is what a refresh token asserts. TokenID only keeps
// tokens distinct; the stored record is what grants authority.
type RefreshPayload struct {
	UserID  string
	TokenID string
}

// AccessClaims is the JWT body of an access token.
type AccessClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// RefreshClaims is the JWT body of a refresh token.
type RefreshClaims struct {
	UserID  string `json:"userId"`
	TokenID string `json:"tokenId"`
	jwt.RegisteredClaims
}

// IssuedToken is a signed token together with its embedded expiry.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Codec signs and verifies tokens. It is stateless apart from its
// configuration and safe for concurrent use.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// CodecOption customises a Codec.
type CodecOption func(*Codec)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

var ErrSecretsRequired = errors.New("auth: access and refresh secrets are required")

// NewCodec builds a Codec from the two secrets and lifetimes.
func NewCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...CodecOption) (*Codec, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, ErrSecretsRequired
	}
	c := &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Now is the codec's notion of the current time.
func (c *Codec) Now() time.Time { return c.now() }

// AccessTTL is the lifetime of freshly minted access tokens.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL is the lifetime of freshly minted refresh tokens.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// MintAccessToken signs p with the access secret.
func (c *Codec) MintAccessToken(p AccessPayload) (IssuedToken, error) {
	now := c.now()
	exp := now.Add(c.accessTTL)
	claims := AccessClaims{
		UserID: p.UserID,
		Email:  p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	return sign(claims, c.accessSecret, exp)
}

// MintRefreshToken signs p with the refresh secret.
func (c *Codec) MintRefreshToken(p RefreshPayload) (IssuedToken, error) {
	now := c.now()
	exp := now.Add(c.refreshTTL)
	claims := RefreshClaims{
		UserID:  p.UserID,
		TokenID: p.TokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	return sign(claims, c.refreshSecret, exp)
}

func sign(claims jwt.Claims, secret []byte, exp time.Time) (IssuedToken, error) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}
	// NumericDate truncates to seconds; report what the token says.
	return IssuedToken{Value: s, ExpiresAt: jwt.NewNumericDate(exp).Time}, nil
}

// VerifyAccessToken checks signature, algorithm and expiry. Every defect
// yields common.ErrInvalidToken.
func (c *Codec) VerifyAccessToken(token string) (AccessPayload, error) {
	claims := &AccessClaims{}
	if err := c.parse(token, claims, c.accessSecret); err != nil || claims.UserID == "" {
		return AccessPayload{}, common.ErrInvalidToken
	}
	return AccessPayload{UserID: claims.UserID, Email: claims.Email}, nil
}

// VerifyRefreshToken is VerifyAccessToken for refresh tokens.
func (c *Codec) VerifyRefreshToken(token string) (RefreshPayload, error) {
	claims := &RefreshClaims{}
	if err := c.parse(token, claims, c.refreshSecret); err != nil || claims.UserID == "" {
		return RefreshPayload{}, common.ErrInvalidToken
	}
	return RefreshPayload{UserID: claims.UserID, TokenID: claims.TokenID}, nil
}

func (c *Codec) parse(token string, claims jwt.Claims, secret []byte) error {
	if token == "" {
		return common.ErrInvalidToken
	}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	return err
}

// ComputeExpiry returns now plus a "<integer><unit>" duration (s, m, h, d).
// Anything else fails with timex.ErrInvalidFormat.
func (c *Codec) ComputeExpiry(duration string) (time.Time, error) {
	d, err := timex.ParseDuration(duration)
	if err != nil {
		return time.Time{}, err
	}
	return c.now().Add(d), nil
}

// NewTokenID returns a refresh-token discriminator: a millisecond timestamp
// plus a random UUID.
func NewTokenID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString())
}
