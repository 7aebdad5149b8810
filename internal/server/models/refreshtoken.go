package models

import "time"

// RefreshToken is a stored refresh-token record. A refresh token is honoured
// only while its record exists and ExpiresAt is in the future.
type RefreshToken struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the record is past its expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// RefreshTokenWithOwner is a record joined with the user it belongs to.
type RefreshTokenWithOwner struct {
	RefreshToken
	Owner User
}
