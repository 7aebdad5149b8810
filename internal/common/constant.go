// Package common contains shared constants and sentinel errors used across
// gophauth components.
package common

// Names of the cookies carrying the token pair.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)

// AuthorizationHeaderName is the HTTP header used for the Bearer scheme.
const AuthorizationHeaderName = "Authorization"
