// Package config handles configuration for the server component: defaults,
// then environment variables (and an optional .env file), then a JSON file,
// then command-line flags.
package config

import (
	"errors"
	"os"
	"time"
)

// Environment modes.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Log backends.
const (
	LogBackendSlog = "slog"
	LogBackendZap  = "zap"
)

// Development-only secrets. Validate refuses them in production.
const (
	devAccessTokenSecret  = "dev-access-secret"
	devRefreshTokenSecret = "dev-refresh-secret"
)

// devCORSOrigins are always allowed outside production.
var devCORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// Config holds runtime settings for the gophauth server.
//
// Fields:
//   - EndpointAddrHTTP: bind address of the HTTP API.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the in-memory store.
//   - AccessTokenSecret / RefreshTokenSecret: independent HS256 keys.
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
//   - Environment: "development" or "production"; drives cookie Secure and CORS.
//   - CookieSecret: when set, token cookies are HMAC-signed.
//   - CORSAllowedOrigins: origins allowed in production (dev origins are added otherwise).
//   - RateLimitRPM: per-IP budget for /login and /register; 0 disables.
//   - LogBackend: "slog" or "zap".
//   - TrustProxyHeaders: take client addresses from X-Forwarded-For/X-Real-IP
//     (rate limiting, request logs). Off unless a trusted proxy sets them.
type Config struct {
	EndpointAddrHTTP             string
	DatabaseDSN                  string
	AccessTokenSecret            string
	RefreshTokenSecret           string
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
	Environment                  string
	CookieSecret                 string
	CORSAllowedOrigins           []string
	RateLimitRPM                 int
	LogBackend                   string
	TrustProxyHeaders            bool
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.DatabaseDSN = ""
	c.AccessTokenSecret = devAccessTokenSecret
	c.RefreshTokenSecret = devRefreshTokenSecret
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.RefreshTokenValidityDuration = 7 * 24 * time.Hour
	c.Environment = EnvDevelopment
	c.CookieSecret = ""
	c.CORSAllowedOrigins = nil
	c.RateLimitRPM = 60
	c.LogBackend = LogBackendSlog
	c.TrustProxyHeaders = false
}

// LoadConfig builds a Config by applying defaults, then overlaying the
// environment, an optional JSON file and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg, os.Args[1:])
	parseFlags(cfg, os.Args[1:])
	return cfg
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// AllowedOrigins returns the CORS allow-list for the current environment.
func (c *Config) AllowedOrigins() []string {
	if c.IsProduction() {
		return c.CORSAllowedOrigins
	}
	out := make([]string, 0, len(devCORSOrigins)+len(c.CORSAllowedOrigins))
	out = append(out, devCORSOrigins...)
	return append(out, c.CORSAllowedOrigins...)
}

var (
	ErrMissingSecret   = errors.New("token secrets must not be empty")
	ErrSharedSecret    = errors.New("access and refresh secrets must differ")
	ErrDevSecret       = errors.New("development secrets are not allowed in production")
	ErrBadDuration     = errors.New("token validity durations must be positive")
	ErrBadEnvironment  = errors.New("environment must be development or production")
	ErrBadLogBackend   = errors.New("log backend must be slog or zap")
	ErrBadRateLimitRPM = errors.New("rate limit must not be negative")
)

// Validate checks the settings the token trust model depends on.
func (c *Config) Validate() error {
	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		return ErrMissingSecret
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return ErrSharedSecret
	}
	if c.AccessTokenValidityDuration <= 0 || c.RefreshTokenValidityDuration <= 0 {
		return ErrBadDuration
	}
	switch c.Environment {
	case EnvDevelopment:
	case EnvProduction:
		if c.AccessTokenSecret == devAccessTokenSecret || c.RefreshTokenSecret == devRefreshTokenSecret {
			return ErrDevSecret
		}
	default:
		return ErrBadEnvironment
	}
	if c.LogBackend != LogBackendSlog && c.LogBackend != LogBackendZap {
		return ErrBadLogBackend
	}
	if c.RateLimitRPM < 0 {
		return ErrBadRateLimitRPM
	}
	return nil
}
