package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// EnvConfig is the environment-variable DTO. Durations stay strings so they
// go through timex.ParseDuration ("7d" is not a time.Duration literal).
type EnvConfig struct {
	EndpointAddrHTTP             string   `env:"GOPHAUTH_HTTP_ADDR"`
	DatabaseDSN                  string   `env:"GOPHAUTH_DATABASE_DSN"`
	AccessTokenSecret            string   `env:"GOPHAUTH_ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret           string   `env:"GOPHAUTH_REFRESH_TOKEN_SECRET"`
	AccessTokenValidityDuration  string   `env:"GOPHAUTH_ACCESS_TOKEN_EXPIRES_IN"`
	RefreshTokenValidityDuration string   `env:"GOPHAUTH_REFRESH_TOKEN_EXPIRES_IN"`
	Environment                  string   `env:"GOPHAUTH_ENV"`
	CookieSecret                 string   `env:"GOPHAUTH_COOKIE_SECRET"`
	CORSAllowedOrigins           []string `env:"GOPHAUTH_CORS_ORIGINS" envSeparator:","`
	RateLimitRPM                 *int     `env:"GOPHAUTH_RATE_LIMIT_RPM"`
	LogBackend                   string   `env:"GOPHAUTH_LOG_BACKEND"`
	TrustProxyHeaders            *bool    `env:"GOPHAUTH_TRUST_PROXY_HEADERS"`
}

// parseEnv overlays values from the process environment. A .env file in the
// working directory is loaded first if present; real environment variables
// win over it. Unset variables leave the config untouched. Malformed values
// panic, matching the JSON and flag layers.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	c := &EnvConfig{}
	if err := env.Parse(c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	setString(&config.Environment, c.Environment)
	setString(&config.CookieSecret, c.CookieSecret)
	setString(&config.LogBackend, c.LogBackend)

	if c.AccessTokenValidityDuration != "" {
		config.AccessTokenValidityDuration = mustParseDuration(c.AccessTokenValidityDuration)
	}
	if c.RefreshTokenValidityDuration != "" {
		config.RefreshTokenValidityDuration = mustParseDuration(c.RefreshTokenValidityDuration)
	}
	if len(c.CORSAllowedOrigins) > 0 {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
	if c.RateLimitRPM != nil {
		config.RateLimitRPM = *c.RateLimitRPM
	}
	if c.TrustProxyHeaders != nil {
		config.TrustProxyHeaders = *c.TrustProxyHeaders
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mustParseDuration(s string) time.Duration {
	v, err := timex.ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return v
}
