package config

import (
	"flag"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string    HTTP bind address (e.g. ":8080")
//	-d string    PostgreSQL DSN; empty selects the in-memory store
//	-s string    access token secret
//	-rs string   refresh token secret
//	-t string    access token validity ("15m")
//	-r string    refresh token validity ("7d")
//	-e string    environment: development | production
//	-cs string   cookie signing secret
//	-o string    comma-separated CORS origins
//	-rl int      per-IP requests per minute on /login and /register
//	-l string    log backend: slog | zap
//	-tp bool     trust X-Forwarded-For / X-Real-IP from a fronting proxy
//
// Only the flags above are looked at (see flagx.FilterArgs), so -c/-config
// and foreign flags pass through. Durations use the timex grammar; invalid
// values panic.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-rs", "-t", "-r", "-e", "-cs", "-o", "-rl", "-l", "-tp"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "rs", config.RefreshTokenSecret, "refresh token secret")

	accessTTL := fs.String("t", "", "access token validity (e.g. 15m)")
	refreshTTL := fs.String("r", "", "refresh token validity (e.g. 7d)")

	fs.StringVar(&config.Environment, "e", config.Environment, "environment (development|production)")
	fs.StringVar(&config.CookieSecret, "cs", config.CookieSecret, "cookie signing secret")
	origins := fs.String("o", "", "comma-separated CORS origins")
	fs.IntVar(&config.RateLimitRPM, "rl", config.RateLimitRPM, "rate limit, requests per minute per IP")
	fs.StringVar(&config.LogBackend, "l", config.LogBackend, "log backend (slog|zap)")
	fs.BoolVar(&config.TrustProxyHeaders, "tp", config.TrustProxyHeaders, "trust proxy client-address headers")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	if *accessTTL != "" {
		config.AccessTokenValidityDuration = mustParseDuration(*accessTTL)
	}
	if *refreshTTL != "" {
		config.RefreshTokenValidityDuration = mustParseDuration(*refreshTTL)
	}
	if *origins != "" {
		config.CORSAllowedOrigins = splitList(*origins)
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
			out = append(out, p)
		}
	}
	return out
}
