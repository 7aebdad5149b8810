// Package httpapi is the HTTP surface of gophauth: routing, the
// authentication gate, token cookies and the JSON error envelope.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// RouterConfig collects the router's collaborators. Metrics and RateLimiter
// may be nil. TrustProxyHeaders takes the client address from
// X-Forwarded-For / X-Real-IP; enable it only behind a proxy that sets them.
type RouterConfig struct {
	Users          SessionService
	Verifier       TokenVerifier
	Cookies        *CookieJar
	Logger         logging.Logger
	Metrics        *Metrics
	RateLimiter    *RateLimiter
	AllowedOrigins []string
	Health         HealthFunc

	TrustProxyHeaders bool
}

func NewRouter(c RouterConfig) http.Handler {
	h := &Handler{
		users:   c.Users,
		cookies: c.Cookies,
		metrics: c.Metrics,
		health:  c.Health,
		logger:  c.Logger,
	}
	gate := NewGate(c.Verifier, c.Cookies)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if c.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(c.Logger))
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(c.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   c.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", c.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(c.RateLimiter.Middleware)
		r.Post("/register", h.register)
		r.Post("/login", h.login)
	})

	r.Post("/refresh", h.refresh)
	r.With(gate.OptionalAuth).Post("/logout", h.logout)
	r.With(gate.RequireAuth).Post("/logout-all", h.logoutAll)
	r.With(gate.RequireAuth).Get("/profile", h.profile)

	return r
}
