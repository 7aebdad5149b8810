package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
)

// TokenVerifier is satisfied by *auth.Codec.
type TokenVerifier interface {
	VerifyAccessToken(token string) (auth.AccessPayload, error)
}

// Gate authenticates requests by access token: Authorization: Bearer first,
// then the access-token cookie.
type Gate struct {
	verifier TokenVerifier
	cookies  *CookieJar
}

func NewGate(v TokenVerifier, cookies *CookieJar) *Gate {
	return &Gate{verifier: v, cookies: cookies}
}

func (g *Gate) token(r *http.Request) (string, bool) {
	if tok, ok := auth.ExtractBearerToken(r.Header.Get(common.AuthorizationHeaderName)); ok {
		return tok, true
	}
	return g.cookies.Read(r, common.AccessTokenCookieName)
}

func (g *Gate) identify(r *http.Request) (auth.Identity, error) {
	tok, ok := g.token(r)
	if !ok {
		return auth.Identity{}, common.ErrorUnauthorized
	}
	p, err := g.verifier.VerifyAccessToken(tok)
	if err != nil {
		return auth.Identity{}, common.ErrInvalidToken
	}
	return auth.Identity{UserID: p.UserID, Email: p.Email}, nil
}

// RequireAuth rejects requests without a valid access token with 401.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.identify(r)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// OptionalAuth attaches an identity when the request carries a valid access
// token and otherwise passes the request through untouched.
func (g *Gate) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := g.identify(r); err == nil {
			r = r.WithContext(auth.WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request once the response is written.
func requestLogger(l logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			l.Info(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote", r.RemoteAddr,
			)
		})
	}
}

// securityHeaders sets the response headers every endpoint shares. Token
// responses must never be cached.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
