package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

// SessionService is satisfied by *services.UserService.
type SessionService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Refresh(ctx context.Context, refreshToken string) (auth.IssuedToken, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID string) (int64, error)
	Profile(ctx context.Context, userID string) (models.PublicUser, error)
}

// HealthFunc reports whether the backing store is reachable.
type HealthFunc func(ctx context.Context) error

type Handler struct {
	users   SessionService
	cookies *CookieJar
	metrics *Metrics
	health  HealthFunc
	logger  logging.Logger
}

type registerRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User        models.PublicUser `json:"user"`
	AccessToken string            `json:"accessToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type userResponse struct {
	User models.PublicUser `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
	Revoked *int64 `json:"revoked,omitempty"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	s, err := h.users.Register(r.Context(), services.RegisterInput(req))
	h.metrics.AuthEvent("register", err)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookies(w, s)
	writeJSON(w, http.StatusCreated, sessionResponse{User: s.User, AccessToken: s.AccessToken.Value})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	s, err := h.users.Login(r.Context(), req.Email, req.Password)
	h.metrics.AuthEvent("login", err)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookies(w, s)
	writeJSON(w, http.StatusOK, sessionResponse{User: s.User, AccessToken: s.AccessToken.Value})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	access, err := h.users.Refresh(r.Context(), h.refreshToken(r))
	h.metrics.AuthEvent("refresh", err)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.SetAccess(w, access.Value)
	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: access.Value})
}

// logout clears the cookies whether or not the token named a stored record.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	err := h.users.Logout(r.Context(), h.refreshToken(r))
	h.metrics.AuthEvent("logout", err)
	h.cookies.Clear(w)
	if err != nil {
		writeError(w, err)
		return
	}
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		h.logger.Info(r.Context(), "user logged out", "user_id", id.UserID)
	} else {
		h.logger.Info(r.Context(), "anonymous logout")
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	n, err := h.users.LogoutAll(r.Context(), id.UserID)
	h.metrics.AuthEvent("logout_all", err)
	h.cookies.Clear(w)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out from all sessions", Revoked: &n})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	u, err := h.users.Profile(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: u})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.logger.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// refreshToken reads the refresh token from its cookie, falling back to an
// Authorization: Bearer header for non-browser clients.
func (h *Handler) refreshToken(r *http.Request) string {
	if tok, ok := h.cookies.Read(r, common.RefreshTokenCookieName); ok {
		return tok
	}
	tok, _ := auth.ExtractBearerToken(r.Header.Get(common.AuthorizationHeaderName))
	return tok
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, s *services.Session) {
	h.cookies.SetAccess(w, s.AccessToken.Value)
	h.cookies.SetRefresh(w, s.RefreshToken.Value)
}
