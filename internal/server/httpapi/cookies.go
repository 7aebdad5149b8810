package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
)

// CookieJar writes and reads the token cookies. With a secret, values carry
// an HMAC-SHA256 tag and cookies without a valid tag are treated as absent.
type CookieJar struct {
	secure     bool
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCookieJar(secure bool, secret string, accessTTL, refreshTTL time.Duration) *CookieJar {
	j := &CookieJar{secure: secure, accessTTL: accessTTL, refreshTTL: refreshTTL}
	if secret != "" {
		j.secret = []byte(secret)
	}
	return j
}

func (j *CookieJar) SetAccess(w http.ResponseWriter, token string) {
	j.set(w, common.AccessTokenCookieName, token, j.accessTTL)
}

func (j *CookieJar) SetRefresh(w http.ResponseWriter, token string) {
	j.set(w, common.RefreshTokenCookieName, token, j.refreshTTL)
}

// Clear expires both token cookies.
func (j *CookieJar) Clear(w http.ResponseWriter) {
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		http.SetCookie(w, j.cookie(name, "", -1))
	}
}

// Read returns the verified value of cookie name.
func (j *CookieJar) Read(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	if j.secret == nil {
		return c.Value, true
	}
	return cryptox.Verify(j.secret, name, c.Value)
}

func (j *CookieJar) set(w http.ResponseWriter, name, value string, ttl time.Duration) {
	if j.secret != nil {
		value = cryptox.Sign(j.secret, name, value)
	}
	http.SetCookie(w, j.cookie(name, value, int(ttl/time.Second)))
}

func (j *CookieJar) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteStrictMode,
	}
}
