package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

type testAPI struct {
	handler http.Handler
	codec   *auth.Codec
	cookies *CookieJar
	rm      *repomanager.InMemoryRepositoryManager
}

func newTestAPI(t *testing.T, cookieSecret string, rpm int, opts ...func(*RouterConfig)) *testAPI {
	t.Helper()
	codec, err := auth.NewCodec("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	hasher, err := password.NewHasher(bcrypt.MinCost, 4)
	require.NoError(t, err)

	rm := repomanager.NewInMemoryRepositoryManager()
	cookies := NewCookieJar(false, cookieSecret, codec.AccessTTL(), codec.RefreshTTL())
	svc := services.NewUserService(rm, codec, hasher, logging.Nop{})

	rc := RouterConfig{
		Users:          svc,
		Verifier:       codec,
		Cookies:        cookies,
		Logger:         logging.Nop{},
		Metrics:        NewMetrics(),
		RateLimiter:    NewRateLimiter(rpm),
		AllowedOrigins: []string{"http://localhost:3000"},
		Health:         rm.Ping,
	}
	for _, o := range opts {
		o(&rc)
	}
	h := NewRouter(rc)
	return &testAPI{handler: h, codec: codec, cookies: cookies, rm: rm}
}

type call struct {
	method  string
	path    string
	body    any
	bearer  string
	cookies []*http.Cookie
}

func (a *testAPI) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		switch b := c.body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	m := decodeBody(t, rec)
	e, ok := m["error"].(map[string]any)
	require.True(t, ok, "error envelope missing: %s", rec.Body.String())
	return e["code"].(string)
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
