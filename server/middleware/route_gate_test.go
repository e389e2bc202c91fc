package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campfire-chat/campfire/server/auth"
)

func TestIsPublicPath(t *testing.T) {
	tests := []struct {
		method string
		path   string
		public bool
	}{
		{http.MethodGet, "/", true},
		{http.MethodGet, "/login", true},
		{http.MethodGet, "/register", true},
		{http.MethodGet, "/healthz", true},
		{http.MethodGet, "/assets/app.js", true},
		{http.MethodPost, "/api/v1/auth/login", true},
		{http.MethodGet, "/api/v1/auth/google", true},
		{http.MethodPost, "/api/v1/users", true},
		{http.MethodGet, "/api/v1/users", false},
		{http.MethodGet, "/chat", false},
		{http.MethodPost, "/api/v1/chat", false},
		{http.MethodPost, "/api/v1/assistant", false},
		{http.MethodGet, "/loginx", false},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.public, isPublicPath(tt.method, tt.path))
		})
	}
}

func newGateContext(t *testing.T, method, path string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRouteGateRedirectsPagesToLogin(t *testing.T) {
	gate := NewRouteGate(auth.NewAuthenticator(nil, "secret"))
	handler := gate.Middleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
}

func TestRouteGateRejectsNonBrowserPageRequests(t *testing.T) {
	gate := NewRouteGate(auth.NewAuthenticator(nil, "secret"))
	handler := gate.Middleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	c, _ := newGateContext(t, http.MethodGet, "/chat")
	err := handler(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestRouteGateRejectsAPIWithoutSession(t *testing.T) {
	gate := NewRouteGate(auth.NewAuthenticator(nil, "secret"))
	handler := gate.Middleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	c, _ := newGateContext(t, http.MethodPost, "/api/v1/chat")
	err := handler(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestRouteGatePassesPublicPaths(t *testing.T) {
	gate := NewRouteGate(auth.NewAuthenticator(nil, "secret"))
	called := false
	handler := gate.Middleware()(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})

	c, rec := newGateContext(t, http.MethodGet, "/healthz")
	require.NoError(t, handler(c))
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractTokenPrefersCookie(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "cookie-token"})
	req.Header.Set(echo.HeaderAuthorization, "Bearer header-token")
	c := e.NewContext(req, httptest.NewRecorder())

	assert.Equal(t, "cookie-token", extractToken(c))
}

func TestExtractTokenBearerFallback(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer header-token")
	c := e.NewContext(req, httptest.NewRecorder())

	assert.Equal(t, "header-token", extractToken(c))
}
