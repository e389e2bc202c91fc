package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/campfire-chat/campfire/server/auth"
)

// UserContextKey is the echo context key holding the authenticated user.
const UserContextKey = "campfire/user"

// publicPaths are reachable without a session. Prefix entries end with "/".
var publicPaths = []string{
	"/",
	"/login",
	"/register",
	"/healthz",
	"/assets/",
	"/api/v1/auth/",
}

// RouteGate guards every route that is not on the public allow-list.
// Unauthenticated page requests are redirected to the login page;
// unauthenticated API requests get a 401.
type RouteGate struct {
	authenticator *auth.Authenticator
}

// NewRouteGate creates a route gate around the session authenticator.
func NewRouteGate(authenticator *auth.Authenticator) *RouteGate {
	return &RouteGate{authenticator: authenticator}
}

// Middleware returns the echo middleware enforcing the gate.
func (g *RouteGate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if isPublicPath(req.Method, req.URL.Path) {
				return next(c)
			}

			user, err := g.authenticator.Authenticate(req.Context(), extractToken(c))
			if err != nil {
				if !isAPIPath(req.URL.Path) && acceptsHTML(req) {
					return c.Redirect(http.StatusFound, "/login")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			c.Set(UserContextKey, user)
			c.SetRequest(req.WithContext(auth.SetUserInContext(req.Context(), user)))
			return next(c)
		}
	}
}

// isPublicPath reports whether the route is reachable without a session.
// Registration is the one method-scoped entry: creating a user is public,
// the rest of the user surface is not.
func isPublicPath(method, path string) bool {
	if method == http.MethodPost && path == "/api/v1/users" {
		return true
	}
	for _, p := range publicPaths {
		if strings.HasSuffix(p, "/") && p != "/" {
			if strings.HasPrefix(path, p) {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// acceptsHTML reports whether the request is a browser page navigation.
func acceptsHTML(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}

// extractToken pulls the session token from the session cookie, falling back
// to a bearer Authorization header for non-browser clients.
func extractToken(c echo.Context) string {
	if cookie, err := c.Cookie(auth.SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return token
	}
	return ""
}
