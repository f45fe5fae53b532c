package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/identicore/identity-service/internal/api/metrics"
	"github.com/identicore/identity-service/internal/core/ports"
)

const (
	sessionCookie = "session_id"
	// userContextKey must match the key the handlers read.
	userContextKey = "session_user"
)

// Session resolves the session_id cookie through the auth service and
// injects the owning user into the request context. Requests without a
// resolvable session are rejected with 403; the cookie's value is opaque to
// this layer.
func Session(authService ports.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(sessionCookie)
			if err != nil || cookie.Value == "" {
				return echo.NewHTTPError(http.StatusForbidden, "no active session")
			}

			start := time.Now()
			user, err := authService.ResolveSession(c.Request().Context(), cookie.Value)
			if err != nil {
				return err
			}
			if user == nil {
				metrics.SessionResolveDuration.WithLabelValues("miss").Observe(time.Since(start).Seconds())
				return echo.NewHTTPError(http.StatusForbidden, "no active session")
			}
			metrics.SessionResolveDuration.WithLabelValues("hit").Observe(time.Since(start).Seconds())

			c.Set(userContextKey, user)
			return next(c)
		}
	}
}
