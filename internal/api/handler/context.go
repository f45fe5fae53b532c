package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/identicore/identity-service/internal/core/domain"
)

// userContextKey is where the session middleware stores the resolved user.
const userContextKey = "session_user"

// ctxUser extracts the user injected by the session middleware. Its absence
// means the middleware did not run or the session did not resolve; either
// way the request is not authenticated.
func ctxUser(c echo.Context) (*domain.User, error) {
	user, _ := c.Get(userContextKey).(*domain.User)
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusForbidden, "no active session")
	}
	return user, nil
}
