package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/identicore/identity-service/internal/api/metrics"
	"github.com/identicore/identity-service/internal/core/domain"
	"github.com/identicore/identity-service/internal/core/ports"
)

// sessionCookie is the cookie carrying the opaque session token. The token
// means nothing to this layer; it is minted and resolved by the auth service.
const sessionCookie = "session_id"

type AuthHandler struct {
	authService  ports.AuthService
	cookieSecure bool
}

func NewAuthHandler(authService ports.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{authService: authService, cookieSecure: cookieSecure}
}

type registerRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Register creates a new identity.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration credentials"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /users [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.authService.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if err == domain.ErrUserExists {
			metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
		}
		return err
	}

	metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	return c.JSON(http.StatusCreated, userResponse{Email: user.Email, Message: "user created"})
}

// Login verifies credentials and opens a session, returned as a cookie.
//
// @Summary      Log in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  userResponse
// @Failure      401   {object}  map[string]string
// @Router       /sessions [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	ok, err := h.authService.VerifyLogin(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	if !ok {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return domain.ErrInvalidCredentials
	}

	token, err := h.authService.CreateSession(ctx, req.Email)
	if err != nil {
		return err
	}
	if token == "" {
		// The account vanished between verification and session creation.
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return domain.ErrInvalidCredentials
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	metrics.SessionsTotal.WithLabelValues("created").Inc()
	c.SetCookie(h.newSessionCookie(token, 0))
	return c.JSON(http.StatusOK, userResponse{Email: req.Email, Message: "logged in"})
}

// Logout destroys the session identified by the request cookie.
//
// @Summary      Log out
// @Tags         auth
// @Success      204
// @Failure      403  {object}  map[string]string
// @Router       /sessions [delete]
func (h *AuthHandler) Logout(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}

	if err := h.authService.DestroySession(c.Request().Context(), user.ID); err != nil {
		return err
	}

	metrics.SessionsTotal.WithLabelValues("destroyed").Inc()
	c.SetCookie(h.newSessionCookie("", -1))
	return c.NoContent(http.StatusNoContent)
}

// Profile returns the email of the session owner.
//
// @Summary      Current user profile
// @Tags         auth
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /profile [get]
func (h *AuthHandler) Profile(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"email": user.Email})
}

func (h *AuthHandler) newSessionCookie(token string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
