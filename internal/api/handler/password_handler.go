package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/identicore/identity-service/internal/api/metrics"
	"github.com/identicore/identity-service/internal/core/domain"
	"github.com/identicore/identity-service/internal/core/ports"
)

// PasswordHandler serves the password-reset token flow.
type PasswordHandler struct {
	authService ports.AuthService
}

func NewPasswordHandler(authService ports.AuthService) *PasswordHandler {
	return &PasswordHandler{authService: authService}
}

type issueResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type issueResetResponse struct {
	Email      string `json:"email"`
	ResetToken string `json:"reset_token"`
}

type redeemResetRequest struct {
	Email       string `json:"email"        validate:"omitempty,email"`
	ResetToken  string `json:"reset_token"  validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// IssueResetToken generates a password-reset token for a registered email.
// A real deployment would deliver the token out of band; returning it in
// the response mirrors the service's contract, where delivery is not this
// core's job.
//
// @Summary      Issue a password-reset token
// @Tags         password
// @Accept       json
// @Produce      json
// @Param        body  body      issueResetRequest  true  "Account email"
// @Success      200   {object}  issueResetResponse
// @Failure      403   {object}  map[string]string
// @Router       /reset_password [post]
func (h *PasswordHandler) IssueResetToken(c echo.Context) error {
	var req issueResetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	token, err := h.authService.IssueResetToken(c.Request().Context(), req.Email)
	if err != nil {
		if err == domain.ErrUserNotFound {
			return echo.NewHTTPError(http.StatusForbidden, "unknown email")
		}
		return err
	}

	metrics.ResetTokensTotal.WithLabelValues("issued").Inc()
	return c.JSON(http.StatusOK, issueResetResponse{Email: req.Email, ResetToken: token})
}

// UpdatePassword redeems a reset token, replacing the account password and
// consuming the token.
//
// @Summary      Redeem a password-reset token
// @Tags         password
// @Accept       json
// @Produce      json
// @Param        body  body      redeemResetRequest  true  "Reset token and new password"
// @Success      200   {object}  userResponse
// @Failure      403   {object}  map[string]string
// @Router       /reset_password [put]
func (h *PasswordHandler) UpdatePassword(c echo.Context) error {
	var req redeemResetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.authService.RedeemResetToken(c.Request().Context(), req.ResetToken, req.NewPassword); err != nil {
		if err == domain.ErrInvalidResetToken {
			metrics.ResetTokensTotal.WithLabelValues("rejected").Inc()
			return echo.NewHTTPError(http.StatusForbidden, "invalid reset token")
		}
		return err
	}

	metrics.ResetTokensTotal.WithLabelValues("redeemed").Inc()
	return c.JSON(http.StatusOK, userResponse{Email: req.Email, Message: "Password updated"})
}
