package controller

import (
	"net/http"

	"clinic-auth/entity"
	"clinic-auth/pipeline"
	"clinic-auth/pkg/logger"
	"clinic-auth/service"
	"clinic-auth/validator"

	"github.com/labstack/echo/v4"
)

// AuthController handles password login and logout
type AuthController struct {
	auth       *pipeline.Auth
	jwtService service.JWTService
	validator  *validator.Validator
	logger     *logger.Logger
}

// NewAuthController creates a new auth controller
func NewAuthController(auth *pipeline.Auth, jwtService service.JWTService, validator *validator.Validator, logger *logger.Logger) *AuthController {
	return &AuthController{
		auth:       auth,
		jwtService: jwtService,
		validator:  validator,
		logger:     logger,
	}
}

// Login authenticates with email or phone and a password
// @Summary Login
// @Description Authenticate with email or phone plus password and receive a session token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body entity.LoginRequest true "Credentials"
// @Success 200 {object} entity.APIResponse{data=entity.AuthResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
func (c *AuthController) Login(ctx echo.Context) error {
	var req entity.LoginRequest
	if ok, err := bindAndValidate(ctx, c.validator, &req); !ok {
		return err
	}

	resp := c.auth.Login(ctx.Request().Context(), &req)
	if resp.Status != http.StatusOK {
		c.logger.Warnw("Login rejected", "email", req.Email, "phone_number", req.Phone, "status", resp.Status)
	}
	return writePipeline(ctx, resp)
}

// Logout revokes the current session, or every session of the account
// @Summary Logout
// @Description Revoke the current token, or all tokens of the account with logout_all
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body entity.LogoutRequest false "Logout options"
// @Security BearerAuth
// @Success 200 {object} entity.APIResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/logout [post]
func (c *AuthController) Logout(ctx echo.Context) error {
	claims, ok := claimsFrom(ctx)
	if !ok {
		return unauthorized(ctx)
	}
	tokenString, _ := ctx.Get(ContextToken).(string)

	var req entity.LogoutRequest
	if err := ctx.Bind(&req); err != nil {
		// The body is optional
		req = entity.LogoutRequest{}
	}

	reqCtx := ctx.Request().Context()

	if req.LogoutAll {
		count, err := c.jwtService.RevokeAllAccountTokens(reqCtx, claims.AccountID)
		if err != nil {
			c.logger.Errorw("Failed to revoke all account tokens", "account_id", claims.AccountID, "error", err)
			return ctx.JSON(http.StatusInternalServerError, entity.Failure("Failed to logout from all devices", nil))
		}
		c.logger.Infow("Account logged out from all devices", "account_id", claims.AccountID, "token_count", count)
		return ctx.JSON(http.StatusOK, entity.Success("Successfully logged out from all devices", nil))
	}

	if err := c.jwtService.RevokeToken(reqCtx, claims, tokenString); err != nil {
		c.logger.Errorw("Failed to revoke token", "account_id", claims.AccountID, "error", err)
		return ctx.JSON(http.StatusInternalServerError, entity.Failure("Failed to logout", nil))
	}

	c.logger.Infow("Account logged out", "account_id", claims.AccountID)
	return ctx.JSON(http.StatusOK, entity.Success("Successfully logged out", nil))
}
