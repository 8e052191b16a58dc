package controller

import (
	"errors"
	"net/http"
	"strconv"

	"clinic-auth/entity"
	"clinic-auth/pkg/logger"
	"clinic-auth/service"

	"github.com/labstack/echo/v4"
)

// UserController handles account read requests
type UserController struct {
	accountService service.AccountService
	logger         *logger.Logger
}

// NewUserController creates a new user controller instance
func NewUserController(accountService service.AccountService, logger *logger.Logger) *UserController {
	return &UserController{
		accountService: accountService,
		logger:         logger,
	}
}

// Me returns the authenticated account
// @Summary Current account
// @Description Get the account the bearer token belongs to
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} entity.APIResponse{data=entity.AccountResponse}
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users/me [get]
func (c *UserController) Me(ctx echo.Context) error {
	claims, ok := claimsFrom(ctx)
	if !ok {
		return unauthorized(ctx)
	}

	return c.writeAccount(ctx, claims.AccountID)
}

// GetUser retrieves a single account by ID
// @Summary Get User
// @Description Get account details by ID
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} entity.APIResponse{data=entity.AccountResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users/{id} [get]
func (c *UserController) GetUser(ctx echo.Context) error {
	idParam := ctx.Param("id")
	accountID, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil || accountID <= 0 {
		c.logger.Warnw("Invalid account ID", "id", idParam)
		return ctx.JSON(http.StatusBadRequest, entity.Failure("Account ID must be a positive integer", nil))
	}

	return c.writeAccount(ctx, accountID)
}

func (c *UserController) writeAccount(ctx echo.Context, accountID int64) error {
	account, err := c.accountService.GetByID(ctx.Request().Context(), accountID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			c.logger.Infow("Account not found", "account_id", accountID)
			return ctx.JSON(http.StatusNotFound, entity.Failure("Account not found", nil))
		}
		c.logger.Errorw("Failed to get account", "account_id", accountID, "error", err)
		return ctx.JSON(http.StatusInternalServerError, entity.Failure("Internal server error", nil))
	}

	return ctx.JSON(http.StatusOK, entity.Success("Account retrieved successfully", account))
}
