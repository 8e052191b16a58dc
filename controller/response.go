package controller

import (
	"errors"
	"net/http"

	"clinic-auth/entity"
	"clinic-auth/pipeline"
	"clinic-auth/service"
	"clinic-auth/validator"

	"github.com/labstack/echo/v4"
)

// Context keys set by the JWT middleware
const (
	ContextClaims = "claims"
	ContextToken  = "token"
)

// ErrorResponse documents the failure envelope for swagger
type ErrorResponse struct {
	Success bool        `json:"success" example:"false"`
	Message string      `json:"message" example:"Validation failed"`
	Errors  interface{} `json:"errors,omitempty"`
}

// writePipeline renders a pipeline response
func writePipeline(ctx echo.Context, resp pipeline.Response) error {
	return ctx.JSON(resp.Status, resp.Body)
}

// bindAndValidate binds the request body into req and validates it. When it returns
// false the error response has already been written.
func bindAndValidate(ctx echo.Context, v *validator.Validator, req interface{}) (bool, error) {
	if err := ctx.Bind(req); err != nil {
		return false, ctx.JSON(http.StatusBadRequest, entity.Failure("Invalid request format", nil))
	}

	if err := v.ValidateStruct(req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			return false, ctx.JSON(http.StatusUnprocessableEntity, entity.Failure("Validation failed", validationErr.Fields))
		}
		return false, ctx.JSON(http.StatusBadRequest, entity.Failure("Invalid request format", nil))
	}

	return true, nil
}

// claimsFrom returns the claims stored by the JWT middleware
func claimsFrom(ctx echo.Context) (*service.JWTClaims, bool) {
	claims, ok := ctx.Get(ContextClaims).(*service.JWTClaims)
	return claims, ok && claims != nil
}

func unauthorized(ctx echo.Context) error {
	return ctx.JSON(http.StatusUnauthorized, entity.Failure("Unauthorized", nil))
}
