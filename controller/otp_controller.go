package controller

import (
	"clinic-auth/entity"
	"clinic-auth/pipeline"
	"clinic-auth/pkg/logger"
	"clinic-auth/validator"

	"github.com/labstack/echo/v4"
)

// OTPController handles the phone OTP login flow
type OTPController struct {
	auth      *pipeline.Auth
	validator *validator.Validator
	logger    *logger.Logger
}

// NewOTPController creates a new OTP controller instance
func NewOTPController(auth *pipeline.Auth, validator *validator.Validator, logger *logger.Logger) *OTPController {
	return &OTPController{
		auth:      auth,
		validator: validator,
		logger:    logger,
	}
}

// VerifyPhone issues a login code to a registered phone
// @Summary Send login OTP
// @Description Generate a login code for a registered, active phone number and deliver it by SMS. The code is never returned.
// @Tags OTP
// @Accept json
// @Produce json
// @Param request body entity.VerifyPhoneRequest true "Phone to verify"
// @Success 200 {object} entity.APIResponse{data=entity.PhoneVerificationResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/verify-phone [post]
func (c *OTPController) VerifyPhone(ctx echo.Context) error {
	var req entity.VerifyPhoneRequest
	if ok, err := bindAndValidate(ctx, c.validator, &req); !ok {
		return err
	}

	resp := c.auth.VerifyPhone(ctx.Request().Context(), req.Phone)
	c.logger.Infow("Phone verification handled", "phone_number", req.Phone, "status", resp.Status)
	return writePipeline(ctx, resp)
}

// VerifyOTP exchanges a login code for a session token
// @Summary Verify login OTP
// @Description Verify the code sent to a phone and authenticate the account
// @Tags OTP
// @Accept json
// @Produce json
// @Param request body entity.VerifyOTPRequest true "Phone and code"
// @Success 200 {object} entity.APIResponse{data=entity.AuthResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/verify-otp [post]
func (c *OTPController) VerifyOTP(ctx echo.Context) error {
	var req entity.VerifyOTPRequest
	if ok, err := bindAndValidate(ctx, c.validator, &req); !ok {
		return err
	}

	resp := c.auth.VerifyOTP(ctx.Request().Context(), req.Phone, req.Code)
	c.logger.Infow("OTP verification handled", "phone_number", req.Phone, "status", resp.Status)
	return writePipeline(ctx, resp)
}
