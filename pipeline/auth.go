package pipeline

import (
	"context"
	"time"

	"clinic-auth/entity"
	"clinic-auth/pkg/logger"
	"clinic-auth/repository"
	"clinic-auth/service"
)

// Auth builds and runs the authentication pipelines. Every call constructs a new
// step list, so nothing is shared between requests but the collaborators.
type Auth struct {
	accounts repository.AccountLookup
	recorder LoginRecorder
	hasher   service.PasswordHasher
	tokens   service.JWTService
	otp      service.OTPService
	notifier service.Notifier
	otpTTL   time.Duration
	logger   *logger.Logger
}

// AuthDeps are the collaborators the pipelines need
type AuthDeps struct {
	Accounts repository.AccountLookup
	Recorder LoginRecorder
	Hasher   service.PasswordHasher
	Tokens   service.JWTService
	OTP      service.OTPService
	Notifier service.Notifier
	OTPTTL   time.Duration
	Logger   *logger.Logger
}

// NewAuth creates the pipeline factory
func NewAuth(deps AuthDeps) *Auth {
	return &Auth{
		accounts: deps.Accounts,
		recorder: deps.Recorder,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		otp:      deps.OTP,
		notifier: deps.Notifier,
		otpTTL:   deps.OTPTTL,
		logger:   deps.Logger,
	}
}

// LoginPipeline authenticates with email or phone plus password
func (a *Auth) LoginPipeline() *Pipeline {
	return New("login", a.logger,
		NewValidateUserCredentials(a.accounts),
		NewValidatePassword(a.hasher),
		NewValidateUserStatus(),
		NewGenerateAuthToken(a.tokens, a.recorder, a.logger),
	)
}

// PhoneVerificationPipeline issues and delivers a login code to a known phone
func (a *Auth) PhoneVerificationPipeline() *Pipeline {
	return New("phone_verification", a.logger,
		NewCheckPhoneExisting(a.accounts),
		NewValidateUserStatus(),
		NewGenerateOtpCode(a.otp, a.otpTTL),
		NewSendOtpNotification(a.notifier, a.logger),
	)
}

// OTPLoginPipeline exchanges a delivered code for a session token
func (a *Auth) OTPLoginPipeline() *Pipeline {
	return New("otp_login", a.logger,
		NewCheckPhoneExisting(a.accounts),
		NewValidateUserStatus(),
		NewVerifyOtpCode(a.otp),
		NewGenerateAuthToken(a.tokens, a.recorder, a.logger),
	)
}

// Login runs LoginPipeline for the credentials
func (a *Auth) Login(ctx context.Context, credentials *entity.LoginRequest) Response {
	return a.LoginPipeline().Execute(ctx, NewCredentialsState(credentials), authenticated("Login successful"))
}

// VerifyPhone runs PhoneVerificationPipeline for phone
func (a *Auth) VerifyPhone(ctx context.Context, phone string) Response {
	return a.PhoneVerificationPipeline().Execute(ctx, NewPhoneState(phone), func(state *State) Response {
		return OK("OTP sent successfully", entity.PhoneVerificationResponse{
			Phone:  state.Phone(),
			UserID: state.User().ID,
		})
	})
}

// VerifyOTP runs OTPLoginPipeline for phone and the submitted code
func (a *Auth) VerifyOTP(ctx context.Context, phone, code string) Response {
	state := NewPhoneState(phone)
	state.SetOTPCode(code)
	return a.OTPLoginPipeline().Execute(ctx, state, authenticated("OTP verified successfully"))
}

func authenticated(message string) func(*State) Response {
	return func(state *State) Response {
		token := state.Token()
		return OK(message, entity.AuthResponse{
			User:      entity.NewAccountResponse(state.User()),
			Token:     token.Token,
			ExpiresAt: token.ExpiresAt,
		})
	}
}
