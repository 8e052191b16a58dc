package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"clinic-auth/entity"
	"clinic-auth/pkg/logger"
	"clinic-auth/repository"
	"clinic-auth/service"
)

// LoginRecorder stamps an account's last successful login
type LoginRecorder interface {
	UpdateLastLogin(ctx context.Context, id int64) error
}

// ValidateUserCredentials resolves the account named by the credentials, by email
// when one is given and by phone otherwise.
type ValidateUserCredentials struct {
	accounts repository.AccountLookup
}

func NewValidateUserCredentials(accounts repository.AccountLookup) *ValidateUserCredentials {
	return &ValidateUserCredentials{accounts: accounts}
}

func (s *ValidateUserCredentials) Name() string { return "validate_user_credentials" }

func (s *ValidateUserCredentials) Handle(ctx context.Context, state *State) (Result, error) {
	creds := state.Credentials()
	if creds == nil {
		return Result{}, errors.New("credentials missing from flow state")
	}

	var (
		account *entity.Account
		err     error
	)
	if creds.Email != "" {
		account, err = s.accounts.FindByEmail(ctx, creds.Email)
	} else {
		account, err = s.accounts.FindByPhone(ctx, creds.Phone)
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to look up account: %w", err)
	}

	if account == nil {
		return Terminate(Fail(http.StatusUnauthorized, "Invalid credentials")), nil
	}

	state.SetUser(account)
	return Continue(), nil
}

// ValidatePassword checks the supplied password against the account's hash
type ValidatePassword struct {
	hasher service.PasswordHasher
}

func NewValidatePassword(hasher service.PasswordHasher) *ValidatePassword {
	return &ValidatePassword{hasher: hasher}
}

func (s *ValidatePassword) Name() string { return "validate_password" }

func (s *ValidatePassword) Handle(_ context.Context, state *State) (Result, error) {
	account := state.User()
	creds := state.Credentials()
	if account == nil || creds == nil {
		return Result{}, errors.New("account or credentials missing from flow state")
	}

	if err := s.hasher.Compare(account.PasswordHash, creds.Password); err != nil {
		if errors.Is(err, service.ErrPasswordMismatch) {
			return Terminate(Fail(http.StatusUnauthorized, "Invalid credentials")), nil
		}
		return Result{}, err
	}

	return Continue(), nil
}

// ValidateUserStatus only lets active accounts through
type ValidateUserStatus struct{}

func NewValidateUserStatus() *ValidateUserStatus {
	return &ValidateUserStatus{}
}

func (s *ValidateUserStatus) Name() string { return "validate_user_status" }

func (s *ValidateUserStatus) Handle(_ context.Context, state *State) (Result, error) {
	account := state.User()
	if account == nil {
		return Result{}, errors.New("account missing from flow state")
	}

	if !account.IsActive() {
		return Terminate(Fail(http.StatusForbidden, "Account is not active")), nil
	}

	return Continue(), nil
}

// GenerateAuthToken issues a session token for the account
type GenerateAuthToken struct {
	tokens   service.JWTService
	recorder LoginRecorder
	logger   *logger.Logger
}

// NewGenerateAuthToken creates the step. recorder may be nil.
func NewGenerateAuthToken(tokens service.JWTService, recorder LoginRecorder, logger *logger.Logger) *GenerateAuthToken {
	return &GenerateAuthToken{
		tokens:   tokens,
		recorder: recorder,
		logger:   logger,
	}
}

func (s *GenerateAuthToken) Name() string { return "generate_auth_token" }

func (s *GenerateAuthToken) Handle(ctx context.Context, state *State) (Result, error) {
	account := state.User()
	if account == nil {
		return Result{}, errors.New("account missing from flow state")
	}

	issued, err := s.tokens.GenerateToken(ctx, account)
	if err != nil {
		return Result{}, err
	}
	state.SetToken(issued)

	if s.recorder != nil {
		// Last-login failures do not fail the login.
		if err := s.recorder.UpdateLastLogin(ctx, account.ID); err != nil {
			s.logger.Warnw("Failed to update last login", "account_id", account.ID, "error", err)
		}
	}

	return Continue(), nil
}

// CheckPhoneExisting resolves the account that owns the phone in the flow state
type CheckPhoneExisting struct {
	accounts repository.AccountLookup
}

func NewCheckPhoneExisting(accounts repository.AccountLookup) *CheckPhoneExisting {
	return &CheckPhoneExisting{accounts: accounts}
}

func (s *CheckPhoneExisting) Name() string { return "check_phone_existing" }

func (s *CheckPhoneExisting) Handle(ctx context.Context, state *State) (Result, error) {
	account, err := s.accounts.FindByPhone(ctx, state.Phone())
	if err != nil {
		return Result{}, fmt.Errorf("failed to look up phone: %w", err)
	}

	if account == nil {
		return Terminate(Fail(http.StatusNotFound, "Phone number not found")), nil
	}

	state.SetUser(account)
	return Continue(), nil
}

// GenerateOtpCode issues a login code for the phone in the flow state
type GenerateOtpCode struct {
	otp service.OTPService
	ttl time.Duration
}

func NewGenerateOtpCode(otp service.OTPService, ttl time.Duration) *GenerateOtpCode {
	return &GenerateOtpCode{otp: otp, ttl: ttl}
}

func (s *GenerateOtpCode) Name() string { return "generate_otp_code" }

func (s *GenerateOtpCode) Handle(ctx context.Context, state *State) (Result, error) {
	code, err := s.otp.Generate(ctx, state.Phone(), entity.OTPPurposeLogin, s.ttl)
	if err != nil {
		if errors.Is(err, service.ErrRateLimited) {
			return Terminate(Fail(http.StatusTooManyRequests, "Too many OTP requests, please try again later")), nil
		}
		return Result{}, err
	}

	state.SetOTPCode(code)
	return Continue(), nil
}

// SendOtpNotification delivers the issued code. Delivery failures are logged only.
type SendOtpNotification struct {
	notifier service.Notifier
	logger   *logger.Logger
}

func NewSendOtpNotification(notifier service.Notifier, logger *logger.Logger) *SendOtpNotification {
	return &SendOtpNotification{notifier: notifier, logger: logger}
}

func (s *SendOtpNotification) Name() string { return "send_otp_notification" }

func (s *SendOtpNotification) Handle(ctx context.Context, state *State) (Result, error) {
	code := state.OTPCode()
	if code == "" {
		return Result{}, errors.New("otp code missing from flow state")
	}

	message := fmt.Sprintf("Your verification code is: %s", code)
	if err := s.notifier.Notify(ctx, state.Phone(), message); err != nil {
		s.logger.Errorw("Failed to send OTP notification", "phone_number", state.Phone(), "error", err)
	}

	return Continue(), nil
}

// VerifyOtpCode checks the submitted code for the phone in the flow state
type VerifyOtpCode struct {
	otp service.OTPService
}

func NewVerifyOtpCode(otp service.OTPService) *VerifyOtpCode {
	return &VerifyOtpCode{otp: otp}
}

func (s *VerifyOtpCode) Name() string { return "verify_otp_code" }

func (s *VerifyOtpCode) Handle(ctx context.Context, state *State) (Result, error) {
	outcome, err := s.otp.Verify(ctx, state.Phone(), state.OTPCode(), entity.OTPPurposeLogin)
	if err != nil {
		return Result{}, err
	}

	switch outcome.Status {
	case service.VerifyVerified:
		return Continue(), nil
	case service.VerifyMismatch:
		return Terminate(Fail(http.StatusUnauthorized, "Invalid OTP code")), nil
	case service.VerifyTooManyAttempts:
		return Terminate(Fail(http.StatusTooManyRequests, "Too many failed attempts, request a new code")), nil
	default:
		return Terminate(Fail(http.StatusUnauthorized, "Invalid or expired OTP")), nil
	}
}
