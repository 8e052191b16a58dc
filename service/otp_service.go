package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"clinic-auth/config"
	"clinic-auth/entity"
	"clinic-auth/pkg/logger"
	"clinic-auth/repository"
)

// VerifyStatus is the typed result of an OTP verification attempt
type VerifyStatus int

const (
	// VerifyNotFound means no valid code exists for the identifier and purpose
	VerifyNotFound VerifyStatus = iota
	// VerifyMismatch means a valid code exists but the guess was wrong
	VerifyMismatch
	// VerifyTooManyAttempts means the valid code has used up its guesses
	VerifyTooManyAttempts
	// VerifyVerified means the code matched and has now been consumed
	VerifyVerified
)

func (s VerifyStatus) String() string {
	switch s {
	case VerifyNotFound:
		return "not_found"
	case VerifyMismatch:
		return "mismatch"
	case VerifyTooManyAttempts:
		return "too_many_attempts"
	case VerifyVerified:
		return "verified"
	default:
		return fmt.Sprintf("verify_status(%d)", int(s))
	}
}

// VerifyOutcome carries the verification status and, when Verified, the consumed record
type VerifyOutcome struct {
	Status VerifyStatus
	Record *entity.OTPRecord
}

// Verified reports whether the code was accepted
func (o VerifyOutcome) Verified() bool {
	return o.Status == VerifyVerified
}

// OTPService interface defines OTP business operations. It is the only component
// allowed to move an OTP record out of the Active state.
type OTPService interface {
	Generate(ctx context.Context, identifier string, purpose entity.OTPPurpose, ttl time.Duration) (string, error)
	Verify(ctx context.Context, identifier, code string, purpose entity.OTPPurpose) (VerifyOutcome, error)
}

// otpService implements OTPService interface
type otpService struct {
	store         repository.OTPStore
	rateLimitRepo repository.RateLimitRepository
	cfg           *config.Config
	logger        *logger.Logger
}

// NewOTPService creates a new OTP service instance. rateLimitRepo may be nil to
// disable issuance throttling.
func NewOTPService(store repository.OTPStore, rateLimitRepo repository.RateLimitRepository, cfg *config.Config, logger *logger.Logger) OTPService {
	return &otpService{
		store:         store,
		rateLimitRepo: rateLimitRepo,
		cfg:           cfg,
		logger:        logger,
	}
}

// Generate issues a fresh code for (identifier, purpose) and returns only the plaintext.
// The caller delivers it; it must never be logged or returned to the client.
func (s *otpService) Generate(ctx context.Context, identifier string, purpose entity.OTPPurpose, ttl time.Duration) (string, error) {
	if !purpose.IsValid() {
		return "", fmt.Errorf("unknown OTP purpose %q", purpose)
	}
	if ttl <= 0 {
		ttl = s.cfg.OTP.ExpirationTime
	}

	if err := s.checkRateLimit(ctx, identifier, purpose); err != nil {
		return "", err
	}

	record, err := s.store.CreateForIdentifier(ctx, identifier, purpose, ttl)
	if err != nil {
		s.logger.Errorw("Failed to create OTP", "phone_number", identifier, "purpose", purpose, "error", err)
		return "", fmt.Errorf("failed to create OTP: %w", err)
	}

	s.logger.Infow("OTP generated",
		"otp_id", record.ID,
		"phone_number", identifier,
		"purpose", purpose,
		"expires_at", record.ExpiresAt)

	return record.Code, nil
}

// checkRateLimit counts this request against the issuance window before anything is persisted
func (s *otpService) checkRateLimit(ctx context.Context, identifier string, purpose entity.OTPPurpose) error {
	if s.rateLimitRepo == nil || !s.cfg.RateLimit.Enabled {
		return nil
	}

	key := fmt.Sprintf("otp:%s:%s", purpose, identifier)
	count, err := s.rateLimitRepo.Hit(ctx, key, s.cfg.RateLimit.WindowDuration)
	if err != nil {
		s.logger.Errorw("Failed to check rate limit", "phone_number", identifier, "error", err)
		return fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count > int64(s.cfg.RateLimit.MaxRequests) {
		s.logger.Warnw("OTP rate limit exceeded",
			"phone_number", identifier,
			"purpose", purpose,
			"request_count", count,
			"max_requests", s.cfg.RateLimit.MaxRequests)
		return fmt.Errorf("%w: maximum %d requests per %v", ErrRateLimited, s.cfg.RateLimit.MaxRequests, s.cfg.RateLimit.WindowDuration)
	}

	return nil
}

// Verify checks code against the valid record for (identifier, purpose)
func (s *otpService) Verify(ctx context.Context, identifier, code string, purpose entity.OTPPurpose) (VerifyOutcome, error) {
	record, err := s.store.FindValid(ctx, identifier, purpose)
	if err != nil {
		s.logger.Errorw("Failed to get OTP", "phone_number", identifier, "purpose", purpose, "error", err)
		return VerifyOutcome{}, fmt.Errorf("failed to verify OTP: %w", err)
	}

	if record == nil {
		s.logger.Warnw("No valid OTP", "phone_number", identifier, "purpose", purpose)
		return VerifyOutcome{Status: VerifyNotFound}, nil
	}

	// Every guess claims an attempt before the comparison
	if err := s.store.IncrementAttempts(ctx, record, s.cfg.OTP.MaxAttempts); err != nil {
		switch {
		case errors.Is(err, repository.ErrOTPAttemptsExhausted):
			s.logger.Warnw("OTP attempts exhausted", "otp_id", record.ID, "attempts", record.Attempts)
			return VerifyOutcome{Status: VerifyTooManyAttempts}, nil
		case errors.Is(err, repository.ErrOTPAlreadyUsed):
			s.logger.Warnw("OTP consumed concurrently", "otp_id", record.ID)
			return VerifyOutcome{Status: VerifyNotFound}, nil
		}
		s.logger.Errorw("Failed to record OTP attempt", "otp_id", record.ID, "error", err)
		return VerifyOutcome{}, fmt.Errorf("failed to record OTP attempt: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		s.logger.Warnw("OTP mismatch", "otp_id", record.ID, "attempts", record.Attempts)
		return VerifyOutcome{Status: VerifyMismatch}, nil
	}

	if err := s.store.MarkVerified(ctx, record); err != nil {
		if errors.Is(err, repository.ErrOTPAlreadyUsed) {
			// A concurrent verify consumed the record first.
			s.logger.Warnw("OTP consumed concurrently", "otp_id", record.ID)
			return VerifyOutcome{Status: VerifyNotFound}, nil
		}
		s.logger.Errorw("Failed to mark OTP as verified", "otp_id", record.ID, "error", err)
		return VerifyOutcome{}, fmt.Errorf("failed to mark OTP as verified: %w", err)
	}

	s.logger.Infow("OTP verified", "otp_id", record.ID, "phone_number", identifier, "purpose", purpose)
	return VerifyOutcome{Status: VerifyVerified, Record: record}, nil
}
