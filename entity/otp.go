package entity

import (
	"time"
)

// OTPPurpose classifies what an OTP was issued for
type OTPPurpose string

const (
	OTPPurposeRegistration  OTPPurpose = "registration"
	OTPPurposeLogin         OTPPurpose = "login"
	OTPPurposePasswordReset OTPPurpose = "password_reset"
	OTPPurposeVerification  OTPPurpose = "verification"
)

// OTPPurposes returns every known purpose
func OTPPurposes() []OTPPurpose {
	return []OTPPurpose{
		OTPPurposeRegistration,
		OTPPurposeLogin,
		OTPPurposePasswordReset,
		OTPPurposeVerification,
	}
}

// IsValid reports whether p is a known purpose
func (p OTPPurpose) IsValid() bool {
	for _, known := range OTPPurposes() {
		if p == known {
			return true
		}
	}
	return false
}

// Label returns a human readable name
func (p OTPPurpose) Label() string {
	switch p {
	case OTPPurposeRegistration:
		return "Registration"
	case OTPPurposeLogin:
		return "Login"
	case OTPPurposePasswordReset:
		return "Password Reset"
	case OTPPurposeVerification:
		return "Verification"
	default:
		return string(p)
	}
}

// OTPState is the lifecycle state of an OTP record, derived at read time
type OTPState string

const (
	OTPStateActive     OTPState = "active"
	OTPStateVerified   OTPState = "verified"
	OTPStateExpired    OTPState = "expired"
	OTPStateSuperseded OTPState = "superseded"
)

// OTPRecord represents a stored one-time passcode
type OTPRecord struct {
	ID         int64      `db:"id" json:"id"`
	Identifier string     `db:"phone" json:"phone"`
	Code       string     `db:"code" json:"-"`
	Purpose    OTPPurpose `db:"type" json:"type"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	IsUsed     bool       `db:"is_used" json:"is_used"`
	Attempts   int        `db:"attempts" json:"attempts"`
	VerifiedAt *time.Time `db:"verified_at" json:"verified_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for the OTP entity
func (OTPRecord) TableName() string {
	return "otp_codes"
}

// IsExpired reports whether the record's expiry is at or before now
func (o *OTPRecord) IsExpired(now time.Time) bool {
	return !o.ExpiresAt.After(now)
}

// IsValid reports whether the record can still be verified
func (o *OTPRecord) IsValid(now time.Time) bool {
	return !o.IsExpired(now) && !o.IsUsed && o.VerifiedAt == nil
}

// State derives the lifecycle state. Used records win over expiry: a code that was
// verified or superseded stays that way after its TTL passes.
func (o *OTPRecord) State(now time.Time) OTPState {
	switch {
	case o.VerifiedAt != nil:
		return OTPStateVerified
	case o.IsUsed:
		return OTPStateSuperseded
	case o.IsExpired(now):
		return OTPStateExpired
	default:
		return OTPStateActive
	}
}

// VerifyPhoneRequest represents the request to send a login OTP to a phone
type VerifyPhoneRequest struct {
	Phone string `json:"phone" validate:"required,phone_number"`
}

// VerifyOTPRequest represents the request to exchange a phone OTP for a session
type VerifyOTPRequest struct {
	Phone string `json:"phone" validate:"required,phone_number"`
	Code  string `json:"code" validate:"required,otp_code"`
}

// PhoneVerificationResponse is returned after an OTP was issued. It never carries the code.
type PhoneVerificationResponse struct {
	Phone  string `json:"phone"`
	UserID int64  `json:"user_id"`
}
