package entity

import (
	"time"
)

// AccountStatus gates what an account may do
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusInactive  AccountStatus = "inactive"
	AccountStatusPending   AccountStatus = "pending"
	AccountStatusSuspended AccountStatus = "suspended"
)

// Account represents a user account in the system
type Account struct {
	ID           int64         `db:"id" json:"id"`
	Name         string        `db:"name" json:"name"`
	Phone        string        `db:"phone" json:"phone" validate:"required,phone_number"`
	Email        *string       `db:"email" json:"email" validate:"omitempty,email"`
	PasswordHash string        `db:"password" json:"-"`
	Status       AccountStatus `db:"status" json:"status"`
	LastLoginAt  *time.Time    `db:"last_login_at" json:"last_login_at"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for the Account entity
func (Account) TableName() string {
	return "users"
}

// IsActive reports whether the account may authenticate
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// LoginRequest carries credentials; either email or phone identifies the account
type LoginRequest struct {
	Email    string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone    string `json:"phone" validate:"required_without=Email,omitempty,phone_number"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// AccountResponse is the public view of an account
type AccountResponse struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Phone       string        `json:"phone"`
	Email       *string       `json:"email"`
	Status      AccountStatus `json:"status"`
	LastLoginAt *time.Time    `json:"last_login_at"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewAccountResponse converts an Account to its public view
func NewAccountResponse(a *Account) AccountResponse {
	return AccountResponse{
		ID:          a.ID,
		Name:        a.Name,
		Phone:       a.Phone,
		Email:       a.Email,
		Status:      a.Status,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
	}
}

// AuthResponse represents the authentication response with JWT token
type AuthResponse struct {
	User      AccountResponse `json:"user"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// LogoutRequest represents the logout request structure
type LogoutRequest struct {
	LogoutAll bool `json:"logout_all,omitempty"`
}
