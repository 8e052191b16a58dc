package service

import "errors"

var (
	// ErrRateLimited is returned when an identifier asked for too many codes in the current window
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrInvalidToken covers malformed, expired and revoked session tokens
	ErrInvalidToken = errors.New("invalid token")
	// ErrPasswordMismatch is returned when a password does not match its hash
	ErrPasswordMismatch = errors.New("password does not match")
	// ErrAccountNotFound is returned when a looked-up account does not exist
	ErrAccountNotFound = errors.New("account not found")
)
