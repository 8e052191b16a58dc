package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage matches every persistence failure returned by this package
	ErrStorage = errors.New("storage failure")
	// ErrOTPAlreadyUsed is returned when a conditional update finds the record already consumed
	ErrOTPAlreadyUsed = errors.New("OTP not found or already used")
	// ErrOTPAttemptsExhausted is returned when a record has no guesses left
	ErrOTPAttemptsExhausted = errors.New("OTP attempts exhausted")
)

// StorageError wraps a driver error with the operation that failed
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStorage) true for any StorageError
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
