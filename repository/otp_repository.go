package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clinic-auth/entity"

	"github.com/jmoiron/sqlx"
)

// CodeGenerator produces the plaintext code for a new OTP record
type CodeGenerator interface {
	Generate(length int) (string, error)
}

// OTPStore defines OTP persistence. It is the serialization point for concurrent
// issue and verify calls on the same identifier.
type OTPStore interface {
	CreateForIdentifier(ctx context.Context, identifier string, purpose entity.OTPPurpose, ttl time.Duration) (*entity.OTPRecord, error)
	FindValid(ctx context.Context, identifier string, purpose entity.OTPPurpose) (*entity.OTPRecord, error)
	MarkVerified(ctx context.Context, record *entity.OTPRecord) error
	IncrementAttempts(ctx context.Context, record *entity.OTPRecord, limit int) error
}

const otpColumns = "id, phone, code, type, expires_at, is_used, attempts, verified_at, created_at, updated_at"

// otpStore implements OTPStore on PostgreSQL
type otpStore struct {
	db         *sqlx.DB
	generator  CodeGenerator
	codeLength int
	now        func() time.Time
}

// NewOTPStore creates a new PostgreSQL OTP store
func NewOTPStore(db *sqlx.DB, generator CodeGenerator, codeLength int) OTPStore {
	return &otpStore{
		db:         db,
		generator:  generator,
		codeLength: codeLength,
		now:        time.Now,
	}
}

// CreateForIdentifier supersedes every valid record for (identifier, purpose) and
// inserts a fresh one inside a single transaction. The advisory lock serializes
// concurrent callers for the same pair so two valid records can never coexist.
func (r *otpStore) CreateForIdentifier(ctx context.Context, identifier string, purpose entity.OTPPurpose, ttl time.Duration) (*entity.OTPRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageError("begin otp transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	lockKey := fmt.Sprintf("otp:%s:%s", purpose, identifier)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return nil, storageError("lock otp identifier", err)
	}

	now := r.now()

	invalidate := `
		UPDATE otp_codes
		SET is_used = TRUE, updated_at = $3
		WHERE phone = $1 AND type = $2 AND is_used = FALSE AND verified_at IS NULL AND expires_at > $3
	`
	if _, err := tx.ExecContext(ctx, invalidate, identifier, string(purpose), now); err != nil {
		return nil, storageError("invalidate previous otps", err)
	}

	code, err := r.generator.Generate(r.codeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP code: %w", err)
	}

	insert := `
		INSERT INTO otp_codes (phone, code, type, expires_at, is_used, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, 0, $5, $5)
		RETURNING ` + otpColumns

	var created entity.OTPRecord
	if err := tx.GetContext(ctx, &created, insert, identifier, code, string(purpose), now.Add(ttl), now); err != nil {
		return nil, storageError("insert otp", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageError("commit otp transaction", err)
	}

	return &created, nil
}

// FindValid returns the newest unused, unverified, unexpired record or nil
func (r *otpStore) FindValid(ctx context.Context, identifier string, purpose entity.OTPPurpose) (*entity.OTPRecord, error) {
	query := `
		SELECT ` + otpColumns + `
		FROM otp_codes
		WHERE phone = $1 AND type = $2 AND is_used = FALSE AND verified_at IS NULL AND expires_at > $3
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var record entity.OTPRecord
	err := r.db.GetContext(ctx, &record, query, identifier, string(purpose), r.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageError("find valid otp", err)
	}

	return &record, nil
}

// MarkVerified consumes the record. Only the caller whose update hits a still-unused
// row succeeds; everyone else gets ErrOTPAlreadyUsed.
func (r *otpStore) MarkVerified(ctx context.Context, record *entity.OTPRecord) error {
	query := `
		UPDATE otp_codes
		SET is_used = TRUE, verified_at = $2, updated_at = $2
		WHERE id = $1 AND is_used = FALSE AND verified_at IS NULL
	`

	now := r.now()
	result, err := r.db.ExecContext(ctx, query, record.ID, now)
	if err != nil {
		return storageError("mark otp verified", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageError("mark otp verified rows affected", err)
	}

	if rowsAffected == 0 {
		return ErrOTPAlreadyUsed
	}

	record.IsUsed = true
	record.VerifiedAt = &now
	record.UpdatedAt = now
	return nil
}

// IncrementAttempts claims one guess against record before its code is compared.
// The limit check and the increment are a single statement, so concurrent guesses
// can never claim more than limit attempts. limit <= 0 means unbounded.
// ErrOTPAttemptsExhausted means the guesses are spent; ErrOTPAlreadyUsed means the
// record was consumed or superseded in the meantime.
func (r *otpStore) IncrementAttempts(ctx context.Context, record *entity.OTPRecord, limit int) error {
	query := `
		UPDATE otp_codes
		SET attempts = attempts + 1, updated_at = $2
		WHERE id = $1 AND is_used = FALSE AND verified_at IS NULL AND ($3 <= 0 OR attempts < $3)
		RETURNING attempts
	`

	var attempts int
	err := r.db.GetContext(ctx, &attempts, query, record.ID, r.now(), limit)
	if err == nil {
		record.Attempts = attempts
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return storageError("increment otp attempts", err)
	}

	return r.rejectedAttempt(ctx, record)
}

// rejectedAttempt works out why IncrementAttempts matched no row
func (r *otpStore) rejectedAttempt(ctx context.Context, record *entity.OTPRecord) error {
	var current struct {
		IsUsed     bool       `db:"is_used"`
		Attempts   int        `db:"attempts"`
		VerifiedAt *time.Time `db:"verified_at"`
	}

	err := r.db.GetContext(ctx, &current, `SELECT is_used, attempts, verified_at FROM otp_codes WHERE id = $1`, record.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOTPAlreadyUsed
		}
		return storageError("read otp attempts", err)
	}

	if current.IsUsed || current.VerifiedAt != nil {
		return ErrOTPAlreadyUsed
	}

	record.Attempts = current.Attempts
	return ErrOTPAttemptsExhausted
}
