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

// AccountLookup finds accounts by the identifiers a user can log in with.
// A missing account is (nil, nil).
type AccountLookup interface {
	FindByPhone(ctx context.Context, phone string) (*entity.Account, error)
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)
}

// AccountRepository interface defines account data operations
type AccountRepository interface {
	AccountLookup
	Create(ctx context.Context, account *entity.Account) (*entity.Account, error)
	GetByID(ctx context.Context, id int64) (*entity.Account, error)
	UpdateLastLogin(ctx context.Context, id int64) error
}

const accountColumns = "id, name, phone, email, password, status, last_login_at, created_at, updated_at"

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new account repository instance
func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepository{
		db: db,
	}
}

// Create creates a new account
func (r *accountRepository) Create(ctx context.Context, account *entity.Account) (*entity.Account, error) {
	query := `
		INSERT INTO users (name, phone, email, password, status, created_at, updated_at)
		VALUES (:name, :phone, :email, :password, :status, :created_at, :updated_at)
		RETURNING ` + accountColumns

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.Status == "" {
		account.Status = entity.AccountStatusPending
	}

	rows, err := r.db.NamedQueryContext(ctx, query, account)
	if err != nil {
		return nil, storageError("create account", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, storageError("create account", fmt.Errorf("no row returned"))
	}

	var created entity.Account
	if err := rows.StructScan(&created); err != nil {
		return nil, storageError("scan created account", err)
	}

	return &created, nil
}

// GetByID retrieves an account by ID
func (r *accountRepository) GetByID(ctx context.Context, id int64) (*entity.Account, error) {
	return r.getOne(ctx, "get account by id", `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
}

// FindByPhone retrieves an account by phone number
func (r *accountRepository) FindByPhone(ctx context.Context, phone string) (*entity.Account, error) {
	return r.getOne(ctx, "get account by phone", `SELECT `+accountColumns+` FROM users WHERE phone = $1`, phone)
}

// FindByEmail retrieves an account by email, case-insensitively
func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return r.getOne(ctx, "get account by email", `SELECT `+accountColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *accountRepository) getOne(ctx context.Context, op, query string, arg interface{}) (*entity.Account, error) {
	var account entity.Account
	err := r.db.GetContext(ctx, &account, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageError(op, err)
	}

	return &account, nil
}

// UpdateLastLogin updates the last login timestamp for an account
func (r *accountRepository) UpdateLastLogin(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET last_login_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return storageError("update last login", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageError("update last login rows affected", err)
	}

	if rowsAffected == 0 {
		return storageError("update last login", fmt.Errorf("account %d not found", id))
	}

	return nil
}
