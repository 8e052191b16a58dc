package service

import (
	"context"
	"fmt"

	"clinic-auth/entity"
	"clinic-auth/pkg/logger"
	"clinic-auth/repository"
)

// AccountService interface defines account read operations
type AccountService interface {
	GetByID(ctx context.Context, id int64) (*entity.AccountResponse, error)
}

// accountService implements AccountService interface
type accountService struct {
	accountRepo repository.AccountRepository
	logger      *logger.Logger
}

// NewAccountService creates a new account service instance
func NewAccountService(accountRepo repository.AccountRepository, logger *logger.Logger) AccountService {
	return &accountService{
		accountRepo: accountRepo,
		logger:      logger,
	}
}

// GetByID retrieves an account by ID
func (s *accountService) GetByID(ctx context.Context, id int64) (*entity.AccountResponse, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Errorw("Failed to get account by ID", "account_id", id, "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if account == nil {
		return nil, ErrAccountNotFound
	}

	response := entity.NewAccountResponse(account)
	return &response, nil
}
