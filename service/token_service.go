package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clinic-auth/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// TokenInfo stores token metadata in Redis
type TokenInfo struct {
	AccountID int64     `json:"account_id"`
	TokenID   string    `json:"token_id"`
	TokenHash string    `json:"token_hash"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenService handles session token storage and revocation in Redis
type TokenService struct {
	redis  *redis.Client
	logger *logger.Logger
}

// NewTokenService creates a new token service
func NewTokenService(redis *redis.Client, logger *logger.Logger) *TokenService {
	return &TokenService{
		redis:  redis,
		logger: logger,
	}
}

func tokenKey(tokenHash string) string {
	return "token:" + tokenHash
}

func accountTokensKey(accountID int64) string {
	return fmt.Sprintf("account_tokens:%d", accountID)
}

// StoreToken stores token information in Redis for the token's lifetime
func (s *TokenService) StoreToken(ctx context.Context, info *TokenInfo, expiration time.Duration) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal token info: %w", err)
	}

	accountKey := accountTokensKey(info.AccountID)

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, tokenKey(info.TokenHash), data, expiration)
	pipe.SAdd(ctx, accountKey, info.TokenHash)
	// The index outlives its newest token by a margin
	pipe.Expire(ctx, accountKey, expiration+time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Errorw("Failed to store token in Redis", "account_id", info.AccountID, "error", err)
		return fmt.Errorf("failed to store token in Redis: %w", err)
	}

	s.logger.Infow("Token stored successfully", "account_id", info.AccountID, "token_id", info.TokenID)
	return nil
}

// ValidateToken checks that the token has not expired or been revoked
func (s *TokenService) ValidateToken(ctx context.Context, tokenHash string) (*TokenInfo, error) {
	data, err := s.redis.Get(ctx, tokenKey(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: token not found or expired", ErrInvalidToken)
	}
	if err != nil {
		s.logger.Errorw("Failed to get token from Redis", "error", err)
		return nil, fmt.Errorf("failed to get token from Redis: %w", err)
	}

	var info TokenInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token info: %w", err)
	}

	return &info, nil
}

// RevokeToken removes a single token (logout)
func (s *TokenService) RevokeToken(ctx context.Context, accountID int64, tokenHash string) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, tokenKey(tokenHash))
	pipe.SRem(ctx, accountTokensKey(accountID), tokenHash)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Errorw("Failed to revoke token", "account_id", accountID, "error", err)
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.logger.Infow("Token revoked successfully", "account_id", accountID)
	return nil
}

// RevokeAllAccountTokens revokes every token issued to an account
func (s *TokenService) RevokeAllAccountTokens(ctx context.Context, accountID int64) (int, error) {
	accountKey := accountTokensKey(accountID)

	tokenHashes, err := s.redis.SMembers(ctx, accountKey).Result()
	if err != nil {
		s.logger.Errorw("Failed to get account tokens", "account_id", accountID, "error", err)
		return 0, fmt.Errorf("failed to get account tokens: %w", err)
	}

	pipe := s.redis.TxPipeline()
	for _, tokenHash := range tokenHashes {
		pipe.Del(ctx, tokenKey(tokenHash))
	}
	pipe.Del(ctx, accountKey)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Errorw("Failed to revoke all account tokens", "account_id", accountID, "error", err)
		return 0, fmt.Errorf("failed to revoke all account tokens: %w", err)
	}

	s.logger.Infow("All account tokens revoked", "account_id", accountID, "token_count", len(tokenHashes))
	return len(tokenHashes), nil
}
