package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"clinic-auth/config"
	"clinic-auth/entity"
	"clinic-auth/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTService interface defines JWT operations
type JWTService interface {
	GenerateToken(ctx context.Context, account *entity.Account) (*IssuedToken, error)
	ValidateToken(ctx context.Context, tokenString string) (*JWTClaims, error)
	RevokeToken(ctx context.Context, claims *JWTClaims, tokenString string) error
	RevokeAllAccountTokens(ctx context.Context, accountID int64) (int, error)
}

// IssuedToken is a freshly signed session token
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// JWTClaims represents the JWT claims
type JWTClaims struct {
	AccountID int64  `json:"account_id"`
	Phone     string `json:"phone"`
	jwt.RegisteredClaims
}

// jwtService implements JWTService interface
type jwtService struct {
	cfg          *config.Config
	logger       *logger.Logger
	tokenService *TokenService
	now          func() time.Time
}

// NewJWTService creates a new JWT service instance. tokenService may be nil, in
// which case tokens are stateless and cannot be revoked.
func NewJWTService(cfg *config.Config, logger *logger.Logger, tokenService *TokenService) JWTService {
	return &jwtService{
		cfg:          cfg,
		logger:       logger,
		tokenService: tokenService,
		now:          time.Now,
	}
}

// GenerateToken signs a token for the account and registers it as a session
func (s *jwtService) GenerateToken(ctx context.Context, account *entity.Account) (*IssuedToken, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.JWT.ExpirationTime)
	tokenID := uuid.NewString()

	claims := JWTClaims{
		AccountID: account.ID,
		Phone:     account.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.cfg.JWT.Issuer,
			Subject:   strconv.FormatInt(account.ID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		s.logger.Errorw("Failed to sign JWT token", "account_id", account.ID, "error", err)
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if s.tokenService != nil {
		info := &TokenInfo{
			AccountID: account.ID,
			TokenID:   tokenID,
			TokenHash: hashToken(tokenString),
			IssuedAt:  now,
			ExpiresAt: expiresAt,
		}
		if err := s.tokenService.StoreToken(ctx, info, s.cfg.JWT.ExpirationTime); err != nil {
			return nil, fmt.Errorf("failed to register session: %w", err)
		}
	}

	s.logger.Infow("JWT token generated", "account_id", account.ID, "token_id", tokenID, "expires_at", expiresAt)

	return &IssuedToken{Token: tokenString, ExpiresAt: expiresAt}, nil
}

// ValidateToken verifies signature, expiry and, when sessions are tracked, revocation
func (s *jwtService) ValidateToken(ctx context.Context, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWT.Secret), nil
	},
		jwt.WithIssuer(s.cfg.JWT.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		s.logger.Warnw("Failed to validate JWT token", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if s.tokenService != nil {
		if _, err := s.tokenService.ValidateToken(ctx, hashToken(tokenString)); err != nil {
			s.logger.Warnw("Token not found in Redis or expired", "token_id", claims.ID, "error", err)
			return nil, fmt.Errorf("%w: session expired", ErrInvalidToken)
		}
	}

	return claims, nil
}

// RevokeToken revokes a specific token (logout)
func (s *jwtService) RevokeToken(ctx context.Context, claims *JWTClaims, tokenString string) error {
	if s.tokenService == nil {
		return fmt.Errorf("token service not available")
	}
	return s.tokenService.RevokeToken(ctx, claims.AccountID, hashToken(tokenString))
}

// RevokeAllAccountTokens revokes all tokens for an account (logout from all devices)
func (s *jwtService) RevokeAllAccountTokens(ctx context.Context, accountID int64) (int, error) {
	if s.tokenService == nil {
		return 0, fmt.Errorf("token service not available")
	}
	return s.tokenService.RevokeAllAccountTokens(ctx, accountID)
}

// hashToken is the Redis key material for a token; raw tokens are never stored
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
