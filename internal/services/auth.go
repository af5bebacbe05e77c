package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/config"
	"github.com/sahafatech/tawsiya/pkg/models"
)

// AuthService issues and validates the JWT tokens API clients present.
// Issued tokens are tracked in Redis so revocation takes effect before
// expiry.
type AuthService struct {
	config *config.AuthConfig
	redis  *redis.Client
	logger *logrus.Logger
}

func NewAuthService(cfg *config.AuthConfig, redis *redis.Client, logger *logrus.Logger) *AuthService {
	return &AuthService{config: cfg, redis: redis, logger: logger}
}

// GenerateToken mints a token bound to the caller's API key and tier.
func (s *AuthService) GenerateToken(ctx context.Context, userID uuid.UUID, apiKey, tier string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.config.TokenTTL)

	claims := &models.JWTClaims{
		UserID:   userID,
		APIKey:   apiKey,
		UserTier: tier,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "tawsiya",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	if s.redis != nil {
		key := fmt.Sprintf("auth:token:%s", userID.String())
		if err := s.redis.Set(ctx, key, signed, s.config.TokenTTL).Err(); err != nil {
			s.logger.WithError(err).Warn("Failed to track issued token")
		}
	}

	return signed, expiresAt, nil
}

// ValidateToken parses and verifies a presented token, rejecting revoked
// ones.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if s.redis != nil {
		key := fmt.Sprintf("auth:token:%s", claims.UserID.String())
		tracked, err := s.redis.Get(ctx, key).Result()
		if err == nil && tracked != tokenString {
			return nil, fmt.Errorf("token revoked")
		}
	}

	return claims, nil
}

// RevokeToken drops the tracked token so subsequent validation fails.
func (s *AuthService) RevokeToken(ctx context.Context, userID uuid.UUID) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, fmt.Sprintf("auth:token:%s", userID.String())).Err()
}
