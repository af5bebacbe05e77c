package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Client tiers. The tier decides the rate-limit quota applied to the
// recommendations endpoints.
const (
	TierFree       = "free"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

// JWTClaims is the token payload issued to API clients. UserID may be the
// zero UUID for service-level keys that request recommendations on behalf
// of anonymous visitors.
type JWTClaims struct {
	UserID   uuid.UUID `json:"user_id"`
	APIKey   string    `json:"api_key,omitempty"`
	UserTier string    `json:"user_tier"`
	jwt.RegisteredClaims
}

type AuthRequest struct {
	APIKey string `json:"api_key" validate:"required"`
	UserID string `json:"user_id,omitempty"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserTier  string    `json:"user_tier"`
}

// RateLimitInfo is surfaced to clients through the X-RateLimit-* headers.
type RateLimitInfo struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}
