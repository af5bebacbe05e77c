package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/config"
	"github.com/sahafatech/tawsiya/pkg/models"
)

// RateLimitService enforces a fixed-window per-client request quota in the
// hot Redis tier, with a higher quota for premium tiers. When Redis is
// unavailable requests are allowed; rate limiting protects capacity, it is
// not an auth boundary.
type RateLimitService struct {
	redis  *redis.Client
	config *config.RateLimitConfig
	logger *logrus.Logger
}

func NewRateLimitService(redis *redis.Client, cfg *config.RateLimitConfig, logger *logrus.Logger) *RateLimitService {
	return &RateLimitService{redis: redis, config: cfg, logger: logger}
}

func (s *RateLimitService) limitFor(tier string) int {
	switch tier {
	case models.TierPremium, models.TierEnterprise:
		return s.config.Premium
	default:
		return s.config.Default
	}
}

// Allow counts the request against the client's current window and reports
// whether it fits the quota alongside the remaining budget.
func (s *RateLimitService) Allow(ctx context.Context, clientID, tier string) (bool, *models.RateLimitInfo, error) {
	window := s.config.Window
	if window <= 0 {
		window = time.Hour
	}
	limit := s.limitFor(tier)
	windowStart := time.Now().Truncate(window)

	info := &models.RateLimitInfo{
		Limit:     limit,
		Remaining: limit,
		ResetTime: windowStart.Add(window).Unix(),
	}
	if s.redis == nil || limit <= 0 {
		return true, info, nil
	}

	key := fmt.Sprintf("ratelimit:%s:%d", clientID, windowStart.Unix())

	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		s.logger.WithError(err).Debug("Rate limit counter unavailable, allowing request")
		return true, info, nil
	}
	if count == 1 {
		s.redis.Expire(ctx, key, window)
	}

	info.Remaining = limit - int(count)
	if info.Remaining < 0 {
		info.Remaining = 0
	}
	return int(count) <= limit, info, nil
}
