package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/config"
	"github.com/sahafatech/tawsiya/pkg/models"
)

// ResultCache stores complete recommendation responses in the hot Redis tier.
// The cache is advisory: misses and Redis errors both fall through to the
// full pipeline, and a store failure is logged, never surfaced.
type ResultCache struct {
	redis  *redis.Client
	config *config.EngineConfig
	logger *logrus.Logger
}

func NewResultCache(redis *redis.Client, cfg *config.EngineConfig, logger *logrus.Logger) *ResultCache {
	return &ResultCache{redis: redis, config: cfg, logger: logger}
}

// Key derives the cache key from every request parameter that can change the
// response. Two requests differing in any factor, filter, or paging value get
// distinct keys; anonymous requests share the "anonymous" user segment.
func (c *ResultCache) Key(query *models.RecommendationQuery) string {
	user := "anonymous"
	if query.UserID != nil {
		user = query.UserID.String()
	}

	canonical, err := json.Marshal(query)
	if err != nil {
		canonical = []byte(fmt.Sprintf("%+v", query))
	}
	digest := sha256.Sum256(canonical)

	return fmt.Sprintf("rec:%s:%s:%s:%s",
		user, query.Type, query.Algorithm, hex.EncodeToString(digest[:16]))
}

func (c *ResultCache) Get(ctx context.Context, key string) (*models.RecommendationResponse, bool) {
	if c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Debug("Result cache read failed")
		}
		return nil, false
	}

	var response models.RecommendationResponse
	if err := json.Unmarshal(data, &response); err != nil {
		c.logger.WithError(err).Warn("Discarding undecodable cached response")
		c.redis.Del(ctx, key)
		return nil, false
	}
	response.Meta.CacheHit = true
	return &response, true
}

func (c *ResultCache) Set(ctx context.Context, key string, response *models.RecommendationResponse) {
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(response)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode response for caching")
		return
	}
	if err := c.redis.Set(ctx, key, data, c.config.Cache.ResultsTTL).Err(); err != nil {
		c.logger.WithError(err).Debug("Result cache write failed")
	}
}

// InvalidateUser drops every cached response for a user. Called when feedback
// changes the interest profile.
func (c *ResultCache) InvalidateUser(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}

	var cursor uint64
	pattern := fmt.Sprintf("rec:%s:*", userID)
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.logger.WithError(err).Debug("Result cache invalidation scan failed")
			return
		}
		if len(keys) > 0 {
			c.redis.Del(ctx, keys...)
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}
