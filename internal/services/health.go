package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/database"
)

// HealthService reports dependency liveness for readiness probes.
type HealthService struct {
	db     *database.Database
	logger *logrus.Logger
}

func NewHealthService(db *database.Database, logger *logrus.Logger) *HealthService {
	return &HealthService{db: db, logger: logger}
}

type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// Check pings every backing store. Overall status degrades to "degraded" when
// any single dependency is down and "unhealthy" when Postgres is, since
// nothing can be served without it.
func (s *HealthService) Check(ctx context.Context) *HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	status := &HealthStatus{
		Status:     "healthy",
		Components: make(map[string]string),
		CheckedAt:  time.Now(),
	}

	if err := s.db.PG.Ping(ctx); err != nil {
		status.Components["postgres"] = "down"
		status.Status = "unhealthy"
	} else {
		status.Components["postgres"] = "up"
	}

	if err := s.db.Neo4j.VerifyConnectivity(ctx); err != nil {
		status.Components["neo4j"] = "down"
		if status.Status == "healthy" {
			status.Status = "degraded"
		}
	} else {
		status.Components["neo4j"] = "up"
	}

	if err := s.db.Redis.Hot.Ping(ctx).Err(); err != nil {
		status.Components["redis_hot"] = "down"
		if status.Status == "healthy" {
			status.Status = "degraded"
		}
	} else {
		status.Components["redis_hot"] = "up"
	}

	if err := s.db.Redis.Warm.Ping(ctx).Err(); err != nil {
		status.Components["redis_warm"] = "down"
		if status.Status == "healthy" {
			status.Status = "degraded"
		}
	} else {
		status.Components["redis_warm"] = "up"
	}

	return status
}
