package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/config"
)

const connectTimeout = 10 * time.Second

// Database bundles the three stores the ranking pipeline reads and writes:
// Postgres holds content, interactions, interests and served recommendations;
// Neo4j holds the user-content interaction graph used by collaborative
// scoring; Redis holds the short-lived caches and counters.
type Database struct {
	PG     *pgxpool.Pool
	Neo4j  neo4j.DriverWithContext
	Redis  *RedisClients
	logger *logrus.Logger
}

// RedisClients splits cache traffic by volatility. Hot carries rate-limit
// counters and issued tokens, Warm carries result and profile caches.
type RedisClients struct {
	Hot  *redis.Client
	Warm *redis.Client
}

func New(cfg *config.Config, logger *logrus.Logger) (*Database, error) {
	pg, err := connectPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	logger.WithField("component", "postgres").Info("Connection established")

	graph, err := connectNeo4j(cfg.Neo4j)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("neo4j: %w", err)
	}
	logger.WithField("component", "neo4j").Info("Connection established")

	rc, err := connectRedis(cfg.Redis)
	if err != nil {
		pg.Close()
		closeCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		graph.Close(closeCtx)
		return nil, fmt.Errorf("redis: %w", err)
	}
	logger.WithField("component", "redis").Info("Connections established")

	return &Database{PG: pg, Neo4j: graph, Redis: rc, logger: logger}, nil
}

func connectPostgres(cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.MaxLifetime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

func connectNeo4j(cfg config.Neo4jConfig) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URL,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = 10
			c.ConnectionAcquisitionTimeout = 30 * time.Second
		},
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify connectivity: %w", err)
	}
	return driver, nil
}

func connectRedis(cfg config.RedisConfig) (*RedisClients, error) {
	open := func(ic config.RedisInstanceConfig) *redis.Client {
		return redis.NewClient(&redis.Options{
			Addr:         ic.URL,
			MaxRetries:   ic.MaxRetries,
			PoolSize:     ic.PoolSize,
			ReadTimeout:  ic.Timeout,
			WriteTimeout: ic.Timeout,
		})
	}
	rc := &RedisClients{Hot: open(cfg.Hot), Warm: open(cfg.Warm)}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rc.Hot.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping hot tier: %w", err)
	}
	if err := rc.Warm.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping warm tier: %w", err)
	}
	return rc, nil
}

// Close releases every connection, continuing past individual failures so
// one stuck store does not leak the others.
func (db *Database) Close() error {
	var errs []error

	if db.PG != nil {
		db.PG.Close()
	}

	if db.Neo4j != nil {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := db.Neo4j.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("neo4j: %w", err))
		}
	}

	if db.Redis != nil {
		if db.Redis.Hot != nil {
			if err := db.Redis.Hot.Close(); err != nil {
				errs = append(errs, fmt.Errorf("redis hot: %w", err))
			}
		}
		if db.Redis.Warm != nil {
			if err := db.Redis.Warm.Close(); err != nil {
				errs = append(errs, fmt.Errorf("redis warm: %w", err))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	db.logger.Info("Database connections closed")
	return nil
}
