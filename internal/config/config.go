package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Neo4j      Neo4jConfig      `mapstructure:"neo4j"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Security   SecurityConfig   `mapstructure:"security"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Hot  RedisInstanceConfig `mapstructure:"hot"`
	Warm RedisInstanceConfig `mapstructure:"warm"`
}

type RedisInstanceConfig struct {
	URL        string        `mapstructure:"url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type Neo4jConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topics  struct {
		RecommendationEvents string `mapstructure:"recommendation_events"`
		FeedbackEvents       string `mapstructure:"feedback_events"`
	} `mapstructure:"topics"`
}

type AuthConfig struct {
	JWTSecret string          `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration   `mapstructure:"token_ttl"`
	APIKeys   map[string]string `mapstructure:"api_keys"` // key -> tier
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Default int           `mapstructure:"default"`
	Premium int           `mapstructure:"premium"`
	Window  time.Duration `mapstructure:"window"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig holds the tunables of the ranking pipeline.
type EngineConfig struct {
	BehaviorWindowDays      int           `mapstructure:"behavior_window_days"`
	MinInteractions         int           `mapstructure:"min_interactions"`
	InterestWeightThreshold float64       `mapstructure:"interest_weight_threshold"`
	InterestRefreshInterval time.Duration `mapstructure:"interest_refresh_interval"`
	GeneratorTimeout        time.Duration `mapstructure:"generator_timeout"`
	RequestTimeout          time.Duration `mapstructure:"request_timeout"`
	CandidateMultiplier     int           `mapstructure:"candidate_multiplier"`
	FreshnessHorizonDays    int           `mapstructure:"freshness_horizon_days"`

	DefaultDiversityFactor   float64 `mapstructure:"default_diversity_factor"`
	DefaultFreshnessFactor   float64 `mapstructure:"default_freshness_factor"`
	DefaultPersonalityFactor float64 `mapstructure:"default_personality_factor"`

	Collaborative CollaborativeConfig `mapstructure:"collaborative"`
	Trending      TrendingConfig      `mapstructure:"trending"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Feedback      FeedbackConfig      `mapstructure:"feedback"`
}

type CollaborativeConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MinSharedItems      int     `mapstructure:"min_shared_items"`
	MaxSimilarUsers     int     `mapstructure:"max_similar_users"`
}

type TrendingConfig struct {
	WindowHours int `mapstructure:"window_hours"`
	MinViews    int `mapstructure:"min_views"`
}

type CacheConfig struct {
	ResultsTTL time.Duration `mapstructure:"results_ttl"`
	ProfileTTL time.Duration `mapstructure:"profile_ttl"`
}

type FeedbackConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_time", "15m")
	viper.SetDefault("database.max_lifetime", "1h")
	viper.SetDefault("database.connect_timeout", "10s")

	// Redis defaults
	viper.SetDefault("redis.hot.max_retries", 3)
	viper.SetDefault("redis.hot.pool_size", 10)
	viper.SetDefault("redis.hot.timeout", "5s")
	viper.SetDefault("redis.warm.max_retries", 3)
	viper.SetDefault("redis.warm.pool_size", 5)
	viper.SetDefault("redis.warm.timeout", "10s")

	// Kafka defaults
	viper.SetDefault("kafka.topics.recommendation_events", "recommendation-events")
	viper.SetDefault("kafka.topics.feedback_events", "feedback-events")

	// Auth defaults
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("auth.rate_limit.default", 1000)
	viper.SetDefault("auth.rate_limit.premium", 10000)
	viper.SetDefault("auth.rate_limit.window", "1h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Engine defaults
	viper.SetDefault("engine.behavior_window_days", 30)
	viper.SetDefault("engine.min_interactions", 3)
	viper.SetDefault("engine.interest_weight_threshold", 0.1)
	viper.SetDefault("engine.interest_refresh_interval", "24h")
	viper.SetDefault("engine.generator_timeout", "1500ms")
	viper.SetDefault("engine.request_timeout", "3s")
	viper.SetDefault("engine.candidate_multiplier", 3)
	viper.SetDefault("engine.freshness_horizon_days", 30)
	viper.SetDefault("engine.default_diversity_factor", 0.3)
	viper.SetDefault("engine.default_freshness_factor", 0.2)
	viper.SetDefault("engine.default_personality_factor", 0.5)
	viper.SetDefault("engine.collaborative.similarity_threshold", 0.1)
	viper.SetDefault("engine.collaborative.min_shared_items", 2)
	viper.SetDefault("engine.collaborative.max_similar_users", 25)
	viper.SetDefault("engine.trending.window_hours", 48)
	viper.SetDefault("engine.trending.min_views", 10)
	viper.SetDefault("engine.cache.results_ttl", "600s")
	viper.SetDefault("engine.cache.profile_ttl", "5m")
	viper.SetDefault("engine.feedback.workers", 4)
	viper.SetDefault("engine.feedback.queue_size", 1000)

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")

	// Security defaults
	viper.SetDefault("security.cors.allowed_origins", []string{"*"})
	viper.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("security.cors.allowed_headers", []string{"*"})
}
