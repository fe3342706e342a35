package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/warden/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Database configuration
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration
	Redis RedisConfig `yaml:"redis"`

	// Session token configuration
	Session SessionConfig `yaml:"session"`

	// Audit retention and archival
	Retention RetentionConfig `yaml:"retention"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	MaxRetries int    `yaml:"max_retries"`
	PoolSize   int    `yaml:"pool_size"`
}

// SessionConfig holds session token settings
type SessionConfig struct {
	Secret string        `yaml:"secret"`
	Issuer string        `yaml:"issuer"`
	TTL    time.Duration `yaml:"ttl"`
}

// RetentionConfig holds audit retention and archival settings
type RetentionConfig struct {
	MaxAge       time.Duration `yaml:"max_age"`
	Schedule     string        `yaml:"schedule"`
	BatchSize    int           `yaml:"batch_size"`
	S3Bucket     string        `yaml:"s3_bucket"`
	S3Region     string        `yaml:"s3_region"`
	S3Endpoint   string        `yaml:"s3_endpoint"`
	S3AccessKey  string        `yaml:"s3_access_key"`
	S3SecretKey  string        `yaml:"s3_secret_key"`
	UsePathStyle bool          `yaml:"s3_use_path_style"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// LoadConfig loads configuration from the environment, optionally overlaid
// on a YAML file named by WARDEN_CONFIG_FILE. Environment variables win.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("WARDEN_CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectTimeout:  10 * time.Second,
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
			DB:  -1,
		},
		Session: SessionConfig{
			Issuer: "warden",
			TTL:    12 * time.Hour,
		},
		Retention: RetentionConfig{
			MaxAge:    180 * 24 * time.Hour,
			Schedule:  "0 3 * * *",
			BatchSize: 1000,
			S3Region:  "us-east-1",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEnabled:        false,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "warden",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("WARDEN_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("WARDEN_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("WARDEN_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("WARDEN_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("WARDEN_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("WARDEN_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.HealthPort = getEnv("WARDEN_HEALTH_PORT", cfg.Server.HealthPort)

	cfg.Database.URL = getEnv("WARDEN_POSTGRES_URL", cfg.Database.URL)
	cfg.Database.MaxOpenConns = getEnvInt("WARDEN_POSTGRES_MAX_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvInt("WARDEN_POSTGRES_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = getEnvDuration("WARDEN_POSTGRES_CONN_LIFETIME", cfg.Database.ConnMaxLifetime)
	cfg.Database.ConnectTimeout = getEnvDuration("WARDEN_POSTGRES_TIMEOUT", cfg.Database.ConnectTimeout)

	cfg.Redis.URL = getEnv("WARDEN_REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Password = getEnv("WARDEN_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("WARDEN_REDIS_DB", cfg.Redis.DB)
	cfg.Redis.MaxRetries = getEnvInt("WARDEN_REDIS_MAX_RETRIES", cfg.Redis.MaxRetries)
	cfg.Redis.PoolSize = getEnvInt("WARDEN_REDIS_POOL_SIZE", cfg.Redis.PoolSize)

	cfg.Session.Secret = getEnv("WARDEN_SESSION_SECRET", cfg.Session.Secret)
	cfg.Session.Issuer = getEnv("WARDEN_SESSION_ISSUER", cfg.Session.Issuer)
	cfg.Session.TTL = getEnvDuration("WARDEN_SESSION_TTL", cfg.Session.TTL)

	cfg.Retention.MaxAge = getEnvDuration("WARDEN_RETENTION_MAX_AGE", cfg.Retention.MaxAge)
	cfg.Retention.Schedule = getEnv("WARDEN_RETENTION_SCHEDULE", cfg.Retention.Schedule)
	cfg.Retention.BatchSize = getEnvInt("WARDEN_RETENTION_BATCH_SIZE", cfg.Retention.BatchSize)
	cfg.Retention.S3Bucket = getEnv("WARDEN_S3_BUCKET", cfg.Retention.S3Bucket)
	cfg.Retention.S3Region = getEnv("WARDEN_S3_REGION", cfg.Retention.S3Region)
	cfg.Retention.S3Endpoint = getEnv("WARDEN_S3_ENDPOINT", cfg.Retention.S3Endpoint)
	cfg.Retention.S3AccessKey = getEnv("WARDEN_S3_ACCESS_KEY", cfg.Retention.S3AccessKey)
	cfg.Retention.S3SecretKey = getEnv("WARDEN_S3_SECRET_KEY", cfg.Retention.S3SecretKey)
	cfg.Retention.UsePathStyle = getEnvBool("WARDEN_S3_USE_PATH_STYLE", cfg.Retention.UsePathStyle)

	cfg.Observability.LogLevel = getEnv("WARDEN_LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.MetricsEnabled = getEnvBool("WARDEN_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.OTelEnabled = getEnvBool("WARDEN_OTEL_ENABLED", cfg.Observability.OTelEnabled)
	cfg.Observability.OTelEndpoint = getEnv("WARDEN_OTEL_ENDPOINT", cfg.Observability.OTelEndpoint)
	cfg.Observability.OTelServiceName = getEnv("WARDEN_OTEL_SERVICE_NAME", cfg.Observability.OTelServiceName)
	cfg.Observability.OTelServiceVersion = getEnv("WARDEN_OTEL_SERVICE_VERSION", cfg.Observability.OTelServiceVersion)
	cfg.Observability.OTelInsecure = getEnvBool("WARDEN_OTEL_INSECURE", cfg.Observability.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Session.Secret == "" {
		return fmt.Errorf("session secret is required")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if c.Retention.MaxAge <= 0 {
		return fmt.Errorf("retention max age must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// LogLevel resolves the configured log level.
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLogLevel(c.Observability.LogLevel)
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
