// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	NaverAd    NaverAdConfig    `json:"naver_ad"`
	Pipeline   PipelineConfig   `json:"pipeline"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
	RunMigrations   bool          `json:"run_migrations"`
}

// DSN returns the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window
	RateLimitWindow time.Duration `json:"rate_limit_window"`
}

type JWTConfig struct {
	SecretKey      string        `json:"secret_key"`
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
}

type LoggingConfig struct {
	Level            string `json:"level"`  // debug, info, warn, error
	Format           string `json:"format"` // json, console
	Output           string `json:"output"` // stdout, file, both
	FilePath         string `json:"file_path"`
	MaxSize          int    `json:"max_size"` // MB
	MaxBackups       int    `json:"max_backups"`
	MaxAge           int    `json:"max_age"` // days
	Compress         bool   `json:"compress"`
	EnableCaller     bool   `json:"enable_caller"`
	EnableStacktrace bool   `json:"enable_stacktrace"`
	EnableAccessLog  bool   `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled     bool          `json:"enabled"`
	Provider    string        `json:"provider"` // redis, memory
	RedisURL    string        `json:"redis_url"`
	RedisDB     int           `json:"redis_db"`
	RedisPrefix string        `json:"redis_prefix"`
	DefaultTTL  time.Duration `json:"default_ttl"`
	MaxEntries  int           `json:"max_entries"` // memory provider only
}

// NaverAdConfig holds the credentials of the upstream search-ad API
type NaverAdConfig struct {
	BaseURL     string        `json:"base_url"`
	APIKey      string        `json:"api_key"`
	SecretKey   string        `json:"secret_key"`
	Timeout     time.Duration `json:"timeout"`
	RateLimit   float64       `json:"rate_limit"` // requests per second, 0 disables limiting
	RateBurst   int           `json:"rate_burst"`
	BreakerMax  uint32        `json:"breaker_max_requests"`
	BreakerOpen time.Duration `json:"breaker_open_timeout"`
	BreakerTrip uint32        `json:"breaker_consecutive_failures"`
}

// PipelineConfig controls the click evaluation pipeline
type PipelineConfig struct {
	EvaluationConcurrency int           `json:"evaluation_concurrency"`
	EvaluationTimeout     time.Duration `json:"evaluation_timeout"`
	ReservationTTL        time.Duration `json:"reservation_ttl"`
	ReaperInterval        time.Duration `json:"reaper_interval"`
	BlockMemo             string        `json:"block_memo"`
	RuleCacheTTL          time.Duration `json:"rule_cache_ttl"`
	BlockedCacheTTL       time.Duration `json:"blocked_cache_ttl"`
}

type DeploymentConfig struct {
	Domain      string `json:"domain"`
	APIDomain   string `json:"api_domain"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := loadFromEnv()

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromEnv() *ProductionConfig {
	return &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "click_sentinel"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
			RunMigrations:   getEnvBool("DB_RUN_MIGRATIONS", true),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024), // 4MB
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
		},
		Security: SecurityConfig{
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"https://click-sentinel.com"}),
			AllowedMethods:   getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 2000),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
			Issuer:         getEnvString("JWT_ISSUER", "click-sentinel"),
			Audience:       getEnvString("JWT_AUDIENCE", "click-sentinel-api"),
		},
		Logging: LoggingConfig{
			Level:            getEnvString("LOG_LEVEL", "info"),
			Format:           getEnvString("LOG_FORMAT", "json"),
			Output:           getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:         getEnvString("LOG_FILE_PATH", "/var/log/click-sentinel/app.log"),
			MaxSize:          getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:       getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:           getEnvInt("LOG_MAX_AGE", 30),
			Compress:         getEnvBool("LOG_COMPRESS", true),
			EnableCaller:     getEnvBool("LOG_ENABLE_CALLER", true),
			EnableStacktrace: getEnvBool("LOG_ENABLE_STACKTRACE", false),
			EnableAccessLog:  getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", true),
			Provider:    getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "click-sentinel:"),
			DefaultTTL:  getEnvDuration("CACHE_DEFAULT_TTL", 5*time.Minute),
			MaxEntries:  getEnvInt("CACHE_MAX_ENTRIES", 10000),
		},
		NaverAd: NaverAdConfig{
			BaseURL:     getEnvString("NAVER_AD_BASE_URL", "https://api.searchad.naver.com"),
			APIKey:      getEnvString("NAVER_AD_API_KEY", ""),
			SecretKey:   getEnvString("NAVER_AD_SECRET_KEY", ""),
			Timeout:     getEnvDuration("NAVER_AD_TIMEOUT", 10*time.Second),
			RateLimit:   getEnvFloat("NAVER_AD_RATE_LIMIT", 10),
			RateBurst:   getEnvInt("NAVER_AD_RATE_BURST", 5),
			BreakerMax:  uint32(getEnvInt("NAVER_AD_BREAKER_MAX_REQUESTS", 1)),
			BreakerOpen: getEnvDuration("NAVER_AD_BREAKER_OPEN_TIMEOUT", 30*time.Second),
			BreakerTrip: uint32(getEnvInt("NAVER_AD_BREAKER_CONSECUTIVE_FAILURES", 5)),
		},
		Pipeline: PipelineConfig{
			EvaluationConcurrency: getEnvInt("PIPELINE_EVALUATION_CONCURRENCY", 32),
			EvaluationTimeout:     getEnvDuration("PIPELINE_EVALUATION_TIMEOUT", 30*time.Second),
			ReservationTTL:        getEnvDuration("PIPELINE_RESERVATION_TTL", 10*time.Minute),
			ReaperInterval:        getEnvDuration("PIPELINE_REAPER_INTERVAL", 1*time.Minute),
			BlockMemo:             getEnvString("PIPELINE_BLOCK_MEMO", "Blocked by click-sentinel automation"),
			RuleCacheTTL:          getEnvDuration("PIPELINE_RULE_CACHE_TTL", 1*time.Minute),
			BlockedCacheTTL:       getEnvDuration("PIPELINE_BLOCKED_CACHE_TTL", 1*time.Hour),
		},
		Deployment: DeploymentConfig{
			Domain:      getEnvString("DOMAIN", "your-domain.com"),
			APIDomain:   getEnvString("API_DOMAIN", "api.your-domain.com"),
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}
}

// loadEnvFile loads environment variables from path if it exists.
// Variables already present in the environment win.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errs []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errs = append(errs, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errs = append(errs, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errs = append(errs, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errs = append(errs, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Validate JWT configuration
	if len(cfg.JWT.SecretKey) < 32 {
		errs = append(errs, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errs = append(errs, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.Issuer == "" {
		errs = append(errs, "JWT_ISSUER is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errs = append(errs, "SERVER_WRITE_TIMEOUT must be positive")
	}

	// Validate upstream configuration
	if cfg.NaverAd.BaseURL == "" {
		errs = append(errs, "NAVER_AD_BASE_URL is required")
	}
	if cfg.NaverAd.APIKey == "" {
		errs = append(errs, "NAVER_AD_API_KEY is required")
	}
	if cfg.NaverAd.SecretKey == "" {
		errs = append(errs, "NAVER_AD_SECRET_KEY is required")
	}
	if cfg.NaverAd.Timeout <= 0 {
		errs = append(errs, "NAVER_AD_TIMEOUT must be positive")
	}
	if cfg.NaverAd.RateLimit < 0 {
		errs = append(errs, "NAVER_AD_RATE_LIMIT must not be negative")
	}

	// Validate pipeline configuration
	if cfg.Pipeline.EvaluationConcurrency <= 0 {
		errs = append(errs, "PIPELINE_EVALUATION_CONCURRENCY must be positive")
	}
	if cfg.Pipeline.EvaluationTimeout <= 0 {
		errs = append(errs, "PIPELINE_EVALUATION_TIMEOUT must be positive")
	}
	if cfg.Pipeline.ReservationTTL <= cfg.NaverAd.Timeout {
		errs = append(errs, "PIPELINE_RESERVATION_TTL must be longer than NAVER_AD_TIMEOUT")
	}
	if cfg.Pipeline.ReaperInterval <= 0 {
		errs = append(errs, "PIPELINE_REAPER_INTERVAL must be positive")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		if !slices.Contains(validLevels, cfg.Logging.Level) {
			errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}
	if cfg.Logging.Output == "file" || cfg.Logging.Output == "both" {
		if cfg.Logging.FilePath == "" {
			errs = append(errs, "LOG_FILE_PATH is required when logging to a file")
		}
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		switch cfg.Cache.Provider {
		case "redis":
			if cfg.Cache.RedisURL == "" {
				errs = append(errs, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
			}
		case "memory":
			if cfg.Cache.MaxEntries <= 0 {
				errs = append(errs, "CACHE_MAX_ENTRIES must be positive for memory provider")
			}
		default:
			errs = append(errs, "CACHE_PROVIDER must be one of: [redis memory]")
		}
	}

	// Return validation errors if any
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
