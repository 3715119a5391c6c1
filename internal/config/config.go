package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// configuration for the service

type Config struct {
	HTTP      HTTPConfig
	DB        DBConfig
	Screening ScreeningConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Stream    StreamConfig
	Log       LogConfig
}

type HTTPConfig struct {
	Port           int
	RequestTimeout time.Duration
	AllowedOrigins []string
}

type DBConfig struct {
	DatabaseURL string

	MinConns          int32
	MaxConns          int32
	MaxConnIdleTime   time.Duration
	MaxConnLifetime   time.Duration
	HealthCheckPeriod time.Duration

	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
}

type ScreeningConfig struct {
	BaseURL     string
	APIKey      string
	Username    string
	CallTimeout time.Duration

	// requests per second across all sessions; 0 disables limiting
	RateLimit float64
	RateBurst int
}

type AuthConfig struct {
	BaseURL     string
	CallTimeout time.Duration
	CacheTTL    time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type StreamConfig struct {
	MaxSubscribers  int
	OutboxSize      int
	HeartbeatPeriod time.Duration
	IdleTimeout     time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads the environment; a .env file in the working directory is honoured when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config

	// HTTP
	cfg.HTTP.Port = envInt("PORT", 8080)
	cfg.HTTP.RequestTimeout = envDuration("REQUEST_TIMEOUT", 10*time.Second)
	cfg.HTTP.AllowedOrigins = envList("CORS_ALLOWED_ORIGINS", []string{"*"})

	// DB
	cfg.DB.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DB.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}

	cfg.DB.MaxConns = int32(envInt("DB_MAX_CONNS", 20))
	cfg.DB.MinConns = int32(envInt("DB_MIN_CONNS", 2))
	cfg.DB.MaxConnIdleTime = envDuration("DB_MAX_CONN_IDLE_TIME", 2*time.Minute)
	cfg.DB.MaxConnLifetime = envDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute)
	cfg.DB.HealthCheckPeriod = envDuration("DB_HEALTHCHECK_PERIOD", 30*time.Second)
	cfg.DB.ConnectTimeout = envDuration("DB_CONNECT_TIMEOUT", 3*time.Second)
	cfg.DB.QueryTimeout = envDuration("DB_QUERY_TIMEOUT", 5*time.Second)

	// Screening provider
	cfg.Screening.BaseURL = os.Getenv("SCREENING_BASE_URL")
	cfg.Screening.APIKey = os.Getenv("SCREENING_API_KEY")
	cfg.Screening.Username = os.Getenv("SCREENING_USERNAME")
	cfg.Screening.CallTimeout = envDuration("SCREENING_CALL_TIMEOUT", 30*time.Second)
	cfg.Screening.RateLimit = envFloat("SCREENING_RATE_LIMIT", 5)
	cfg.Screening.RateBurst = envInt("SCREENING_RATE_BURST", 5)

	// Auth service
	cfg.Auth.BaseURL = os.Getenv("AUTH_SERVICE_URL")
	cfg.Auth.CallTimeout = envDuration("AUTH_CALL_TIMEOUT", 5*time.Second)
	cfg.Auth.CacheTTL = envDuration("AUTH_CACHE_TTL", 30*time.Second)

	// Redis (optional)
	cfg.Redis.URL = os.Getenv("REDIS_URL")
	cfg.Redis.PoolSize = envInt("REDIS_POOL_SIZE", 10)
	cfg.Redis.DialTimeout = envDuration("REDIS_DIAL_TIMEOUT", 2*time.Second)
	cfg.Redis.ReadTimeout = envDuration("REDIS_READ_TIMEOUT", 500*time.Millisecond)
	cfg.Redis.WriteTimeout = envDuration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond)

	// Stream
	cfg.Stream.MaxSubscribers = envInt("STREAM_MAX_SUBSCRIBERS", 1000)
	cfg.Stream.OutboxSize = envInt("STREAM_OUTBOX_SIZE", 100)
	cfg.Stream.HeartbeatPeriod = envDuration("STREAM_HEARTBEAT_PERIOD", 15*time.Second)
	cfg.Stream.IdleTimeout = envDuration("STREAM_IDLE_TIMEOUT", 60*time.Second)

	// Logging
	cfg.Log.Level = envString("LOG_LEVEL", "info")
	cfg.Log.Format = envString("LOG_FORMAT", "json")

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	// HTTP
	if cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535 (got %d)", cfg.HTTP.Port)
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be > 0 (got %s)", cfg.HTTP.RequestTimeout)
	}

	// DB
	if cfg.DB.MaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be > 0 (got %d)", cfg.DB.MaxConns)
	}
	if cfg.DB.MinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be >= 0 (got %d)", cfg.DB.MinConns)
	}
	if cfg.DB.MinConns > cfg.DB.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be <= DB_MAX_CONNS (min=%d max=%d)", cfg.DB.MinConns, cfg.DB.MaxConns)
	}
	if cfg.DB.MaxConnIdleTime < 0 {
		return fmt.Errorf("DB_MAX_CONN_IDLE_TIME must be >= 0 (got %s)", cfg.DB.MaxConnIdleTime)
	}
	if cfg.DB.MaxConnLifetime < 0 {
		return fmt.Errorf("DB_MAX_CONN_LIFETIME must be >= 0 (got %s)", cfg.DB.MaxConnLifetime)
	}
	if cfg.DB.HealthCheckPeriod <= 0 {
		return fmt.Errorf("DB_HEALTHCHECK_PERIOD must be > 0 (got %s)", cfg.DB.HealthCheckPeriod)
	}
	if cfg.DB.ConnectTimeout <= 0 {
		return fmt.Errorf("DB_CONNECT_TIMEOUT must be > 0 (got %s)", cfg.DB.ConnectTimeout)
	}
	if cfg.DB.QueryTimeout <= 0 {
		return fmt.Errorf("DB_QUERY_TIMEOUT must be > 0 (got %s)", cfg.DB.QueryTimeout)
	}

	// Screening
	if err := validateURL("SCREENING_BASE_URL", cfg.Screening.BaseURL); err != nil {
		return err
	}
	if cfg.Screening.APIKey == "" {
		return errors.New("SCREENING_API_KEY is required")
	}
	if cfg.Screening.Username == "" {
		return errors.New("SCREENING_USERNAME is required")
	}
	if cfg.Screening.CallTimeout <= 0 {
		return fmt.Errorf("SCREENING_CALL_TIMEOUT must be > 0 (got %s)", cfg.Screening.CallTimeout)
	}
	if cfg.Screening.RateLimit < 0 {
		return fmt.Errorf("SCREENING_RATE_LIMIT must be >= 0 (got %g)", cfg.Screening.RateLimit)
	}
	if cfg.Screening.RateLimit > 0 && cfg.Screening.RateBurst <= 0 {
		return fmt.Errorf("SCREENING_RATE_BURST must be > 0 (got %d)", cfg.Screening.RateBurst)
	}

	// Auth
	if err := validateURL("AUTH_SERVICE_URL", cfg.Auth.BaseURL); err != nil {
		return err
	}
	if cfg.Auth.CallTimeout <= 0 {
		return fmt.Errorf("AUTH_CALL_TIMEOUT must be > 0 (got %s)", cfg.Auth.CallTimeout)
	}
	if cfg.Auth.CacheTTL < 0 {
		return fmt.Errorf("AUTH_CACHE_TTL must be >= 0 (got %s)", cfg.Auth.CacheTTL)
	}

	// Redis
	if cfg.Redis.URL != "" && cfg.Redis.PoolSize <= 0 {
		return fmt.Errorf("REDIS_POOL_SIZE must be > 0 (got %d)", cfg.Redis.PoolSize)
	}

	// Stream
	if cfg.Stream.MaxSubscribers <= 0 {
		return fmt.Errorf("STREAM_MAX_SUBSCRIBERS must be > 0 (got %d)", cfg.Stream.MaxSubscribers)
	}
	if cfg.Stream.OutboxSize <= 0 {
		return fmt.Errorf("STREAM_OUTBOX_SIZE must be > 0 (got %d)", cfg.Stream.OutboxSize)
	}
	if cfg.Stream.HeartbeatPeriod <= 0 {
		return fmt.Errorf("STREAM_HEARTBEAT_PERIOD must be > 0 (got %s)", cfg.Stream.HeartbeatPeriod)
	}
	if cfg.Stream.IdleTimeout <= cfg.Stream.HeartbeatPeriod {
		return fmt.Errorf("STREAM_IDLE_TIMEOUT must be > STREAM_HEARTBEAT_PERIOD (idle=%s heartbeat=%s)",
			cfg.Stream.IdleTimeout, cfg.Stream.HeartbeatPeriod)
	}
	return nil
}

func validateURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL (got %q)", key, raw)
	}
	return nil
}

func envString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// it panics if the value is set but invalid
func envInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		panic(fmt.Sprintf("%s must be an integer (got %q)", key, val))
	}
	return n
}

func envFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		panic(fmt.Sprintf("%s must be a number (got %q)", key, val))
	}
	return f
}

// e.g. 200ms", "2s", "1m"
func envDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		panic(fmt.Sprintf("%s must be a valid duration (e.g. 200ms, 2s, 1m). got %q", key, val))
	}
	return d
}

func envList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
