package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	pkgconfig "github.com/utafrali/sixty60/pkg/config"
	"github.com/utafrali/sixty60/pkg/httpclient"
)

// EnvPrefix is prepended to every environment variable the client reads.
const EnvPrefix = "SIXTY60_"

// Session backends.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the sixty60 client.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"warn"`

	// Session persistence
	StateDir        string `env:"STATE_DIR"`
	SessionBackend  string `env:"SESSION_BACKEND" envDefault:"file"`
	RedisAddr       string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass       string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	SessionTTLHours int    `env:"SESSION_TTL_HOURS" envDefault:"720"`
	PostgresDSN     string `env:"POSTGRES_DSN"`
	SlowQueryMs     int    `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"500"`

	// Platform hosts
	BFFBaseURL     string `env:"BFF_BASE_URL" envDefault:"https://dc-app-backend-for-frontend.sixty60.co.za"`
	DSLBaseURL     string `env:"DSL_BASE_URL" envDefault:"https://api.shopritegroup.co.za/dsl/brands/checkers/countries/ZA"`
	AuthBaseURL    string `env:"AUTH_BASE_URL" envDefault:"https://auth.sixty60.co.za"`
	CatalogBaseURL string `env:"CATALOG_BASE_URL" envDefault:"https://catalog.sixty60.co.za"`
	OrdersBaseURL  string `env:"ORDERS_BASE_URL" envDefault:"https://orders-api.sixty60.co.za"`

	// Platform credentials baked into the mobile app
	APIKey       string `env:"API_KEY" envDefault:"5y2GIJ8RoP8dm5FxUtsBZ66OfvAZ8Njh3Pjaj9WF"`
	AuthAPIKey   string `env:"AUTH_API_KEY" envDefault:"HbFTqw6RLe4T3gbgGLb7X2qM08viEJlN3Amyq40z"`
	ProfileToken string `env:"PROFILE_TOKEN" envDefault:"G5tmYwwRnpfPmtJ3HT7VYV7C4x86NGDz"`
	AppVersion   string `env:"APP_VERSION" envDefault:"iPadOS 2.0.99 (1769786479)"`
	AppBuild     string `env:"APP_BUILD" envDefault:"1769786479"`

	// Delivery location used for store resolution
	Latitude  float64 `env:"LATITUDE" envDefault:"-33.9249"`
	Longitude float64 `env:"LONGITUDE" envDefault:"18.4241"`

	// HTTP transport
	HTTPTimeoutSeconds int     `env:"HTTP_TIMEOUT_SECONDS" envDefault:"30"`
	HTTPMaxRetries     int     `env:"HTTP_MAX_RETRIES" envDefault:"0"`
	HTTPRequestsPerSec float64 `env:"HTTP_RPS" envDefault:"10"`

	// Circuit breaker
	CBMaxRequests     uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBIntervalSeconds int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeoutSeconds  int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio    float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests     uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	CommandTimeoutSeconds int `env:"COMMAND_TIMEOUT_SECONDS" envDefault:"120"`

	// Kafka; no brokers disables event publishing
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopicPrefix string   `env:"KAFKA_TOPIC_PREFIX" envDefault:"sixty60"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Prometheus Pushgateway; empty disables the push
	PushgatewayURL string `env:"PUSHGATEWAY_URL"`
}

// Load reads configuration from SIXTY60_* environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, EnvPrefix); err != nil {
		return nil, fmt.Errorf("load sixty60 config: %w", err)
	}
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.StateDir = filepath.Join(home, ".checkers-sixty60")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.SessionBackend {
	case BackendFile:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("SIXTY60_REDIS_ADDR is required for the redis session backend")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("SIXTY60_POSTGRES_DSN is required for the postgres session backend")
		}
	default:
		return fmt.Errorf("unknown session backend %q (want file, redis or postgres)", c.SessionBackend)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("SIXTY60_OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.OTELSampleRate)
	}
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("coordinates out of range: %v,%v", c.Latitude, c.Longitude)
	}
	if c.HTTPTimeoutSeconds <= 0 || c.CommandTimeoutSeconds <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.HTTPMaxRetries < 0 {
		return fmt.Errorf("SIXTY60_HTTP_MAX_RETRIES must not be negative")
	}
	if c.SessionTTLHours < 0 {
		return fmt.Errorf("SIXTY60_SESSION_TTL_HOURS must not be negative")
	}
	return nil
}

// HTTPClient returns the transport settings.
func (c *Config) HTTPClient() httpclient.Config {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = time.Duration(c.HTTPTimeoutSeconds) * time.Second
	cfg.MaxRetries = c.HTTPMaxRetries
	cfg.RequestsPerSecond = c.HTTPRequestsPerSec
	return cfg
}

// CircuitBreaker returns breaker settings for the named platform host.
func (c *Config) CircuitBreaker(name string) httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  c.CBMaxRequests,
		Interval:     time.Duration(c.CBIntervalSeconds) * time.Second,
		Timeout:      time.Duration(c.CBTimeoutSeconds) * time.Second,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}

// CommandTimeout bounds a single CLI invocation.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// SlowQueryThreshold is the duration above which a session store query is logged. Zero disables it.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryMs) * time.Millisecond
}

// SessionTTL is how long a stored session survives in the redis backend. Zero keeps it forever.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}
