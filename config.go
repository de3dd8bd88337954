package fbrealtime

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPath               = "/facebook/realtime"
	DefaultMaxRequestBodySize = 10 * 1024 * 1024 // 10MB
	DefaultFailureStatus      = http.StatusBadRequest
	DefaultDedupTTL           = 24 * time.Hour

	// Circuit breaker defaults
	DefaultCircuitBreakerMaxRequests = 5
	DefaultCircuitBreakerInterval    = 60 * time.Second
	DefaultCircuitBreakerTimeout     = 30 * time.Second
	DefaultCircuitBreakerThreshold   = 0.7

	// Redis defaults
	DefaultRedisPoolSize     = 10
	DefaultRedisMinIdleConns = 5
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultRedisReadTimeout  = 3 * time.Second
	DefaultRedisWriteTimeout = 3 * time.Second

	// Memory cache defaults
	DefaultMemoryCacheMaxSize         = 10000
	DefaultMemoryCacheCleanupInterval = 1 * time.Hour

	// Environment variables read by ConfigFromEnv
	EnvAppSecret   = "FB_APP_SECRET"
	EnvVerifyToken = "FB_VERIFY_TOKEN"
)

// Config represents the main configuration for a realtime subscription endpoint
type Config struct {
	Subscription SubscriptionSettings `yaml:"subscription"`

	// Path is where Client.Register mounts the endpoint
	Path string `yaml:"path"`

	HTTP HTTPConfig `yaml:"http"`

	Dedup DedupConfig `yaml:"dedup"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`

	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig configures the request adapter
type HTTPConfig struct {
	MaxRequestBodySize int64 `yaml:"max_request_body_size"`
	// FailureStatus is answered for rejected handshakes and deliveries
	FailureStatus int `yaml:"failure_status"`
}

// DedupConfig configures redelivery deduplication
type DedupConfig struct {
	Enabled bool          `yaml:"enabled"`
	Type    string        `yaml:"type"` // "redis" or "memory"
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis"`
	Memory  MemoryConfig  `yaml:"memory"`
}

// RedisConfig configures Redis connection
type RedisConfig struct {
	Address       string        `yaml:"address"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	PoolSize      int           `yaml:"pool_size"`
	MinIdleConns  int           `yaml:"min_idle_conns"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	EnableTLS     bool          `yaml:"enable_tls"`
	TLSSkipVerify bool          `yaml:"tls_skip_verify"`
	TLSConfig     *tls.Config   `yaml:"-"`
}

// MemoryConfig configures in-memory cache
type MemoryConfig struct {
	MaxSize         int           `yaml:"max_size"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	EnableLRU       bool          `yaml:"enable_lru"`
}

// CircuitBreakerConfig configures the breaker around the notification callback
type CircuitBreakerConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
	Threshold   float64       `yaml:"threshold"` // Failure ratio threshold (0.0-1.0)
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json", "console"
}

// ConfigBuilder provides a fluent interface for building Config
type ConfigBuilder struct {
	config *Config
}

// NewConfig creates a new ConfigBuilder with defaults
func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{config: defaultConfig()}
}

func defaultConfig() *Config {
	return &Config{
		Path: DefaultPath,
		HTTP: HTTPConfig{
			MaxRequestBodySize: DefaultMaxRequestBodySize,
			FailureStatus:      DefaultFailureStatus,
		},
		Dedup: DedupConfig{
			Enabled: false,
			Type:    "memory",
			TTL:     DefaultDedupTTL,
			Redis: RedisConfig{
				PoolSize:     DefaultRedisPoolSize,
				MinIdleConns: DefaultRedisMinIdleConns,
				DialTimeout:  DefaultRedisDialTimeout,
				ReadTimeout:  DefaultRedisReadTimeout,
				WriteTimeout: DefaultRedisWriteTimeout,
			},
			Memory: MemoryConfig{
				MaxSize:         DefaultMemoryCacheMaxSize,
				CleanupInterval: DefaultMemoryCacheCleanupInterval,
				EnableLRU:       false,
			},
		},
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests: DefaultCircuitBreakerMaxRequests,
			Interval:    DefaultCircuitBreakerInterval,
			Timeout:     DefaultCircuitBreakerTimeout,
			Threshold:   DefaultCircuitBreakerThreshold,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// WithSubscription sets the app secret and verify token
func (b *ConfigBuilder) WithSubscription(settings SubscriptionSettings) *ConfigBuilder {
	b.config.Subscription = settings
	return b
}

// WithAppSecret sets the app secret
func (b *ConfigBuilder) WithAppSecret(secret string) *ConfigBuilder {
	b.config.Subscription.AppSecret = secret
	return b
}

// WithVerifyToken sets the verify token
func (b *ConfigBuilder) WithVerifyToken(token string) *ConfigBuilder {
	b.config.Subscription.VerifyToken = token
	return b
}

// WithPath sets the route path
func (b *ConfigBuilder) WithPath(path string) *ConfigBuilder {
	b.config.Path = path
	return b
}

// WithHTTP sets the HTTP adapter configuration
func (b *ConfigBuilder) WithHTTP(hc HTTPConfig) *ConfigBuilder {
	b.config.HTTP = hc
	return b
}

// WithDedup sets the deduplication configuration
func (b *ConfigBuilder) WithDedup(dedup DedupConfig) *ConfigBuilder {
	b.config.Dedup = dedup
	return b
}

// WithCircuitBreaker sets the circuit breaker configuration
func (b *ConfigBuilder) WithCircuitBreaker(cb CircuitBreakerConfig) *ConfigBuilder {
	b.config.CircuitBreaker = cb
	return b
}

// WithLogging sets the logging configuration
func (b *ConfigBuilder) WithLogging(logging LoggingConfig) *ConfigBuilder {
	b.config.Logging = logging
	return b
}

// Build validates and returns the Config
func (b *ConfigBuilder) Build() (*Config, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	return b.config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Subscription.Validate(); err != nil {
		return err
	}

	if c.Path == "" {
		return errors.New("path is required")
	}

	if c.HTTP.MaxRequestBodySize <= 0 {
		return errors.New("max request body size must be greater than 0")
	}

	if c.HTTP.FailureStatus < 400 || c.HTTP.FailureStatus > 599 {
		return fmt.Errorf("invalid failure status: %d (must be 4xx or 5xx)", c.HTTP.FailureStatus)
	}

	if c.Dedup.Enabled {
		if c.Dedup.Type != "redis" && c.Dedup.Type != "memory" {
			return fmt.Errorf("invalid dedup type: %s (must be 'redis' or 'memory')", c.Dedup.Type)
		}

		if c.Dedup.Type == "redis" && c.Dedup.Redis.Address == "" {
			return errors.New("Redis address is required when using Redis dedup")
		}

		if c.Dedup.TTL <= 0 {
			return errors.New("dedup TTL must be greater than 0")
		}
	}

	if c.CircuitBreaker.MaxRequests < 0 {
		return fmt.Errorf("invalid circuit breaker max requests: %d", c.CircuitBreaker.MaxRequests)
	}

	if c.CircuitBreaker.Interval < 0 || c.CircuitBreaker.Timeout < 0 {
		return errors.New("circuit breaker interval and timeout must not be negative")
	}

	if c.CircuitBreaker.Threshold < 0 || c.CircuitBreaker.Threshold > 1 {
		return errors.New("circuit breaker threshold must be between 0 and 1")
	}

	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadConfig reads a YAML config file on top of the defaults. ${VAR} references are
// replaced with environment values; undefined variables are left as-is.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ConfigFromEnv builds a Config from FB_APP_SECRET and FB_VERIFY_TOKEN
func ConfigFromEnv() (*Config, error) {
	return NewConfig().
		WithAppSecret(os.Getenv(EnvAppSecret)).
		WithVerifyToken(os.Getenv(EnvVerifyToken)).
		Build()
}

func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}
