package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
//
// Secret precedence order:
// 1. Vault (if configured) - highest priority
// 2. Config file values
// 3. Environment variables (RESUMEBOOST_AI_APIKEY, etc.)
// 4. Default values - lowest priority
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Storage       StorageConfig       `mapstructure:"storage"`
	AI            AIConfig            `mapstructure:"ai"`
	Stripe        StripeConfig        `mapstructure:"stripe"`
	Quota         QuotaConfig         `mapstructure:"quota"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AppConfig holds pipeline limits and general application settings.
type AppConfig struct {
	LogLevel string `mapstructure:"logLevel"`

	MaxUploadBytes         int64 `mapstructure:"maxUploadBytes"`
	MinJobDescriptionChars int   `mapstructure:"minJobDescriptionChars"`
	MinExtractableChars    int   `mapstructure:"minExtractableChars"`
	MaxResumeChars         int   `mapstructure:"maxResumeChars"`
	MaxJobDescriptionChars int   `mapstructure:"maxJobDescriptionChars"`
	MaxResumeTokens        int   `mapstructure:"maxResumeTokens"`
	MaxJobTokens           int   `mapstructure:"maxJobTokens"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`

	TLSCertFile string `mapstructure:"tlsCertFile"`
	TLSKeyFile  string `mapstructure:"tlsKeyFile"`

	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig holds per-client rate limiting configuration.
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	RequestsPerMin int  `mapstructure:"requestsPerMin"`
	BurstCapacity  int  `mapstructure:"burstCapacity"`
}

// DatabaseConfig holds Postgres connection configuration.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslMode"`
	MaxConns int32  `mapstructure:"maxConns"`
	MinConns int32  `mapstructure:"minConns"`
}

// DSN builds a pgx-compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Bucket       string        `mapstructure:"bucket"`
	Region       string        `mapstructure:"region"`
	Endpoint     string        `mapstructure:"endpoint"`
	SignedURLTTL time.Duration `mapstructure:"signedUrlTtl"`
}

// AIConfig holds AI provider configuration.
type AIConfig struct {
	Provider         string               `mapstructure:"provider"`
	Model            string               `mapstructure:"model"`
	APIKey           string               `mapstructure:"apiKey"`
	Timeout          time.Duration        `mapstructure:"timeout"`
	MaxRetries       int                  `mapstructure:"maxRetries"`
	Temperature      float32              `mapstructure:"temperature"`
	MaxOutputTokens  int32                `mapstructure:"maxOutputTokens"`
	UseSystemPrompts bool                 `mapstructure:"useSystemPrompts"`
	CircuitBreaker   CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// CircuitBreakerConfig represents circuit breaker configuration.
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"maxRequests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MinRequests      uint32        `mapstructure:"minRequests"`
	FailureThreshold float64       `mapstructure:"failureThreshold"`
}

// StripeConfig holds billing provider configuration.
type StripeConfig struct {
	SecretKey     string `mapstructure:"secretKey"`
	WebhookSecret string `mapstructure:"webhookSecret"`
	ProPriceID    string `mapstructure:"proPriceId"`
	FrontendURL   string `mapstructure:"frontendUrl"`
}

// QuotaConfig holds quota window and per-plan limits. A limit below zero
// means the plan is unbounded.
type QuotaConfig struct {
	WindowDays int            `mapstructure:"windowDays"`
	Plans      map[string]int `mapstructure:"plans"`
}

// LimitFor returns the monthly analysis limit for a plan, defaulting to
// the free plan limit for unknown plans.
func (q QuotaConfig) LimitFor(plan string) int {
	if limit, ok := q.Plans[plan]; ok {
		return limit
	}
	return q.Plans["free"]
}

// CacheConfig holds ephemeral cache configuration.
type CacheConfig struct {
	DefaultTTL      time.Duration `mapstructure:"defaultTtl"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval"`
}

// AuthConfig holds session verification configuration. Tokens are issued
// by the external identity provider; this service only verifies them.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
}

// ObservabilityConfig holds tracing and metrics configuration.
type ObservabilityConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"serviceName"`
	SampleRate  float64 `mapstructure:"sampleRate"`

	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	OTLP       OTLPConfig       `mapstructure:"otlp"`
}

// PrometheusConfig holds the metrics endpoint configuration.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// OTLPConfig holds the optional OTLP trace exporter configuration.
type OTLPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LoadConfig loads configuration from defaults, config file, and
// environment, in ascending precedence.
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("RESUMEBOOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/resumeboost/")
	v.AddConfigPath("$HOME/.resumeboost")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.App.MaxUploadBytes <= 0 {
		return fmt.Errorf("app.maxUploadBytes must be positive")
	}
	if c.App.MinJobDescriptionChars <= 0 {
		return fmt.Errorf("app.minJobDescriptionChars must be positive")
	}
	if c.Quota.WindowDays <= 0 {
		return fmt.Errorf("quota.windowDays must be positive")
	}
	if _, ok := c.Quota.Plans[string("free")]; !ok {
		return fmt.Errorf("quota.plans must define a free plan limit")
	}
	if c.AI.Provider != "gemini" {
		return fmt.Errorf("unsupported AI provider: %s", c.AI.Provider)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("server.rateLimit.requestsPerMin must be positive when rate limiting is enabled")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return fmt.Errorf("server TLS requires both tlsCertFile and tlsKeyFile")
	}
	return nil
}
