// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// OffersConfig provides settings for the offer aggregation core.
type OffersConfig interface {
	GetDefaultCountry() string
	GetRetryMaxRetries() int
	GetRetryAttemptTimeout() time.Duration
	GetRetryDelay() time.Duration
	GetLateOffersWindow() time.Duration
	GetLateOffersTTL() time.Duration
	GetLateOffersSweepInterval() time.Duration
}

// ProvidersConfig provides upstream credentials and endpoints.
type ProvidersConfig interface {
	GetDefaultCountry() string
	GetUpstreamTimeout() time.Duration
	GetByteMe() ByteMeSettings
	GetWebWunder() WebWunderSettings
	GetPingPerfect() PingPerfectSettings
	GetVerbynDich() VerbynDichSettings
	GetServusSpeed() ServusSpeedSettings
}

// SchedulerConfig provides settings for the asynq prefetch queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// RedisConfig provides settings for the shared late-offer store.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// =============================================================================
// Provider Settings
// =============================================================================

// ByteMeSettings configures the flat-file provider.
type ByteMeSettings struct {
	Enabled bool
	URL     string
	APIKey  string
}

// WebWunderSettings configures the SOAP provider.
type WebWunderSettings struct {
	Enabled bool
	URL     string
	APIKey  string
}

// PingPerfectSettings configures the signed JSON provider.
type PingPerfectSettings struct {
	Enabled  bool
	URL      string
	ClientID string
	Secret   string
}

// VerbynDichSettings configures the paginated provider.
type VerbynDichSettings struct {
	Enabled  bool
	URL      string
	APIKey   string
	PageRate float64
}

// ServusSpeedSettings configures the list/detail provider.
type ServusSpeedSettings struct {
	Enabled        bool
	URL            string
	Username       string
	Password       string
	ListRetryDelay time.Duration
	DetailJitter   time.Duration
}

// =============================================================================
// Config
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Env            string
	HTTPAddr       string
	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool
	RateLimitRPS   float64
	RateLimitBurst int

	DefaultCountry          string
	UpstreamTimeout         time.Duration
	RetryMaxRetries         int
	RetryAttemptTimeout     time.Duration
	RetryDelay              time.Duration
	LateOffersWindow        time.Duration
	LateOffersTTL           time.Duration
	LateOffersSweepInterval time.Duration

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	ByteMe      ByteMeSettings
	WebWunder   WebWunderSettings
	PingPerfect PingPerfectSettings
	VerbynDich  VerbynDichSettings
	ServusSpeed ServusSpeedSettings
}

// =============================================================================
// Interface Implementations
// =============================================================================

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string       { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool     { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string  { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool   { return c.CORSAllowCreds }
func (c *Config) GetRateLimitRPS() float64  { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int    { return c.RateLimitBurst }

// OffersConfig implementation
func (c *Config) GetDefaultCountry() string                 { return c.DefaultCountry }
func (c *Config) GetRetryMaxRetries() int                   { return c.RetryMaxRetries }
func (c *Config) GetRetryAttemptTimeout() time.Duration     { return c.RetryAttemptTimeout }
func (c *Config) GetRetryDelay() time.Duration              { return c.RetryDelay }
func (c *Config) GetLateOffersWindow() time.Duration        { return c.LateOffersWindow }
func (c *Config) GetLateOffersTTL() time.Duration           { return c.LateOffersTTL }
func (c *Config) GetLateOffersSweepInterval() time.Duration { return c.LateOffersSweepInterval }

// ProvidersConfig implementation
func (c *Config) GetUpstreamTimeout() time.Duration       { return c.UpstreamTimeout }
func (c *Config) GetByteMe() ByteMeSettings               { return c.ByteMe }
func (c *Config) GetWebWunder() WebWunderSettings         { return c.WebWunder }
func (c *Config) GetPingPerfect() PingPerfectSettings     { return c.PingPerfect }
func (c *Config) GetVerbynDich() VerbynDichSettings       { return c.VerbynDich }
func (c *Config) GetServusSpeed() ServusSpeedSettings     { return c.ServusSpeed }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }

// Load reads configuration from the environment (and a .env file if present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		RateLimitRPS:   mustFloat(getEnv("RATE_LIMIT_RPS", "10")),
		RateLimitBurst: mustInt(getEnv("RATE_LIMIT_BURST", "20")),

		DefaultCountry:          strings.ToUpper(strings.TrimSpace(getEnv("DEFAULT_COUNTRY", "DE"))),
		UpstreamTimeout:         mustDuration(getEnv("UPSTREAM_TIMEOUT", "10s")),
		RetryMaxRetries:         mustInt(getEnv("RETRY_MAX_RETRIES", "3")),
		RetryAttemptTimeout:     mustDuration(getEnv("RETRY_ATTEMPT_TIMEOUT", "30s")),
		RetryDelay:              mustDuration(getEnv("RETRY_DELAY", "200ms")),
		LateOffersWindow:        mustDuration(getEnv("LATE_OFFERS_WINDOW", "8s")),
		LateOffersTTL:           mustDuration(getEnv("LATE_OFFERS_TTL", "0s")),
		LateOffersSweepInterval: mustDuration(getEnv("LATE_OFFERS_SWEEP_INTERVAL", "1m")),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "offers"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		ByteMe: ByteMeSettings{
			URL:    getEnv("BYTEME_URL", "https://byteme.gendev7.check24.fun/app/api/products/data"),
			APIKey: getEnv("BYTEME_API_KEY", ""),
		},
		WebWunder: WebWunderSettings{
			URL:    getEnv("WEBWUNDER_URL", "https://webwunder.gendev7.check24.fun:443/endpunkte/soap/ws"),
			APIKey: getEnv("WEBWUNDER_API_KEY", ""),
		},
		PingPerfect: PingPerfectSettings{
			URL:      getEnv("PINGPERFECT_URL", "https://pingperfect.gendev7.check24.fun/internet/angebote/data"),
			ClientID: getEnv("PINGPERFECT_CLIENT_ID", ""),
			Secret:   getEnv("PINGPERFECT_SIGNATURE_SECRET", ""),
		},
		VerbynDich: VerbynDichSettings{
			URL:      getEnv("VERBYNDICH_URL", "https://verbyndich.gendev7.check24.fun/check24/data"),
			APIKey:   getEnv("VERBYNDICH_API_KEY", ""),
			PageRate: mustFloat(getEnv("VERBYNDICH_PAGE_RATE", "0")),
		},
		ServusSpeed: ServusSpeedSettings{
			URL:            getEnv("SERVUSSPEED_URL", "https://servus-speed.gendev7.check24.fun"),
			Username:       getEnv("SERVUSSPEED_USERNAME", ""),
			Password:       getEnv("SERVUSSPEED_PASSWORD", ""),
			ListRetryDelay: mustDuration(getEnv("SERVUSSPEED_LIST_RETRY_DELAY", "1s")),
			DetailJitter:   mustDuration(getEnv("SERVUSSPEED_DETAIL_JITTER", "250ms")),
		},
	}

	cfg.ByteMe.Enabled = cfg.ByteMe.URL != "" && cfg.ByteMe.APIKey != ""
	cfg.WebWunder.Enabled = cfg.WebWunder.URL != "" && cfg.WebWunder.APIKey != ""
	cfg.PingPerfect.Enabled = cfg.PingPerfect.URL != "" && cfg.PingPerfect.ClientID != "" && cfg.PingPerfect.Secret != ""
	cfg.VerbynDich.Enabled = cfg.VerbynDich.URL != "" && cfg.VerbynDich.APIKey != ""
	cfg.ServusSpeed.Enabled = cfg.ServusSpeed.URL != "" && cfg.ServusSpeed.Username != "" && cfg.ServusSpeed.Password != ""

	if path := getEnv("PROVIDERS_FILE", ""); path != "" {
		overrides, err := LoadProviderOverrides(path)
		if err != nil {
			return nil, err
		}
		overrides.Apply(cfg)
	}

	if cfg.RetryMaxRetries < 0 {
		return nil, fmt.Errorf("RETRY_MAX_RETRIES must not be negative")
	}
	if cfg.RetryAttemptTimeout <= 0 {
		return nil, fmt.Errorf("RETRY_ATTEMPT_TIMEOUT must be a positive duration")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return v
}

func mustFloat(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return v
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsWildcard(values []string) bool {
	for _, v := range values {
		if v == "*" {
			return true
		}
	}
	return false
}
