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

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// EvolutionConfig provides settings for the WhatsApp provider (Evolution API).
type EvolutionConfig interface {
	GetEvolutionBaseURL() string
	GetEvolutionAPIKey() string
	GetEvolutionWebhookURL() string
	GetEvolutionWebhookSecret() string
	GetEvolutionTimeout() time.Duration
	IsEvolutionEnabled() bool
}

// WebhookConfig provides settings for the public webhook endpoint.
type WebhookConfig interface {
	GetEvolutionWebhookSecret() string
}

// MessagingConfig limits the user-triggered calls that reach the provider.
type MessagingConfig interface {
	GetWhatsAppSendRateLimit() float64
	GetWhatsAppSendRateBurst() int
}

// RedisConfig provides settings for Redis-backed components.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// CacheConfig provides settings for the pipeline board cache.
type CacheConfig interface {
	RedisConfig
	GetBoardCacheTTL() time.Duration
	IsBoardCacheEnabled() bool
}

// SchedulerConfig provides settings for the asynq worker and dispatcher.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueue() string
	GetAsynqConcurrency() int
	GetOutboxPollInterval() time.Duration
}

// SMTPConfig provides settings for outbound email.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsSMTPEnabled() bool
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// PhoneConfig provides settings for phone normalization.
type PhoneConfig interface {
	GetPhoneDefaultRegion() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                    string
	HTTPAddr               string
	DatabaseURL            string
	JWTAccessSecret        string
	CORSAllowAll           bool
	CORSOrigins            []string
	CORSAllowCreds         bool
	AppBaseURL             string
	EvolutionBaseURL       string
	EvolutionAPIKey        string
	EvolutionWebhookURL    string
	EvolutionWebhookSecret string
	EvolutionTimeout       time.Duration
	WhatsAppSendRateLimit  float64
	WhatsAppSendRateBurst  int
	RedisURL               string
	RedisTLSInsecure       bool
	BoardCacheTTL          time.Duration
	AsynqQueue             string
	AsynqConcurrency       int
	OutboxPollInterval     time.Duration
	SMTPHost               string
	SMTPPort               int
	SMTPUsername           string
	SMTPPassword           string
	EmailFromName          string
	EmailFromAddress       string
	PhoneDefaultRegion     string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// EvolutionConfig implementation
func (c *Config) GetEvolutionBaseURL() string        { return c.EvolutionBaseURL }
func (c *Config) GetEvolutionAPIKey() string         { return c.EvolutionAPIKey }
func (c *Config) GetEvolutionWebhookURL() string     { return c.EvolutionWebhookURL }
func (c *Config) GetEvolutionWebhookSecret() string  { return c.EvolutionWebhookSecret }
func (c *Config) GetEvolutionTimeout() time.Duration { return c.EvolutionTimeout }
func (c *Config) IsEvolutionEnabled() bool           { return c.EvolutionBaseURL != "" }

// MessagingConfig implementation
func (c *Config) GetWhatsAppSendRateLimit() float64 { return c.WhatsAppSendRateLimit }
func (c *Config) GetWhatsAppSendRateBurst() int     { return c.WhatsAppSendRateBurst }

// RedisConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }

// CacheConfig implementation
func (c *Config) GetBoardCacheTTL() time.Duration { return c.BoardCacheTTL }
func (c *Config) IsBoardCacheEnabled() bool {
	return c.RedisURL != "" && c.BoardCacheTTL > 0
}

// SchedulerConfig implementation
func (c *Config) GetAsynqQueue() string                { return c.AsynqQueue }
func (c *Config) GetAsynqConcurrency() int             { return c.AsynqConcurrency }
func (c *Config) GetOutboxPollInterval() time.Duration { return c.OutboxPollInterval }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsSMTPEnabled() bool         { return c.SMTPHost != "" }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// PhoneConfig implementation
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                    getEnv("APP_ENV", "development"),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		JWTAccessSecret:        getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:           corsAllowAll,
		CORSOrigins:            corsOrigins,
		CORSAllowCreds:         strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:             getEnv("APP_BASE_URL", "http://localhost:5173"),
		EvolutionBaseURL:       strings.TrimRight(getEnv("EVOLUTION_API_BASE_URL", ""), "/"),
		EvolutionAPIKey:        getEnv("EVOLUTION_API_KEY", ""),
		EvolutionWebhookURL:    getEnv("EVOLUTION_WEBHOOK_URL", ""),
		EvolutionWebhookSecret: getEnv("EVOLUTION_WEBHOOK_SECRET", ""),
		EvolutionTimeout:       mustDuration(getEnv("EVOLUTION_TIMEOUT", "10s")),
		WhatsAppSendRateLimit:  mustFloat(getEnv("WHATSAPP_SEND_RATE_LIMIT", "2")),
		WhatsAppSendRateBurst:  mustInt(getEnv("WHATSAPP_SEND_RATE_BURST", "10")),
		RedisURL:               getEnv("REDIS_URL", ""),
		RedisTLSInsecure:       strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		BoardCacheTTL:          mustDuration(getEnv("BOARD_CACHE_TTL", "5m")),
		AsynqQueue:             getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:       mustInt(getEnv("ASYNQ_CONCURRENCY", "5")),
		OutboxPollInterval:     mustDuration(getEnv("OUTBOX_POLL_INTERVAL", "2s")),
		SMTPHost:               getEnv("SMTP_HOST", ""),
		SMTPPort:               mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:           getEnv("SMTP_USERNAME", ""),
		SMTPPassword:           getEnv("SMTP_PASSWORD", ""),
		EmailFromName:          getEnv("EMAIL_FROM_NAME", "Workshop CRM"),
		EmailFromAddress:       getEnv("EMAIL_FROM_ADDRESS", ""),
		PhoneDefaultRegion:     getEnv("PHONE_DEFAULT_REGION", "BR"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if c.IsEvolutionEnabled() && c.EvolutionAPIKey == "" {
		return fmt.Errorf("EVOLUTION_API_KEY is required when EVOLUTION_API_BASE_URL is set")
	}
	if c.EvolutionTimeout <= 0 {
		return fmt.Errorf("EVOLUTION_TIMEOUT must be a positive duration")
	}
	if c.IsSMTPEnabled() && c.EmailFromAddress == "" {
		return fmt.Errorf("EMAIL_FROM_ADDRESS is required when SMTP_HOST is set")
	}
	return nil
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
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
