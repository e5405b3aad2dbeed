package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries all environment-derived settings. It is loaded once in main
// and passed explicitly to every component constructor.
type Config struct {
	// Server configuration
	Port          string
	Mode          string
	PublicBaseURL string

	// Database configuration
	DatabaseURL string

	// Redis configuration (rate limiting; empty disables it)
	RedisURL         string
	RateLimitEnabled bool

	// Payment gateway configuration
	PayPalClientID     string
	PayPalClientSecret string
	PayPalMode         string // "sandbox" or "live"
	GatewayTimeout     time.Duration

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	FromEmail    string
	AdminEmail   string
	MailTimeout  time.Duration

	// Product catalog configuration
	ProductsConfigFile string
	ProductsDir        string

	// Entitlement configuration
	DefaultRedemptionLimit int
	PendingPurchaseTTL     time.Duration

	// Admin API configuration
	AdminAPIKey string

	ServiceName string
}

// Load reads configuration from the environment, consulting a .env file when
// one is present.
func Load() (*Config, error) {
	// Ignore error if .env file doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Mode:          getEnv("GIN_MODE", "debug"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisURL:         getEnv("REDIS_URL", ""),
		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),

		PayPalClientID:     getEnv("PAYPAL_CLIENT_ID", ""),
		PayPalClientSecret: getEnv("PAYPAL_CLIENT_SECRET", ""),
		PayPalMode:         getEnv("PAYPAL_MODE", "sandbox"),
		GatewayTimeout:     getEnvDuration("GATEWAY_TIMEOUT_SECONDS", 8*time.Second),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		FromEmail:    getEnv("FROM_EMAIL", ""),
		AdminEmail:   getEnv("ADMIN_EMAIL", ""),
		MailTimeout:  getEnvDuration("MAIL_TIMEOUT_SECONDS", 10*time.Second),

		ProductsConfigFile: getEnv("PRODUCTS_CONFIG_FILE", ""),
		ProductsDir:        getEnv("PRODUCTS_DIR", "products"),

		DefaultRedemptionLimit: getEnvInt("MAX_DOWNLOAD_ATTEMPTS", 5),
		PendingPurchaseTTL:     getEnvDuration("PENDING_PURCHASE_TTL_HOURS", 24*time.Hour),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		ServiceName: getEnv("SERVICE_NAME", "Guardian Store"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PayPalMode != "sandbox" && c.PayPalMode != "live" {
		return fmt.Errorf("PAYPAL_MODE must be 'sandbox' or 'live', got %q", c.PayPalMode)
	}
	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		return fmt.Errorf("SMTP_PORT must be between 1 and 65535, got %d", c.SMTPPort)
	}
	return nil
}

// IsProduction reports whether the service runs against the live gateway.
func (c *Config) IsProduction() bool {
	return c.PayPalMode == "live"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration reads an integer env value scaled by the unit named in the key.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			if strings.HasSuffix(key, "HOURS") {
				return time.Duration(intValue) * time.Hour
			}
			return time.Duration(intValue) * time.Second
		}
	}
	return defaultValue
}
