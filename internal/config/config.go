package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config holds all configuration for the registry server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	Captcha   CaptchaConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port              int
	Env               string
	CORSAllowedOrigin string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// SessionConfig controls session records and the cookies that carry them.
// MaxAge is the single lifetime used for the cache TTL, token expiry and cookie Max-Age.
type SessionConfig struct {
	Secret       string
	MaxAge       time.Duration
	CookieSecure bool
	CookieDomain string
	BcryptCost   int
}

// CaptchaConfig configures human verification on login. An empty SecretKey disables it.
type CaptchaConfig struct {
	SecretKey string
	VerifyURL string
	Timeout   time.Duration
}

type RateLimitConfig struct {
	PerMinute int
}

const minSessionSecretLen = 32

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:              envInt("REGISTRY_PORT", 8080),
			Env:               envString("REGISTRY_ENV", "development"),
			CORSAllowedOrigin: os.Getenv("CORS_ALLOWED_ORIGIN"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Session: SessionConfig{
			Secret:       os.Getenv("SESSION_SECRET"),
			MaxAge:       envDurationSecs("SESSION_MAX_AGE_SECS", 3*time.Hour),
			CookieSecure: envBool("COOKIE_SECURE", true),
			CookieDomain: os.Getenv("COOKIE_DOMAIN"),
			BcryptCost:   envInt("BCRYPT_COST", bcrypt.DefaultCost),
		},
		Captcha: CaptchaConfig{
			SecretKey: os.Getenv("HCAPTCHA_SECRET_KEY"),
			VerifyURL: envString("HCAPTCHA_VERIFY_URL", "https://api.hcaptcha.com/siteverify"),
			Timeout:   envDuration("HCAPTCHA_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			PerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Session.Secret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if len(c.Session.Secret) < minSessionSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLen)
	}
	if c.Session.MaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE_SECS must be positive, got %s", c.Session.MaxAge)
	}
	if c.Session.BcryptCost < bcrypt.MinCost || c.Session.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.Session.BcryptCost)
	}

	if c.Captcha.SecretKey != "" {
		if !strings.HasPrefix(c.Captcha.VerifyURL, "http://") && !strings.HasPrefix(c.Captcha.VerifyURL, "https://") {
			return fmt.Errorf("HCAPTCHA_VERIFY_URL must start with http:// or https://, got %q", c.Captcha.VerifyURL)
		}
	}

	if c.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimit.PerMinute)
	}

	return nil
}

// CaptchaEnabled reports whether login requires a verification token.
func (c *Config) CaptchaEnabled() bool {
	return c.Captcha.SecretKey != ""
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
