package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName   string `env:"APP_NAME" envDefault:"Kobo"`
	Env       string `env:"APP_ENV" envDefault:"development"`
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisURL       string        `env:"REDIS_URL"`
	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"720h"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"8760h"`
	BcryptCost         int           `env:"BCRYPT_ROUND" envDefault:"10"`

	OTPMin         int    `env:"OTP_MIN_NUMBER" envDefault:"100000"`
	OTPMax         int    `env:"OTP_MAX_NUMBER" envDefault:"900000"`
	DefaultOTPCode string `env:"DEFAULT_OTP_CODE" envDefault:"123456"`

	StoreTimeout     time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	TxMaxRetries     int           `env:"TX_MAX_RETRIES" envDefault:"3"`
	TxRetryBaseDelay time.Duration `env:"TX_RETRY_BASE_DELAY" envDefault:"20ms"`

	Mail  MailConfig
	Karma KarmaConfig

	LoginAttemptsPerMinute int `env:"LOGIN_ATTEMPTS_PER_MINUTE" envDefault:"5"`
}

// MailConfig holds SMTP settings. An empty Host selects the logging notifier.
type MailConfig struct {
	Host     string        `env:"EMAIL_HOST"`
	Port     int           `env:"EMAIL_PORT" envDefault:"587"`
	Username string        `env:"EMAIL_USERNAME"`
	Password string        `env:"EMAIL_PASSWORD"`
	From     string        `env:"EMAIL_FROM"`
	Timeout  time.Duration `env:"EMAIL_TIMEOUT" envDefault:"10s"`
}

// KarmaConfig configures the risk-list lookup performed at signup.
type KarmaConfig struct {
	Enabled bool          `env:"KARMA_ENABLED" envDefault:"false"`
	BaseURL string        `env:"KARMA_BASE_URL" envDefault:"https://adjutor.lendsqr.com/v2/verification/karma"`
	Secret  string        `env:"KARMA_SECRET"`
	Timeout time.Duration `env:"KARMA_TIMEOUT" envDefault:"5s"`
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Env = strings.ToLower(cfg.Env)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Config) Validate() error {
	if c.AccessTokenSecret == "" {
		return fmt.Errorf("ACCESS_TOKEN_SECRET must be set")
	}
	if c.RefreshTokenSecret == "" {
		return fmt.Errorf("REFRESH_TOKEN_SECRET must be set")
	}
	if !c.IsDevelopment() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.Env)
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.Env)
		}
	}
	if c.OTPMin <= 0 || c.OTPMax <= c.OTPMin {
		return fmt.Errorf("invalid OTP range [%d, %d)", c.OTPMin, c.OTPMax)
	}
	if c.Karma.Enabled && c.Karma.Secret == "" {
		return fmt.Errorf("KARMA_SECRET must be set when KARMA_ENABLED=true")
	}
	if c.TxMaxRetries < 0 {
		return fmt.Errorf("TX_MAX_RETRIES must not be negative")
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether in-memory backends may stand in for Postgres and Redis.
func (c Config) IsDevelopment() bool {
	switch c.Env {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// IsProductionOrStaging selects random OTP codes instead of DefaultOTPCode.
func (c Config) IsProductionOrStaging() bool {
	return c.Env == "production" || c.Env == "staging"
}
