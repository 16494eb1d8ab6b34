package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "NairaWallet"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultJWTTTL          = 24 * time.Hour
	defaultPaystackBaseURL = "https://api.paystack.co"
	defaultPaystackTimeout = 15 * time.Second
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	AutoMigrate    bool

	JWTSecret string
	JWTTTL    time.Duration

	Paystack Paystack
}

// Paystack holds the payment gateway settings.
type Paystack struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	CallbackURL   string
	Timeout       time.Duration
}

// Load reads configuration values from the environment, after merging a
// local .env file when one exists, and populates a Config instance.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTTTL:         defaultJWTTTL,
		Paystack: Paystack{
			BaseURL:       strings.TrimRight(getEnv("PAYSTACK_BASE_URL", defaultPaystackBaseURL), "/"),
			SecretKey:     os.Getenv("PAYSTACK_SECRET_KEY"),
			WebhookSecret: os.Getenv("PAYSTACK_WEBHOOK_SECRET"),
			CallbackURL:   os.Getenv("PAYSTACK_CALLBACK_URL"),
			Timeout:       defaultPaystackTimeout,
		},
	}

	var err error
	if cfg.ShutdownPeriod, err = secondsOrDuration(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = secondsOrDuration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.JWTTTL, err = duration("JWT_TTL", cfg.JWTTTL); err != nil {
		return Config{}, err
	}
	if cfg.Paystack.Timeout, err = duration("PAYSTACK_TIMEOUT", cfg.Paystack.Timeout); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("AUTO_MIGRATE"); v != "" {
		if cfg.AutoMigrate, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("invalid AUTO_MIGRATE: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if !c.IsProduction() {
		return nil
	}
	required := []struct{ key, value string }{
		{"DATABASE_URL", c.DatabaseURL},
		{"REDIS_URL", c.RedisURL},
		{"JWT_SECRET", c.JWTSecret},
		{"PAYSTACK_SECRET_KEY", c.Paystack.SecretKey},
		{"PAYSTACK_WEBHOOK_SECRET", c.Paystack.WebhookSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s must be set when APP_ENV=%s", r.key, c.AppEnv)
		}
	}
	return nil
}

// IsProduction reports whether the service runs with production guarantees.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.AppEnv) {
	case "prod", "production":
		return true
	}
	return false
}

// IsDev reports whether development-only routes may be exposed.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func secondsOrDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return duration(durationKey, fallback)
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
