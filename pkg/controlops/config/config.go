// Package config builds the immutable runtime configuration for the control-ops server.
//
// Values come from environment variables, an optional config file and command-line
// flags (all through viper). Load is called once at startup and the resulting Config
// is passed by value to every component that needs it.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keys. They double as environment variable names.
const (
	KeyDatabaseURL            = "DATABASE_URL"
	KeyJWTSecret              = "JWT_SECRET"
	KeyAccessTokenMinutes     = "ACCESS_TOKEN_EXPIRES_MINUTES"
	KeyRefreshTokenDays       = "REFRESH_TOKEN_EXPIRES_DAYS"
	KeyCORSOrigins            = "CORS_ORIGINS"
	KeyDefaultAdminUsername   = "DEFAULT_ADMIN_USERNAME"
	KeyDefaultAdminPassword   = "DEFAULT_ADMIN_PASSWORD"
	KeyPort                   = "PORT"
	KeySeedSampleTools        = "SEED_SAMPLE_TOOLS"
	KeyHealthCheckTimeout     = "HEALTH_CHECK_TIMEOUT"
	KeyHealthCheckConcurrency = "HEALTH_CHECK_CONCURRENCY"
	KeyHealthCheckInterval    = "HEALTH_CHECK_INTERVAL"
	KeyLoginRatePerMinute     = "LOGIN_RATE_PER_MINUTE"
	KeyLoginRateBurst         = "LOGIN_RATE_BURST"
	KeyLogLevel               = "LOG_LEVEL"
	KeyLogFormat              = "LOG_FORMAT"
	KeySentryDSN              = "SENTRY_DSN"
	KeyAppEnv                 = "APP_ENV"
)

// Config holds every setting the server consumes.
type Config struct {
	DatabaseURL string

	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	CORSOrigins []string

	DefaultAdminUsername string
	DefaultAdminPassword string
	SeedSampleTools      bool

	Port string

	HealthCheckTimeout     time.Duration
	HealthCheckConcurrency int
	HealthCheckInterval    time.Duration

	LoginRatePerMinute int
	LoginRateBurst     int

	LogLevel  string
	LogFormat string

	SentryDSN string
	AppEnv    string
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDatabaseURL, "controlops.db")
	v.SetDefault(KeyJWTSecret, "change-me")
	v.SetDefault(KeyAccessTokenMinutes, 15)
	v.SetDefault(KeyRefreshTokenDays, 7)
	v.SetDefault(KeyCORSOrigins, "http://localhost:9000")
	v.SetDefault(KeyDefaultAdminUsername, "admin")
	v.SetDefault(KeyDefaultAdminPassword, "admin123")
	v.SetDefault(KeyPort, "8080")
	v.SetDefault(KeySeedSampleTools, true)
	v.SetDefault(KeyHealthCheckTimeout, "5s")
	v.SetDefault(KeyHealthCheckConcurrency, 4)
	v.SetDefault(KeyHealthCheckInterval, "0s")
	v.SetDefault(KeyLoginRatePerMinute, 30)
	v.SetDefault(KeyLoginRateBurst, 10)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeySentryDSN, "")
	v.SetDefault(KeyAppEnv, "development")
}

// ReadFile merges an optional config file into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return nil
}

// Load builds and validates a Config from v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		DatabaseURL:            strings.TrimSpace(v.GetString(KeyDatabaseURL)),
		JWTSecret:              v.GetString(KeyJWTSecret),
		AccessTokenExpiry:      time.Duration(v.GetInt(KeyAccessTokenMinutes)) * time.Minute,
		RefreshTokenExpiry:     time.Duration(v.GetInt(KeyRefreshTokenDays)) * 24 * time.Hour,
		CORSOrigins:            parseCSV(v.GetString(KeyCORSOrigins)),
		DefaultAdminUsername:   v.GetString(KeyDefaultAdminUsername),
		DefaultAdminPassword:   v.GetString(KeyDefaultAdminPassword),
		SeedSampleTools:        v.GetBool(KeySeedSampleTools),
		Port:                   v.GetString(KeyPort),
		HealthCheckTimeout:     v.GetDuration(KeyHealthCheckTimeout),
		HealthCheckConcurrency: v.GetInt(KeyHealthCheckConcurrency),
		HealthCheckInterval:    v.GetDuration(KeyHealthCheckInterval),
		LoginRatePerMinute:     v.GetInt(KeyLoginRatePerMinute),
		LoginRateBurst:         v.GetInt(KeyLoginRateBurst),
		LogLevel:               strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:              strings.ToLower(v.GetString(KeyLogFormat)),
		SentryDSN:              v.GetString(KeySentryDSN),
		AppEnv:                 v.GetString(KeyAppEnv),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyDatabaseURL))
	}
	if c.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyJWTSecret))
	}
	if c.AccessTokenExpiry <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyAccessTokenMinutes))
	}
	if c.RefreshTokenExpiry <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyRefreshTokenDays))
	}
	if c.HealthCheckTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyHealthCheckTimeout))
	}
	if c.HealthCheckConcurrency < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeyHealthCheckConcurrency))
	}
	if c.HealthCheckInterval < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyHealthCheckInterval))
	}
	if c.LoginRatePerMinute < 1 || c.LoginRateBurst < 1 {
		errs = append(errs, fmt.Errorf("%s and %s must be at least 1", KeyLoginRatePerMinute, KeyLoginRateBurst))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
