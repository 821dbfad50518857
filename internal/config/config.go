// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret is the process-wide HS256 signing secret for access tokens. Required.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim (e.g. "quizdeck-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "quizdeck-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "720h", the historical 30 days).
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// RestoreCodeTTL is how long an emailed restoration code stays valid (e.g. "15m").
	RestoreCodeTTL string `mapstructure:"RESTORE_CODE_TTL"`
	// BcryptCost is the bcrypt cost factor (4-31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// MailerBaseURL is the mail delivery API endpoint for restoration codes.
	MailerBaseURL string `mapstructure:"MAILER_BASE_URL"`
	// MailerAPIKey authenticates against the mail delivery API.
	MailerAPIKey string `mapstructure:"MAILER_API_KEY"`
	// MailerFrom is the sender address on restoration code emails.
	MailerFrom string `mapstructure:"MAILER_FROM"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint for traces; empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "quizdeck-auth")
	v.SetDefault("JWT_AUDIENCE", "quizdeck-api")
	v.SetDefault("JWT_ACCESS_TTL", "720h")
	v.SetDefault("RESTORE_CODE_TTL", "15m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("MAILER_BASE_URL", "")
	v.SetDefault("MAILER_API_KEY", "")
	v.SetDefault("MAILER_FROM", "no-reply@quizdeck.app")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// CodeTTL parses RestoreCodeTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) CodeTTL() time.Duration {
	d, err := time.ParseDuration(c.RestoreCodeTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}
