package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// DB holds database connection settings.
type DB struct {
	Driver          string // postgres or sqlite
	DSN             string
	LogLevel        string // silent, error, warn, info
	AutoMigrate     bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Log holds logger settings. File enables rotation when set.
type Log struct {
	Level      string
	JSON       bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Config is the data service configuration.
type Config struct {
	AppPort             string
	DB                  DB
	JWTSecret           string
	PolicyMode          string
	VerificationCodeTTL time.Duration
	RabbitMQURL         string
	SeedDemo            bool
	Log                 Log
}

var ErrMissingJWTSecret = errors.New("config: JWT_SECRET is required")

// Load reads the configuration from the environment, falling back to defaults
// suitable for local development.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "file:partshop.db?_foreign_keys=1")
	v.SetDefault("DB_LOG_LEVEL", "warn")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("POLICY_MODE", "strict")
	v.SetDefault("VERIFICATION_CODE_TTL", 15*time.Minute)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("SEED_DEMO", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_JSON", false)
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 7)
	v.SetDefault("LOG_MAX_AGE_DAYS", 30)
	v.AutomaticEnv()

	cfg := &Config{
		AppPort: v.GetString("APP_PORT"),
		DB: DB{
			Driver:          v.GetString("DB_DRIVER"),
			DSN:             v.GetString("DB_DSN"),
			LogLevel:        v.GetString("DB_LOG_LEVEL"),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		JWTSecret:           v.GetString("JWT_SECRET"),
		PolicyMode:          v.GetString("POLICY_MODE"),
		VerificationCodeTTL: v.GetDuration("VERIFICATION_CODE_TTL"),
		RabbitMQURL:         v.GetString("RABBITMQ_URL"),
		SeedDemo:            v.GetBool("SEED_DEMO"),
		Log: Log{
			Level: v.GetString("LOG_LEVEL"),
			JSON:  v.GetBool("LOG_JSON"),
			File:  v.GetString("LOG_FILE"),

			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DB.Driver)
	}
	switch c.PolicyMode {
	case "strict", "open":
	default:
		return fmt.Errorf("config: unsupported POLICY_MODE %q", c.PolicyMode)
	}
	if c.VerificationCodeTTL <= 0 {
		return fmt.Errorf("config: VERIFICATION_CODE_TTL must be positive, got %s", c.VerificationCodeTTL)
	}
	return nil
}
