// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Tokens  TokenConfig
	SMTP    SMTPConfig

	// PublicURL is the externally visible base URL, used to build magic
	// links and redirects.
	PublicURL string `env:"ORGBASE_PUBLIC_URL" envDefault:"http://localhost:8080"`

	LogLevel string `env:"ORGBASE_LOG_LEVEL" envDefault:"info"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"ORGBASE_HOST" envDefault:"0.0.0.0"`
	Port            string        `env:"ORGBASE_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"ORGBASE_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"ORGBASE_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"ORGBASE_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"ORGBASE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// StorageConfig holds database configuration.
type StorageConfig struct {
	URL             string        `env:"ORGBASE_DATABASE_URL" envDefault:"postgres://localhost/orgbase?sslmode=disable"`
	MaxOpenConns    int           `env:"ORGBASE_DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"ORGBASE_DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"ORGBASE_DB_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// TokenConfig holds signing configuration for magic links and sessions.
type TokenConfig struct {
	// Secret is the HMAC signing key. The server refuses to start
	// without one.
	Secret     string        `env:"ORGBASE_TOKEN_SECRET"`
	SessionTTL time.Duration `env:"ORGBASE_SESSION_TTL" envDefault:"720h"`
	// SecureCookies controls the Secure flag on session cookies; turn
	// off only for plain-HTTP local development.
	SecureCookies bool `env:"ORGBASE_SECURE_COOKIES" envDefault:"true"`
}

// SMTPConfig holds mail relay configuration. With an empty host the server
// logs magic links instead of sending mail.
type SMTPConfig struct {
	Host        string `env:"ORGBASE_SMTP_HOST"`
	Port        string `env:"ORGBASE_SMTP_PORT" envDefault:"587"`
	Username    string `env:"ORGBASE_SMTP_USERNAME"`
	Password    string `env:"ORGBASE_SMTP_PASSWORD"`
	FromName    string `env:"ORGBASE_SMTP_FROM_NAME" envDefault:"Orgbase"`
	FromAddress string `env:"ORGBASE_SMTP_FROM_ADDRESS" envDefault:"noreply@orgbase.app"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if c.Tokens.Secret == "" {
		return fmt.Errorf("invalid config: ORGBASE_TOKEN_SECRET is required")
	}
	if c.Tokens.SessionTTL <= 0 {
		return fmt.Errorf("invalid config: session TTL must be positive")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("invalid config: port must not be empty")
	}
	return nil
}

// Addr returns the listen address of the HTTP server.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}
