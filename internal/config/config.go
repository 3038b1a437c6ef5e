// Copyright 2026 The Atelier Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Environment names
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all application configuration
type Config struct {
	Env           string `env:"APP_ENV" envDefault:"development"`
	Server        ServerConfig
	Database      DatabaseConfig
	Session       SessionConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
	Billing       BillingConfig
	Revision      RevisionConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            string        `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            string        `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"atelier"`
	Password        string        `env:"DB_PASSWORD"`
	Database        string        `env:"DB_NAME" envDefault:"atelier"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// SessionConfig holds session cookie and expiry configuration
type SessionConfig struct {
	CookieName      string        `env:"SESSION_COOKIE_NAME" envDefault:"atelier_session"`
	IdleTimeout     time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"1h"`
}

// AuthConfig holds service-token configuration
type AuthConfig struct {
	TokenSecret string `env:"AUTH_TOKEN_SECRET"`
	TokenIssuer string `env:"AUTH_TOKEN_ISSUER" envDefault:"atelier"`
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"json"`
	OTELEnabled    bool   `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName    string `env:"OTEL_SERVICE_NAME" envDefault:"atelier"`
	ServiceVersion string `env:"OTEL_SERVICE_VERSION" envDefault:"0.1.0"`

	MetricsInterval time.Duration `env:"METRICS_EXPORT_INTERVAL" envDefault:"60s"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `env:"RATELIMIT_RPS" envDefault:"10"`
	Burst             int     `env:"RATELIMIT_BURST" envDefault:"20"`

	// TrustedProxies are peer addresses whose X-Forwarded-For is honored.
	TrustedProxies []string `env:"RATELIMIT_TRUSTED_PROXIES" envSeparator:","`
}

// BillingConfig holds payment webhook configuration
type BillingConfig struct {
	WebhookSecret string `env:"BILLING_WEBHOOK_SECRET"`
	WebhookHeader string `env:"BILLING_WEBHOOK_HEADER" envDefault:"X-Webhook-Token"`
}

// RevisionConfig holds revision workflow configuration
type RevisionConfig struct {
	MinCommentLength int `env:"REVISION_MIN_COMMENT_LENGTH" envDefault:"10"`
}

// Load loads configuration from environment variables. Outside production a
// .env file in the working directory is read first; real variables win.
func Load() (*Config, error) {
	if appEnv := os.Getenv("APP_ENV"); appEnv == "" || appEnv == EnvDevelopment {
		_ = godotenv.Load()
	}
	return parse(env.Options{})
}

// LoadFromMap builds configuration from vars instead of the process environment.
func LoadFromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD is required"))
	}
	if c.IsProduction() && c.Billing.WebhookSecret == "" {
		errs = append(errs, errors.New("BILLING_WEBHOOK_SECRET is required in production"))
	}
	if c.Billing.WebhookHeader == "" {
		errs = append(errs, errors.New("BILLING_WEBHOOK_HEADER must not be empty"))
	}
	if c.Auth.TokenSecret != "" && len(c.Auth.TokenSecret) < 32 {
		errs = append(errs, errors.New("AUTH_TOKEN_SECRET must be at least 32 bytes"))
	}
	if c.Revision.MinCommentLength < 0 {
		errs = append(errs, errors.New("REVISION_MIN_COMMENT_LENGTH must not be negative"))
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("RATELIMIT_RPS and RATELIMIT_BURST must be positive"))
	}
	return errors.Join(errs...)
}
