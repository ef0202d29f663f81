// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

// Package config loads Loreweave configuration from defaults, an optional
// YAML file, the environment and command-line flags, in that order.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Environment variables that override file and default values.
const (
	EnvDatabaseURL   = "DATABASE_URL"
	EnvSigningSecret = "LOREWEAVE_SIGNING_SECRET"
)

// MinSigningSecretLength is the shortest HMAC secret accepted for access tokens.
const MinSigningSecretLength = 32

// Config is the full application configuration.
type Config struct {
	Auth     AuthConfig     `koanf:"auth"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Server   ServerConfig   `koanf:"server"`
}

// AuthConfig configures token issuance and password hashing.
type AuthConfig struct {
	SigningSecret      string `koanf:"signing_secret"`
	Issuer             string `koanf:"issuer"`
	Audience           string `koanf:"audience"`
	AccessTokenMinutes int    `koanf:"access_token_minutes"`
	RefreshTokenDays   int    `koanf:"refresh_token_days"`
	Hasher             string `koanf:"hasher"`
	SuperUserPassword  string `koanf:"superuser_password"`
}

// AccessTokenTTL returns the access token lifetime.
func (c AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime.
func (c AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenDays) * 24 * time.Hour
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL         string `koanf:"url"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// ServerConfig configures the long-running process.
type ServerConfig struct {
	MetricsAddr     string        `koanf:"metrics_addr"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	Environment     string        `koanf:"environment"`
}

// IsDevelopment reports whether error details may be echoed to callers.
func (c ServerConfig) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Default returns the configuration used when nothing overrides it.
// The signing secret has no default; Validate rejects an empty one.
func Default() Config {
	return Config{
		Auth: AuthConfig{
			Issuer:             "loreweave",
			Audience:           "loreweave-clients",
			AccessTokenMinutes: 60,
			RefreshTokenDays:   7,
			Hasher:             "hmac-sha512",
			SuperUserPassword:  "ChangeMe123!",
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Server: ServerConfig{
			MetricsAddr:     "127.0.0.1:9100",
			CleanupInterval: time.Hour,
			Environment:     "production",
		},
	}
}

// FlagKeys maps command-line flag names to configuration keys. Flags not
// listed here are ignored by Load.
var FlagKeys = map[string]string{
	"database-url":     "database.url",
	"auto-migrate":     "database.auto_migrate",
	"log-format":       "log.format",
	"log-level":        "log.level",
	"metrics-addr":     "server.metrics_addr",
	"cleanup-interval": "server.cleanup_interval",
	"environment":      "server.environment",
}

// Load builds a Config. path may be empty; flags may be nil. Only flags
// named in FlagKeys and explicitly set by the user override lower layers.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagMapper(flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load flags").
				Wrap(err)
		}
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "unmarshal").
			Wrap(err)
	}

	applyEnv(&cfg)

	return &cfg, nil
}

func flagMapper(flags *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := FlagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv(EnvSigningSecret); v != "" {
		cfg.Auth.SigningSecret = v
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if len(c.Auth.SigningSecret) < MinSigningSecretLength {
		return oops.Code("CONFIG_INVALID").
			With("field", "auth.signing_secret").
			Errorf("signing secret must be at least %d characters", MinSigningSecretLength)
	}
	if c.Auth.AccessTokenMinutes <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("field", "auth.access_token_minutes").
			Errorf("access token lifetime must be positive")
	}
	if c.Auth.RefreshTokenDays <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("field", "auth.refresh_token_days").
			Errorf("refresh token lifetime must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("field", "log.format").
			Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if c.Server.CleanupInterval <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("field", "server.cleanup_interval").
			Errorf("cleanup interval must be positive")
	}
	return nil
}
