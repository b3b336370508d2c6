// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package config loads authcore settings from a YAML file, the environment
// and command-line flags, in that order of increasing precedence.
package config

import (
	"encoding/base64"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/stockevaluator/authcore/internal/auth"
)

// EnvPrefix is stripped from environment variables before they are mapped to
// keys. AUTHCORE_AUTH_ACCESS_TTL becomes auth.access_ttl.
const EnvPrefix = "AUTHCORE_"

const redacted = "[REDACTED]"

// Secret is a string that never renders its value.
type Secret string

func (Secret) String() string { return redacted }

// GoString keeps %#v redacted.
func (Secret) GoString() string { return redacted }

// LogValue implements slog.LogValuer.
func (Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

// Reveal returns the underlying value.
func (s Secret) Reveal() string { return string(s) }

// Database holds connection settings.
type Database struct {
	URL Secret `koanf:"url"`
}

// Auth holds token, lockout and reset settings.
type Auth struct {
	SigningKey       Secret        `koanf:"signing_key"`
	Issuer           string        `koanf:"issuer"`
	AccessTTL        time.Duration `koanf:"access_ttl"`
	RefreshTTL       time.Duration `koanf:"refresh_ttl"`
	ResetTTL         time.Duration `koanf:"reset_ttl"`
	LockoutThreshold int           `koanf:"lockout_threshold"`
	LockoutCooldown  time.Duration `koanf:"lockout_cooldown"`
}

// HTTP holds the request-handling listener settings.
type HTTP struct {
	Addr       string  `koanf:"addr"`
	LoginRate  float64 `koanf:"login_rate"`
	LoginBurst int     `koanf:"login_burst"`
	// TrustProxy reads the client address from X-Forwarded-For/X-Real-IP.
	TrustProxy bool    `koanf:"trust_proxy"`
}

// Metrics holds the observability listener address. Empty disables it.
type Metrics struct {
	Addr string `koanf:"addr"`
}

// Log holds logging settings.
type Log struct {
	Format string `koanf:"format"`
}

// Purge holds the reset-token janitor settings.
type Purge struct {
	Interval time.Duration `koanf:"interval"`
}

// Sentry holds optional error reporting settings. Empty DSN disables it.
type Sentry struct {
	DSN         Secret `koanf:"dsn"`
	Environment string `koanf:"environment"`
}

// Config is the full authcore configuration.
type Config struct {
	Database Database `koanf:"database"`
	Auth     Auth     `koanf:"auth"`
	HTTP     HTTP     `koanf:"http"`
	Metrics  Metrics  `koanf:"metrics"`
	Log      Log      `koanf:"log"`
	Purge    Purge    `koanf:"purge"`
	Sentry   Sentry   `koanf:"sentry"`
}

// Default returns the configuration used for any key no source sets.
func Default() Config {
	return Config{
		Auth: Auth{
			Issuer:           "authcore",
			AccessTTL:        auth.DefaultAccessTokenTTL,
			RefreshTTL:       auth.DefaultRefreshTokenTTL,
			ResetTTL:         auth.ResetTokenExpiry,
			LockoutThreshold: auth.DefaultLockoutThreshold,
			LockoutCooldown:  auth.DefaultLockoutCooldown,
		},
		HTTP: HTTP{
			Addr:       "127.0.0.1:8080",
			LoginRate:  1,
			LoginBurst: 10,
		},
		Metrics: Metrics{Addr: "127.0.0.1:9100"},
		Log:     Log{Format: "json"},
		Purge:   Purge{Interval: auth.DefaultPurgeInterval},
		Sentry:  Sentry{Environment: "development"},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"database-url":      "database.url",
	"http-addr":         "http.addr",
	"metrics-addr":      "metrics.addr",
	"log-format":        "log.format",
	"purge-interval":    "purge.interval",
	"login-rate":        "http.login_rate",
	"login-burst":       "http.login_burst",
	"trust-proxy":       "http.trust_proxy",
	"lockout-threshold": "auth.lockout_threshold",
	"lockout-cooldown":  "auth.lockout_cooldown",
}

// RegisterFlags adds the flags that Load understands to fs. Defaults shown
// in help come from Default; a flag only overrides other sources when set.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("http-addr", d.HTTP.Addr, "HTTP listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.Duration("purge-interval", d.Purge.Interval, "interval between expired reset token purges")
	fs.Float64("login-rate", d.HTTP.LoginRate, "login requests per second allowed per client")
	fs.Int("login-burst", d.HTTP.LoginBurst, "login burst allowed per client")
	fs.Bool("trust-proxy", d.HTTP.TrustProxy, "take client addresses from X-Forwarded-For/X-Real-IP")
	fs.Int("lockout-threshold", d.Auth.LockoutThreshold, "consecutive failures before an account locks")
	fs.Duration("lockout-cooldown", d.Auth.LockoutCooldown, "how long a locked account stays locked")
}

// Options control where Load reads from.
type Options struct {
	// Path is an explicit config file. It must exist when set.
	Path string
	// DefaultPath is read only if it exists. Ignored when Path is set.
	DefaultPath string
	// DotEnv lists .env files loaded into the process environment first.
	// Existing variables are not overwritten and missing files are skipped.
	DotEnv []string
	// Flags are applied last; only flags the user changed take effect.
	Flags *pflag.FlagSet
}

// Load builds a Config from the sources in opts and validates it.
func Load(opts Options) (*Config, error) {
	loadDotEnv(opts.DotEnv)

	k := koanf.New(".")

	path, required := opts.Path, true
	if path == "" {
		path, required = opts.DefaultPath, false
	}
	if path != "" {
		if err := loadFile(k, path, required); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.ProviderWithValue("DATABASE_URL", ".", func(key, value string) (string, any) {
		if key != "DATABASE_URL" || value == "" {
			return "", nil
		}
		return "database.url", value
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("source", "env").Wrap(err)
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(files []string) {
	for _, f := range files {
		// Missing .env files are normal outside development.
		_ = godotenv.Load(f)
	}
}

func loadFile(k *koanf.Koanf, path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
	}
	return nil
}

// envKey maps AUTHCORE_SECTION_SOME_KEY to section.some_key. Empty values
// are skipped so an exported-but-blank variable does not mask the file.
func envKey(name, value string) (string, any) {
	if value == "" {
		return "", nil
	}
	name = strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.Replace(name, "_", ".", 1), value
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
}

// Validate checks that every value is usable. The signing key is checked
// for length only when set; SigningKey reports it missing.
func (c *Config) Validate() error {
	switch {
	case c.Database.URL == "":
		return invalid("database.url", "database.url (or DATABASE_URL) is required")
	case c.Auth.AccessTTL <= 0:
		return invalid("auth.access_ttl", "auth.access_ttl must be positive")
	case c.Auth.RefreshTTL <= 0:
		return invalid("auth.refresh_ttl", "auth.refresh_ttl must be positive")
	case c.Auth.ResetTTL <= 0:
		return invalid("auth.reset_ttl", "auth.reset_ttl must be positive")
	case c.Auth.LockoutThreshold <= 0:
		return invalid("auth.lockout_threshold", "auth.lockout_threshold must be positive")
	case c.Auth.LockoutCooldown <= 0:
		return invalid("auth.lockout_cooldown", "auth.lockout_cooldown must be positive")
	case c.HTTP.Addr == "":
		return invalid("http.addr", "http.addr is required")
	case c.HTTP.LoginRate <= 0:
		return invalid("http.login_rate", "http.login_rate must be positive")
	case c.HTTP.LoginBurst <= 0:
		return invalid("http.login_burst", "http.login_burst must be positive")
	case c.Log.Format != "json" && c.Log.Format != "text":
		return invalid("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	case c.Purge.Interval <= 0:
		return invalid("purge.interval", "purge.interval must be positive")
	}
	if c.Auth.SigningKey != "" {
		if _, err := c.SigningKey(); err != nil {
			return err
		}
	}
	return nil
}

// SigningKey decodes auth.signing_key. Standard base64 is tried first; a
// value that does not decode to at least auth.MinSigningKeyLength bytes is
// used as raw bytes.
func (c *Config) SigningKey() (auth.SigningKey, error) {
	raw := c.Auth.SigningKey.Reveal()
	if raw == "" {
		return auth.SigningKey{}, invalid("auth.signing_key", "auth.signing_key is required")
	}
	material := []byte(raw)
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) >= auth.MinSigningKeyLength {
		material = decoded
	}
	if len(material) < auth.MinSigningKeyLength {
		return auth.SigningKey{}, oops.Code("CONFIG_INVALID").
			With("key", "auth.signing_key").
			With("min_length", auth.MinSigningKeyLength).
			Errorf("auth.signing_key must be at least %d bytes", auth.MinSigningKeyLength)
	}
	return auth.NewSigningKey(material)
}

// LockoutPolicy returns the configured lockout policy.
func (c *Config) LockoutPolicy() auth.LockoutPolicy {
	return auth.LockoutPolicy{
		Threshold: c.Auth.LockoutThreshold,
		Cooldown:  c.Auth.LockoutCooldown,
	}
}
