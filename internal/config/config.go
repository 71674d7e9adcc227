// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

// Package config loads shopkeep configuration from defaults, a YAML file,
// a dotenv file, the environment, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
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
)

// EnvPrefix prefixes environment overrides, e.g. SHOPKEEP_AUTH__JWT_SECRET.
const EnvPrefix = "SHOPKEEP_"

// Modes.
const (
	ModeDev  = "dev"
	ModeProd = "prod"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Mail providers.
const (
	MailSendGrid = "sendgrid"
	MailSMTP     = "smtp"
	MailLog      = "log"
)

// MinJWTSecretLen is the shortest signing secret accepted outside dev mode.
const MinJWTSecretLen = 16

// Config is the full service configuration.
type Config struct {
	Mode     string         `koanf:"mode"`
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Store    StoreConfig    `koanf:"store"`
	Auth     AuthConfig     `koanf:"auth"`
	Reset    ResetConfig    `koanf:"reset"`
	Mail     MailConfig     `koanf:"mail"`
}

// HTTPConfig configures the public API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL         string `koanf:"url"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// RedisConfig configures the Redis code store.
type RedisConfig struct {
	URL       string        `koanf:"url"`
	Prefix    string        `koanf:"prefix"`
	Retention time.Duration `koanf:"retention"`
}

// StoreConfig selects repository backends.
type StoreConfig struct {
	Users string `koanf:"users"`
	Codes string `koanf:"codes"`
}

// AuthConfig configures credentials and tokens.
type AuthConfig struct {
	JWTSecret        string        `koanf:"jwt_secret"`
	TokenTTL         time.Duration `koanf:"token_ttl"`
	TokenIssuer      string        `koanf:"token_issuer"`
	TokenHeader      string        `koanf:"token_header"`
	LegacyPassphrase string        `koanf:"legacy_passphrase"`
}

// ResetConfig configures the password reset flow.
type ResetConfig struct {
	CodeValidity         time.Duration `koanf:"code_validity"`
	RequireCodeOnConfirm bool          `koanf:"require_code_on_confirm"`
}

// MailConfig configures outbound mail.
type MailConfig struct {
	Provider string         `koanf:"provider"`
	From     string         `koanf:"from"`
	SendGrid SendGridConfig `koanf:"sendgrid"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	Retry    RetryConfig    `koanf:"retry"`
}

// SendGridConfig configures the SendGrid provider.
type SendGridConfig struct {
	APIKey string `koanf:"api_key"`
	Host   string `koanf:"host"`
}

// SMTPConfig configures the SMTP provider.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// RetryConfig bounds delivery retries. Attempts of 1 disables retrying.
type RetryConfig struct {
	Attempts       uint64        `koanf:"attempts"`
	InitialBackoff time.Duration `koanf:"initial_backoff"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Mode: ModeProd,
		HTTP: HTTPConfig{
			Addr:            ":5000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Redis:   RedisConfig{Prefix: "shopkeep:otp"},
		Store:   StoreConfig{Users: StorePostgres, Codes: StorePostgres},
		Auth: AuthConfig{
			TokenTTL:    72 * time.Hour,
			TokenHeader: "token",
		},
		Reset: ResetConfig{CodeValidity: 10 * time.Minute},
		Mail: MailConfig{
			Provider: MailSendGrid,
			SMTP:     SMTPConfig{Port: 587},
			Retry:    RetryConfig{Attempts: 3, InitialBackoff: 200 * time.Millisecond},
		},
	}
}

// legacyEnv maps the environment names used by earlier deployments to config keys.
var legacyEnv = map[string]string{
	"JWT_SEC":          "auth.jwt_secret",
	"PASS_SEC":         "auth.legacy_passphrase",
	"SENDGRID_API_KEY": "mail.sendgrid.api_key",
	"EMAIL_USER":       "mail.from",
	"DATABASE_URL":     "database.url",
	"REDIS_URL":        "redis.url",
	"PORT":             "http.addr",
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"mode":          "mode",
	"http-addr":     "http.addr",
	"metrics-addr":  "metrics.addr",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"database-url":  "database.url",
	"auto-migrate":  "database.auto_migrate",
	"users-store":   "store.users",
	"codes-store":   "store.codes",
	"mail-provider": "mail.provider",
}

// LoadOptions locates the optional sources for Load.
type LoadOptions struct {
	// ConfigFile is a YAML file. Empty skips it; a missing named file is an error.
	ConfigFile string
	// EnvFile is a dotenv file loaded into the process environment.
	// A missing file is ignored.
	EnvFile string
	// Flags are applied last. Only flags the user set override other sources.
	Flags *pflag.FlagSet
}

// RegisterFlags adds the flags understood by Load to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("mode", d.Mode, "run mode (dev or prod)")
	fs.String("http-addr", d.HTTP.Addr, "HTTP API listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.Bool("auto-migrate", false, "apply pending migrations on startup")
	fs.String("users-store", d.Store.Users, "user store backend (postgres or memory)")
	fs.String("codes-store", d.Store.Codes, "reset code store backend (postgres, redis or memory)")
	fs.String("mail-provider", d.Mail.Provider, "mail provider (sendgrid, smtp or log)")
}

// Load layers defaults, the YAML file, the dotenv file, legacy environment
// names, SHOPKEEP_ environment variables, and changed flags, in that order.
func Load(opts LoadOptions) (Config, error) {
	k := koanf.New(".")

	if opts.ConfigFile != "" {
		if err := k.Load(file.Provider(opts.ConfigFile), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load config file").
				With("path", opts.ConfigFile).
				Wrap(err)
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load env file").
				With("path", opts.EnvFile).
				Wrap(err)
		}
	}

	legacy := env.ProviderWithValue("", ".", func(name, value string) (string, any) {
		key, ok := legacyEnv[name]
		if !ok || value == "" {
			return "", nil
		}
		if name == "PORT" && !strings.Contains(value, ":") {
			value = ":" + value
		}
		return key, value
	})
	if err := k.Load(legacy, nil); err != nil {
		return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("operation", "load legacy env").Wrap(err)
	}

	prefixed := env.Provider(EnvPrefix, ".", func(name string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "__", ".")
	})
	if err := k.Load(prefixed, nil); err != nil {
		return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("operation", "load env").Wrap(err)
	}

	if opts.Flags != nil {
		flags := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(flags, nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("operation", "load flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("operation", "decode config").Wrap(err)
	}
	return cfg, nil
}

// IsDev reports whether the service runs in development mode.
func (c Config) IsDev() bool {
	return c.Mode == ModeDev
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Mode == ModeDev || c.Mode == ModeProd, "mode must be %q or %q, got %q", ModeDev, ModeProd, c.Mode)
	check(c.HTTP.Addr != "", "http.addr is required")
	check(c.Log.Format == "json" || c.Log.Format == "text", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	check(slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level),
		"log.level must be one of debug, info, warn, error, got %q", c.Log.Level)

	check(c.Auth.JWTSecret != "", "auth.jwt_secret is required")
	if c.Auth.JWTSecret != "" && !c.IsDev() {
		check(len(c.Auth.JWTSecret) >= MinJWTSecretLen,
			"auth.jwt_secret must be at least %d bytes outside dev mode", MinJWTSecretLen)
	}
	check(c.Auth.TokenTTL > 0, "auth.token_ttl must be positive")
	check(c.Reset.CodeValidity > 0, "reset.code_validity must be positive")
	check(c.HTTP.ReadTimeout > 0 && c.HTTP.WriteTimeout > 0 && c.HTTP.ShutdownTimeout > 0,
		"http timeouts must be positive")

	check(slices.Contains([]string{StorePostgres, StoreMemory}, c.Store.Users),
		"store.users must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store.Users)
	check(slices.Contains([]string{StorePostgres, StoreRedis, StoreMemory}, c.Store.Codes),
		"store.codes must be %q, %q or %q, got %q", StorePostgres, StoreRedis, StoreMemory, c.Store.Codes)
	if c.NeedsDatabase() {
		check(c.Database.URL != "", "database.url is required for the postgres store")
	}
	if c.Store.Codes == StoreRedis {
		check(c.Redis.URL != "", "redis.url is required for the redis code store")
		check(c.Redis.Retention == 0 || c.Redis.Retention > c.Reset.CodeValidity,
			"redis.retention must exceed reset.code_validity")
	}

	switch c.Mail.Provider {
	case MailSendGrid:
		check(c.Mail.SendGrid.APIKey != "", "mail.sendgrid.api_key is required for the sendgrid provider")
		check(c.Mail.From != "", "mail.from is required")
	case MailSMTP:
		check(c.Mail.SMTP.Host != "", "mail.smtp.host is required for the smtp provider")
		check(c.Mail.SMTP.Port > 0, "mail.smtp.port must be positive")
		check(c.Mail.From != "", "mail.from is required")
	case MailLog:
	default:
		errs = append(errs, fmt.Errorf("mail.provider must be %q, %q or %q, got %q",
			MailSendGrid, MailSMTP, MailLog, c.Mail.Provider))
	}
	check(c.Mail.Retry.Attempts > 0, "mail.retry.attempts must be positive")

	if len(errs) > 0 {
		return oops.Code("CONFIG_INVALID").Wrap(errors.Join(errs...))
	}
	return nil
}

// NeedsDatabase reports whether any configured store uses PostgreSQL.
func (c Config) NeedsDatabase() bool {
	return c.Store.Users == StorePostgres || c.Store.Codes == StorePostgres
}
