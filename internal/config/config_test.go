// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopkeep/shopkeep/internal/config"
	"github.com/shopkeep/shopkeep/pkg/errutil"
)

const testSecret = "0123456789abcdef-secret"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validConfig() config.Config {
	cfg := config.Default()
	cfg.Auth.JWTSecret = testSecret
	cfg.Database.URL = "postgres://localhost/shop"
	cfg.Mail.SendGrid.APIKey = "SG.key"
	cfg.Mail.From = "shop@x.com"
	return cfg
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := config.Load(config.LoadOptions{})
	require.NoError(t, err)

	want := config.Default()
	// The test process may carry legacy variables; only compare what they cannot touch.
	want.Auth.JWTSecret = cfg.Auth.JWTSecret
	want.Auth.LegacyPassphrase = cfg.Auth.LegacyPassphrase
	want.Database.URL = cfg.Database.URL
	want.Redis.URL = cfg.Redis.URL
	want.Mail.SendGrid.APIKey = cfg.Mail.SendGrid.APIKey
	want.Mail.From = cfg.Mail.From
	want.HTTP.Addr = cfg.HTTP.Addr
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "shopkeep.yaml", `
mode: dev
http:
  addr: ":8080"
  shutdown_timeout: 30s
auth:
  jwt_secret: from-yaml
  token_ttl: 1h
reset:
  code_validity: 5m
  require_code_on_confirm: true
store:
  users: memory
  codes: redis
redis:
  url: redis://localhost:6379/0
  retention: 1h
mail:
  provider: smtp
  smtp:
    host: smtp.example.com
    port: 2525
`)

	cfg, err := config.Load(config.LoadOptions{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, config.ModeDev, cfg.Mode)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ReadTimeout, "unset keys keep defaults")
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.Reset.CodeValidity)
	assert.True(t, cfg.Reset.RequireCodeOnConfirm)
	assert.Equal(t, config.StoreMemory, cfg.Store.Users)
	assert.Equal(t, config.StoreRedis, cfg.Store.Codes)
	assert.Equal(t, time.Hour, cfg.Redis.Retention)
	assert.Equal(t, "smtp.example.com", cfg.Mail.SMTP.Host)
	assert.Equal(t, 2525, cfg.Mail.SMTP.Port)
	assert.Equal(t, "token", cfg.Auth.TokenHeader)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := config.Load(config.LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := config.Load(config.LoadOptions{EnvFile: filepath.Join(t.TempDir(), ".env")})
	require.NoError(t, err)
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	t.Setenv("JWT_SEC", "legacy-jwt-secret-value")
	t.Setenv("PASS_SEC", "legacy-pass")
	t.Setenv("SENDGRID_API_KEY", "SG.legacy")
	t.Setenv("EMAIL_USER", "shop@x.com")
	t.Setenv("DATABASE_URL", "postgres://db/shop")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("PORT", "5001")

	cfg, err := config.Load(config.LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "legacy-jwt-secret-value", cfg.Auth.JWTSecret)
	assert.Equal(t, "legacy-pass", cfg.Auth.LegacyPassphrase)
	assert.Equal(t, "SG.legacy", cfg.Mail.SendGrid.APIKey)
	assert.Equal(t, "shop@x.com", cfg.Mail.From)
	assert.Equal(t, "postgres://db/shop", cfg.Database.URL)
	assert.Equal(t, "redis://cache:6379", cfg.Redis.URL)
	assert.Equal(t, ":5001", cfg.HTTP.Addr)
}

func TestLoad_EnvFile(t *testing.T) {
	path := writeFile(t, ".env", "JWT_SEC=dotenv-secret-0123456\n")
	t.Setenv("JWT_SEC", "")
	require.NoError(t, os.Unsetenv("JWT_SEC"))

	cfg, err := config.Load(config.LoadOptions{EnvFile: path})
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret-0123456", cfg.Auth.JWTSecret)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "shopkeep.yaml", `
http:
  addr: ":7000"
log:
  level: debug
auth:
  jwt_secret: from-yaml
`)
	t.Setenv("JWT_SEC", "from-legacy-env")
	t.Setenv("SHOPKEEP_AUTH__JWT_SECRET", "from-prefixed-env")
	t.Setenv("SHOPKEEP_HTTP__ADDR", ":7001")
	t.Setenv("SHOPKEEP_RESET__REQUIRE_CODE_ON_CONFIRM", "true")
	t.Setenv("SHOPKEEP_MAIL__RETRY__ATTEMPTS", "5")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--http-addr", ":7002"}))

	cfg, err := config.Load(config.LoadOptions{ConfigFile: path, Flags: fs})
	require.NoError(t, err)

	assert.Equal(t, "from-prefixed-env", cfg.Auth.JWTSecret, "prefixed env beats legacy env and yaml")
	assert.Equal(t, ":7002", cfg.HTTP.Addr, "changed flag beats env")
	assert.Equal(t, "debug", cfg.Log.Level, "unchanged flag keeps yaml value")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Reset.RequireCodeOnConfirm)
	assert.Equal(t, uint64(5), cfg.Mail.Retry.Attempts)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing secret", func(c *config.Config) { c.Auth.JWTSecret = "" }, "auth.jwt_secret is required"},
		{"short secret in prod", func(c *config.Config) { c.Auth.JWTSecret = "short" }, "at least 16 bytes"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad mode", func(c *config.Config) { c.Mode = "staging" }, "mode must be"},
		{"zero token ttl", func(c *config.Config) { c.Auth.TokenTTL = 0 }, "auth.token_ttl"},
		{"negative validity", func(c *config.Config) { c.Reset.CodeValidity = -time.Minute }, "reset.code_validity"},
		{"unknown users store", func(c *config.Config) { c.Store.Users = "redis" }, "store.users"},
		{"unknown codes store", func(c *config.Config) { c.Store.Codes = "mongo" }, "store.codes"},
		{"postgres without url", func(c *config.Config) { c.Database.URL = "" }, "database.url"},
		{"redis without url", func(c *config.Config) { c.Store.Codes = config.StoreRedis }, "redis.url"},
		{"redis retention inside window", func(c *config.Config) {
			c.Store.Codes = config.StoreRedis
			c.Redis.URL = "redis://localhost"
			c.Redis.Retention = 5 * time.Minute
		}, "redis.retention"},
		{"unknown mail provider", func(c *config.Config) { c.Mail.Provider = "pigeon" }, "mail.provider"},
		{"sendgrid without key", func(c *config.Config) { c.Mail.SendGrid.APIKey = "" }, "mail.sendgrid.api_key"},
		{"smtp without host", func(c *config.Config) { c.Mail.Provider = config.MailSMTP }, "mail.smtp.host"},
		{"zero retry attempts", func(c *config.Config) { c.Mail.Retry.Attempts = 0 }, "mail.retry.attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_DevModeAllowsShortSecretAndMemoryStores(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = config.ModeDev
	cfg.Auth.JWTSecret = "dev"
	cfg.Store.Users = config.StoreMemory
	cfg.Store.Codes = config.StoreMemory
	cfg.Mail.Provider = config.MailLog

	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.NeedsDatabase())
}
