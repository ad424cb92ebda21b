package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"AUTH_CONFIG_FILE", "AUTH_SECRET", "AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_ACCESS_TTL",
	"AUTH_REFRESH_TTL", "AUTH_REVOCATION_REAP_INTERVAL", "AUTH_QR_SESSION_TTL",
	"AUTH_RESET_CODE_TTL", "AUTH_STORE_DRIVER", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"REDIS_PREFIX", "AUTH_DATABASE_FILE", "AUTH_PEPPER_FILE", "SMTP_ADDR", "SMTP_USERNAME",
	"SMTP_PASSWORD", "SMTP_FROM", "QR_PAYLOAD_PREFIX", "ENV", "LOG_LEVEL", "LOG_FORMAT", "PORT",
	"SHUTDOWN_GRACE_PERIOD", "BOOTSTRAP_ADMIN_USERNAME", "BOOTSTRAP_ADMIN_EMAIL",
	"BOOTSTRAP_ADMIN_PASSWORD",
}

// clearConfigEnv blanks every variable LoadConfig reads; empty values count
// as unset.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
	}
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearConfigEnv(t)

		cfg, err := LoadConfig("")
		require.NoError(t, err)
		require.Equal(t, DefaultConfig(), cfg)
		require.Equal(t, 15*time.Minute, cfg.AccessTTL)
		require.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
		require.Equal(t, 5*time.Minute, cfg.QRSessionTTL)
		require.Equal(t, 15*time.Minute, cfg.ResetCodeTTL)
		require.Equal(t, StoreDriverMemory, cfg.StoreDriver)
		require.NoError(t, cfg.Validate())
	})

	t.Run("environment", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("AUTH_ISSUER", "civic-auth")
		t.Setenv("AUTH_ACCESS_TTL", "5m")
		t.Setenv("AUTH_RESET_CODE_TTL", "600")
		t.Setenv("AUTH_STORE_DRIVER", "redis")
		t.Setenv("REDIS_DB", "3")
		t.Setenv("PORT", "not-a-number")
		t.Setenv("BOOTSTRAP_ADMIN_USERNAME", "root")
		t.Setenv("BOOTSTRAP_ADMIN_EMAIL", "root@example.org")
		t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "change me please")

		cfg, err := LoadConfig("")
		require.NoError(t, err)
		require.Equal(t, "civic-auth", cfg.Issuer)
		require.Equal(t, 5*time.Minute, cfg.AccessTTL)
		require.Equal(t, 10*time.Minute, cfg.ResetCodeTTL)
		require.Equal(t, StoreDriverRedis, cfg.StoreDriver)
		require.Equal(t, 3, cfg.RedisDB)
		require.Equal(t, 8080, cfg.Port, "unparseable values keep the default")
		require.True(t, cfg.BootstrapAdmin.Enabled())
	})

	t.Run("file then environment", func(t *testing.T) {
		clearConfigEnv(t)
		path := writeConfigFile(t, `
issuer: file-issuer
audience: file-audience
access_ttl: 10m
refresh_ttl: 24h
store_driver: redis
redis_addr: redis.internal:6379
port: 9000
bootstrap_admin:
  username: admin
  email: admin@example.org
  password: from-the-file
`)
		t.Setenv("PORT", "9100")

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, "file-issuer", cfg.Issuer)
		require.Equal(t, "file-audience", cfg.Audience)
		require.Equal(t, 10*time.Minute, cfg.AccessTTL)
		require.Equal(t, 24*time.Hour, cfg.RefreshTTL)
		require.Equal(t, "redis.internal:6379", cfg.RedisAddr)
		require.Equal(t, 9100, cfg.Port)
		require.Equal(t, "admin", cfg.BootstrapAdmin.Username)

		// Untouched keys keep their defaults.
		require.Equal(t, 5*time.Minute, cfg.QRSessionTTL)
	})

	t.Run("missing or broken file", func(t *testing.T) {
		clearConfigEnv(t)

		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)

		_, err = LoadConfig(writeConfigFile(t, "port: [1, 2"))
		require.Error(t, err)
	})
}

func TestConfigFromArgs(t *testing.T) {
	t.Run("flags win over file and environment", func(t *testing.T) {
		clearConfigEnv(t)
		path := writeConfigFile(t, "port: 9000\nissuer: file-issuer\nlog_level: warn\n")
		t.Setenv("AUTH_CONFIG_FILE", path)
		t.Setenv("PORT", "9100")
		t.Setenv("LOG_LEVEL", "error")

		cfg, err := ConfigFromArgs("auth", []string{"--port", "9200", "--access-ttl=1m"})
		require.NoError(t, err)
		require.Equal(t, 9200, cfg.Port)
		require.Equal(t, time.Minute, cfg.AccessTTL)
		require.Equal(t, "error", cfg.LogLevel)
		require.Equal(t, "file-issuer", cfg.Issuer)
	})

	t.Run("config flag", func(t *testing.T) {
		clearConfigEnv(t)
		path := writeConfigFile(t, "audience: flagged\n")

		cfg, err := ConfigFromArgs("auth", []string{"-p", "7000", "--config", path})
		require.NoError(t, err)
		require.Equal(t, "flagged", cfg.Audience)
		require.Equal(t, 7000, cfg.Port)
	})

	t.Run("unknown flag", func(t *testing.T) {
		clearConfigEnv(t)
		_, err := ConfigFromArgs("auth", []string{"--no-such-flag"})
		require.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.Env = "prod"
	valid.Secret = "0123456789abcdef0123456789abcdef"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret outside dev", func(c *Config) { c.Secret = "" }},
		{"short secret", func(c *Config) { c.Secret = "too-short" }},
		{"zero access ttl", func(c *Config) { c.AccessTTL = 0 }},
		{"negative qr ttl", func(c *Config) { c.QRSessionTTL = -time.Second }},
		{"refresh not longer than access", func(c *Config) { c.RefreshTTL = c.AccessTTL }},
		{"unknown driver", func(c *Config) { c.StoreDriver = "etcd" }},
		{"redis without address", func(c *Config) { c.StoreDriver = StoreDriverRedis; c.RedisAddr = "" }},
		{"empty audience", func(c *Config) { c.Audience = "" }},
		{"bad port", func(c *Config) { c.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}

	t.Run("dev may omit the secret", func(t *testing.T) {
		cfg := DefaultConfig()
		require.Empty(t, cfg.Secret)
		require.NoError(t, cfg.Validate())
	})
}
