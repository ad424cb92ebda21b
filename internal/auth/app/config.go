package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/civicworks/townhall/pkg/jwtx"
)

const (
	StoreDriverMemory = "memory"
	StoreDriverRedis  = "redis"
)

type Config struct {
	Secret       string        `yaml:"secret"`        // HS256 signing secret, required outside dev
	Issuer       string        `yaml:"issuer"`        // iss claim (default: townhall-auth)
	Audience     string        `yaml:"audience"`      // aud claim (default: townhall-api)
	AccessTTL    time.Duration `yaml:"access_ttl"`    // default: 15m
	RefreshTTL   time.Duration `yaml:"refresh_ttl"`   // default: 7d
	ReapInterval time.Duration `yaml:"reap_interval"` // housekeeping sweep interval (default: 1h)
	QRSessionTTL time.Duration `yaml:"qr_session_ttl"`
	ResetCodeTTL time.Duration `yaml:"reset_code_ttl"`

	StoreDriver   string `yaml:"store_driver"` // memory or redis (default: memory)
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`

	DatabaseFile string `yaml:"database_file"` // SQLite account store (default: ./auth.db)
	PepperFile   string `yaml:"pepper_file"`   // password hashing pepper (default: ./pepper)

	// Reset codes are written to the log when SMTPAddr is empty.
	SMTPAddr     string `yaml:"smtp_addr"`
	SMTPUsername string `yaml:"smtp_username"`
	SMTPPassword string `yaml:"smtp_password"`
	SMTPFrom     string `yaml:"smtp_from"`

	QRPayloadPrefix string `yaml:"qr_payload_prefix"`

	Env                 string        `yaml:"env"`        // dev, staging, prod (default: dev)
	LogLevel            string        `yaml:"log_level"`  // debug, info, warn, error (default: info)
	LogFormat           string        `yaml:"log_format"` // json, text (default: json)
	Port                int           `yaml:"port"`       // default: 8080
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period"`

	BootstrapAdmin BootstrapAdminConfig `yaml:"bootstrap_admin"`
}

// BootstrapAdminConfig names the first administrator, created at startup
// when the account store is empty.
type BootstrapAdminConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

func (b BootstrapAdminConfig) Enabled() bool {
	return b.Username != "" && b.Email != "" && b.Password != ""
}

func DefaultConfig() Config {
	return Config{
		Issuer:              "townhall-auth",
		Audience:            "townhall-api",
		AccessTTL:           jwtx.DefaultAccessTokenTTL,
		RefreshTTL:          jwtx.DefaultRefreshTokenTTL,
		ReapInterval:        time.Hour,
		QRSessionTTL:        5 * time.Minute,
		ResetCodeTTL:        15 * time.Minute,
		StoreDriver:         StoreDriverMemory,
		RedisAddr:           "localhost:6379",
		RedisPrefix:         "townhall:auth",
		DatabaseFile:        "auth.db",
		PepperFile:          "pepper",
		SMTPFrom:            "Townhall <no-reply@townhall.local>",
		QRPayloadPrefix:     "townhall://qr-login/",
		Env:                 "dev",
		LogLevel:            "info",
		LogFormat:           "json",
		Port:                8080,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file at
// path (if any), then the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Secret = getEnvOrDefault("AUTH_SECRET", cfg.Secret)
	cfg.Issuer = getEnvOrDefault("AUTH_ISSUER", cfg.Issuer)
	cfg.Audience = getEnvOrDefault("AUTH_AUDIENCE", cfg.Audience)
	cfg.AccessTTL = getEnvDurationOrDefault("AUTH_ACCESS_TTL", cfg.AccessTTL)
	cfg.RefreshTTL = getEnvDurationOrDefault("AUTH_REFRESH_TTL", cfg.RefreshTTL)
	cfg.ReapInterval = getEnvDurationOrDefault("AUTH_REVOCATION_REAP_INTERVAL", cfg.ReapInterval)
	cfg.QRSessionTTL = getEnvDurationOrDefault("AUTH_QR_SESSION_TTL", cfg.QRSessionTTL)
	cfg.ResetCodeTTL = getEnvDurationOrDefault("AUTH_RESET_CODE_TTL", cfg.ResetCodeTTL)

	cfg.StoreDriver = getEnvOrDefault("AUTH_STORE_DRIVER", cfg.StoreDriver)
	cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvIntOrDefault("REDIS_DB", cfg.RedisDB)
	cfg.RedisPrefix = getEnvOrDefault("REDIS_PREFIX", cfg.RedisPrefix)

	cfg.DatabaseFile = getEnvOrDefault("AUTH_DATABASE_FILE", cfg.DatabaseFile)
	cfg.PepperFile = getEnvOrDefault("AUTH_PEPPER_FILE", cfg.PepperFile)

	cfg.SMTPAddr = getEnvOrDefault("SMTP_ADDR", cfg.SMTPAddr)
	cfg.SMTPUsername = getEnvOrDefault("SMTP_USERNAME", cfg.SMTPUsername)
	cfg.SMTPPassword = getEnvOrDefault("SMTP_PASSWORD", cfg.SMTPPassword)
	cfg.SMTPFrom = getEnvOrDefault("SMTP_FROM", cfg.SMTPFrom)

	cfg.QRPayloadPrefix = getEnvOrDefault("QR_PAYLOAD_PREFIX", cfg.QRPayloadPrefix)

	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.Port = getEnvIntOrDefault("PORT", cfg.Port)
	cfg.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)

	cfg.BootstrapAdmin.Username = getEnvOrDefault("BOOTSTRAP_ADMIN_USERNAME", cfg.BootstrapAdmin.Username)
	cfg.BootstrapAdmin.Email = getEnvOrDefault("BOOTSTRAP_ADMIN_EMAIL", cfg.BootstrapAdmin.Email)
	cfg.BootstrapAdmin.Password = getEnvOrDefault("BOOTSTRAP_ADMIN_PASSWORD", cfg.BootstrapAdmin.Password)
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs []error

	switch {
	case c.Secret == "" && c.Env != "dev":
		errs = append(errs, errors.New("AUTH_SECRET is required outside dev"))
	case c.Secret != "" && len(c.Secret) < jwtx.MinSecretLength:
		errs = append(errs, fmt.Errorf("AUTH_SECRET must be at least %d bytes", jwtx.MinSecretLength))
	}

	if c.Issuer == "" {
		errs = append(errs, errors.New("issuer must not be empty"))
	}
	if c.Audience == "" {
		errs = append(errs, errors.New("audience must not be empty"))
	}

	for name, d := range map[string]time.Duration{
		"access TTL":      c.AccessTTL,
		"refresh TTL":     c.RefreshTTL,
		"reap interval":   c.ReapInterval,
		"QR session TTL":  c.QRSessionTTL,
		"reset code TTL":  c.ResetCodeTTL,
		"shutdown period": c.ShutdownGracePeriod,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.AccessTTL > 0 && c.RefreshTTL <= c.AccessTTL {
		errs = append(errs, fmt.Errorf("refresh TTL (%s) must exceed access TTL (%s)", c.RefreshTTL, c.AccessTTL))
	}

	switch c.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis store driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.StoreDriver))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
