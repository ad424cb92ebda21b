package app

import (
	"os"

	"github.com/spf13/pflag"
)

// ConfigFromArgs loads the configuration named by --config (or
// AUTH_CONFIG_FILE), overlays the environment, then applies any flags set
// in args. Flags win over everything else.
func ConfigFromArgs(name string, args []string) (Config, error) {
	path := os.Getenv("AUTH_CONFIG_FILE")

	pre := pflag.NewFlagSet(name, pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.Usage = func() {}
	pre.StringVar(&path, "config", path, "")
	// Help is reported by the full parse below.
	pre.BoolP("help", "h", false, "")
	if err := pre.Parse(args); err != nil {
		return Config{}, err
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return Config{}, err
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", path, "YAML config file (env: AUTH_CONFIG_FILE)")
	registerFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// registerFlags binds flags to cfg, using its current values as defaults.
func registerFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP listen port (env: PORT)")
	fs.StringVar(&cfg.Env, "env", cfg.Env, "environment: dev, staging, prod (env: ENV)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, error (env: LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or text (env: LOG_FORMAT)")

	fs.StringVar(&cfg.Issuer, "issuer", cfg.Issuer, "token issuer (env: AUTH_ISSUER)")
	fs.StringVar(&cfg.Audience, "audience", cfg.Audience, "token audience (env: AUTH_AUDIENCE)")
	fs.DurationVar(&cfg.AccessTTL, "access-ttl", cfg.AccessTTL, "access token lifetime (env: AUTH_ACCESS_TTL)")
	fs.DurationVar(&cfg.RefreshTTL, "refresh-ttl", cfg.RefreshTTL, "refresh token lifetime (env: AUTH_REFRESH_TTL)")
	fs.DurationVar(&cfg.ReapInterval, "reap-interval", cfg.ReapInterval, "housekeeping interval (env: AUTH_REVOCATION_REAP_INTERVAL)")
	fs.DurationVar(&cfg.QRSessionTTL, "qr-session-ttl", cfg.QRSessionTTL, "QR login session lifetime (env: AUTH_QR_SESSION_TTL)")
	fs.DurationVar(&cfg.ResetCodeTTL, "reset-code-ttl", cfg.ResetCodeTTL, "password reset code lifetime (env: AUTH_RESET_CODE_TTL)")

	fs.StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "session store driver: memory or redis (env: AUTH_STORE_DRIVER)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address (env: REDIS_ADDR)")
	fs.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "redis database (env: REDIS_DB)")
	fs.StringVar(&cfg.RedisPrefix, "redis-prefix", cfg.RedisPrefix, "redis key prefix (env: REDIS_PREFIX)")

	fs.StringVar(&cfg.DatabaseFile, "database", cfg.DatabaseFile, "SQLite account database (env: AUTH_DATABASE_FILE)")
	fs.StringVar(&cfg.PepperFile, "pepper-file", cfg.PepperFile, "password pepper file (env: AUTH_PEPPER_FILE)")

	fs.StringVar(&cfg.SMTPAddr, "smtp-addr", cfg.SMTPAddr, "SMTP submission server host:port (env: SMTP_ADDR)")
	fs.StringVar(&cfg.SMTPFrom, "smtp-from", cfg.SMTPFrom, "sender address for reset mail (env: SMTP_FROM)")
	fs.StringVar(&cfg.QRPayloadPrefix, "qr-payload-prefix", cfg.QRPayloadPrefix, "prefix of the QR code payload (env: QR_PAYLOAD_PREFIX)")
}
