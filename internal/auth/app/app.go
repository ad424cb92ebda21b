package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	httpapi "github.com/civicworks/townhall/internal/auth/http"
	"github.com/civicworks/townhall/internal/auth/service"
	"github.com/civicworks/townhall/internal/auth/store"
	"github.com/civicworks/townhall/internal/auth/store/drivers/memory"
	"github.com/civicworks/townhall/internal/auth/store/drivers/redis"
	"github.com/civicworks/townhall/internal/auth/store/drivers/sqlite"
	"github.com/civicworks/townhall/pkg/clockx"
	"github.com/civicworks/townhall/pkg/cryptox"
	"github.com/civicworks/townhall/pkg/jwtx"
	"github.com/civicworks/townhall/pkg/mailx"
	"github.com/civicworks/townhall/pkg/metricsx"
	"github.com/civicworks/townhall/pkg/slogx"
)

// BuildVersion is overridden at build time with -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// memoryShards is the shard count of the in-process session store.
const memoryShards = 32

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger
	clock  clockx.Clock

	// Core dependencies
	accounts store.Store
	sessions store.SessionStore
	codec    *jwtx.Codec
	metrics  *metricsx.Metrics
	hasher   cryptox.Argon2Hasher
	mailer   service.Mailer

	// Services
	revocations         *service.RevocationRegistry
	tokenService        *service.TokenService
	authService         *service.AuthService
	bootstrapService    *service.BootstrapService
	qrLoginService      *service.QRLoginService
	passwordReset       *service.PasswordResetService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// Option adjusts an Application before its dependencies are built.
type Option func(*Application)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockx.Clock) Option {
	return func(app *Application) { app.clock = c }
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(app *Application) { app.logger = l }
}

// WithMailer replaces the mailer chosen from the SMTP settings.
func WithMailer(m service.Mailer) Option {
	return func(app *Application) { app.mailer = m }
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg:   cfg,
		clock: clockx.Real(),
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		app.logger = slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		})
	}

	if err := app.initCrypto(); err != nil {
		return nil, err
	}
	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSessionStore(); err != nil {
		_ = app.accounts.Close()
		return nil, err
	}

	app.initServices()

	if err := app.bootstrapAdmin(context.Background()); err != nil {
		_ = app.sessions.Close()
		_ = app.accounts.Close()
		return nil, err
	}

	app.initHTTP()
	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"store", app.cfg.StoreDriver,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	return app.Close()
}

// Close releases the stores without touching the HTTP server.
func (app *Application) Close() error {
	var errs []error
	if err := app.sessions.Close(); err != nil {
		app.logger.Error("error closing session store", "error", err)
		errs = append(errs, err)
	}
	if err := app.accounts.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		app.logger.Info("auth service stopped")
	}
	return errors.Join(errs...)
}

// initCrypto loads the pepper and builds the token codec. In dev an empty
// secret is replaced by a random one, so tokens do not survive a restart.
func (app *Application) initCrypto() error {
	pepper, err := cryptox.LoadOrGeneratePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.Argon2Hasher{Pepper: pepper}

	secret := app.cfg.Secret
	if secret == "" {
		secret, err = cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return err
		}
		app.logger.Warn("AUTH_SECRET not set, using an ephemeral signing secret")
	}

	app.codec, err = jwtx.NewCodec(jwtx.CodecConfig{
		Secret:     []byte(secret),
		Issuer:     app.cfg.Issuer,
		Audience:   app.cfg.Audience,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to build token codec: %w", err)
	}
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.accounts = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initSessionStore selects where revocations, QR sessions and reset codes
// live. The redis driver lets several instances share them.
func (app *Application) initSessionStore() error {
	switch app.cfg.StoreDriver {
	case StoreDriverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})
		st := redis.NewStore(client, redis.Options{
			Prefix: app.cfg.RedisPrefix,
			Clock:  app.clock,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			_ = st.Close()
			return fmt.Errorf("failed to connect to redis at %s: %w", app.cfg.RedisAddr, err)
		}
		app.sessions = st
		app.logger.Info("using redis session store", "addr", app.cfg.RedisAddr, "prefix", app.cfg.RedisPrefix)
	default:
		app.sessions = memory.NewStore(memoryShards)
		app.logger.Info("using in-memory session store")
	}
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.metrics = metricsx.New()

	if app.mailer == nil {
		if app.cfg.SMTPAddr != "" {
			app.mailer = mailx.NewSMTPMailer(app.cfg.SMTPAddr, app.cfg.SMTPUsername, app.cfg.SMTPPassword, app.cfg.SMTPFrom)
		} else {
			app.logger.Warn("SMTP_ADDR not set, password reset codes will only be logged")
			app.mailer = mailx.LogMailer{Logger: app.logger}
		}
	}

	app.revocations = &service.RevocationRegistry{
		Store:   app.sessions.Revocations(),
		Metrics: app.metrics,
	}
	app.tokenService = &service.TokenService{
		Codec:       app.codec,
		Revocations: app.revocations,
		Clock:       app.clock,
		Metrics:     app.metrics,
	}
	app.authService = &service.AuthService{
		Store:   app.accounts,
		Hasher:  app.hasher,
		Tokens:  app.tokenService,
		Clock:   app.clock,
		Metrics: app.metrics,
	}
	app.bootstrapService = &service.BootstrapService{
		Store:  app.accounts,
		Hasher: app.hasher,
		Clock:  app.clock,
	}
	app.qrLoginService = &service.QRLoginService{
		Store:    app.sessions.QRSessions(),
		Accounts: app.accounts.Accounts(),
		Tokens:   app.tokenService,
		Clock:    app.clock,
		TTL:      app.cfg.QRSessionTTL,
		Metrics:  app.metrics,
	}
	app.passwordReset = &service.PasswordResetService{
		Accounts: app.accounts.Accounts(),
		Codes:    app.sessions.ResetCodes(),
		Hasher:   app.hasher,
		Mailer:   app.mailer,
		Clock:    app.clock,
		TTL:      app.cfg.ResetCodeTTL,
		Metrics:  app.metrics,
	}

	app.housekeepingService = service.NewHousekeepingService(
		map[string]service.Reaper{
			"revocations": app.revocations,
			"qr_sessions": app.qrLoginService,
			"reset_codes": app.passwordReset,
		},
		app.logger,
		app.clock,
		app.cfg.ReapInterval,
	)
}

func (app *Application) bootstrapAdmin(ctx context.Context) error {
	admin := app.cfg.BootstrapAdmin
	if !admin.Enabled() {
		return nil
	}

	created, err := app.bootstrapService.EnsureAdmin(slogx.WithContext(ctx, app.logger), service.BootstrapAdmin{
		Username: admin.Username,
		Email:    admin.Email,
		Password: admin.Password,
	})
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin account: %w", err)
	}
	if created {
		app.logger.Info("bootstrap admin account created", "username", admin.Username)
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.accounts,
		app.sessions,
		app.logger,
	)

	// Wire services to router
	router.AuthService = app.authService
	router.TokenService = app.tokenService
	router.QRLoginService = app.qrLoginService
	router.PasswordResetService = app.passwordReset
	router.Metrics = app.metrics
	router.QRPayloadPrefix = app.cfg.QRPayloadPrefix
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
