package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/civicworks/townhall/internal/auth/service"
	"github.com/civicworks/townhall/internal/auth/store"
	"github.com/civicworks/townhall/pkg/httpx"
	"github.com/civicworks/townhall/pkg/jwtx"
	"github.com/civicworks/townhall/pkg/metricsx"
	"github.com/civicworks/townhall/pkg/slogx"

	_ "github.com/civicworks/townhall/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	accounts store.Store
	sessions store.SessionStore

	AuthService          *service.AuthService
	TokenService         *service.TokenService
	QRLoginService       *service.QRLoginService
	PasswordResetService *service.PasswordResetService
	Metrics              *metricsx.Metrics

	// QRPayloadPrefix is prepended to the session ID in rendered QR codes,
	// e.g. "townhall://qr-login/".
	QRPayloadPrefix string
	QRPollInterval  time.Duration
}

func NewRouter(
	buildVersion string,
	accounts store.Store,
	sessions store.SessionStore,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		accounts:     accounts,
		sessions:     sessions,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerAccounts()
	r.registerQR()
	r.registerPasswordReset()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Townhall Authentication Service API
//	@version		0.1.0
//	@description	Session lifecycle for Townhall: password sign-in, token refresh and sign-out, cross-device QR login and password reset by emailed code.
//	@description
//	@description				Access and refresh tokens are HS256 JWTs. Every token failure is reported as 401 without naming the failed check.
//
//	@contact.name				Civic Works
//	@contact.url				https://github.com/civicworks/townhall
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) accessTTL() time.Duration {
	return r.TokenService.Codec.TTL(jwtx.KindAccess)
}

func (r *Router) registerSession() {
	h := &SessionHandler{
		AuthService: r.AuthService,
		AccessTTL:   r.accessTTL(),
	}

	// POST /signin - strict rate limit by IP + username (brute force)
	r.Mux.Handle("POST /v1/auth/signin",
		httpx.Chain(http.HandlerFunc(h.HandleSignIn),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "username"),
		),
	)

	// POST /refresh - moderate rate limit by IP
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /signout - bearer and/or refresh token, moderate rate limit by IP
	r.Mux.Handle("POST /v1/auth/signout",
		httpx.Chain(http.HandlerFunc(h.HandleSignOut),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAccounts() {
	h := &AccountHandler{
		AuthService: r.AuthService,
	}

	// POST /signup - strict rate limit by IP (public endpoint)
	r.Mux.Handle("POST /v1/auth/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignUp),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /me - lenient rate limit by subject
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitBySubject(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerQR() {
	h := &QRHandler{
		QRLoginService: r.QRLoginService,
		PayloadPrefix:  r.QRPayloadPrefix,
		AccessTTL:      r.accessTTL(),
		PollInterval:   r.QRPollInterval,
	}

	// Session creation and polling come from unauthenticated devices
	r.Mux.Handle("POST /v1/auth/qr/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/qr/sessions/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleStatus),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/qr/sessions/{id}/qr.png",
		httpx.Chain(http.HandlerFunc(h.HandleImage),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/qr/sessions/{id}/ws",
		httpx.Chain(http.HandlerFunc(h.HandleWatch),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /confirm - the scanning device must be signed in
	r.Mux.Handle("POST /v1/auth/qr/sessions/{id}/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirm),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/qr/sessions/{id}/claim",
		httpx.Chain(http.HandlerFunc(h.HandleClaim),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerPasswordReset() {
	h := &PasswordResetHandler{
		PasswordResetService: r.PasswordResetService,
	}

	// All three are keyed by IP + email so one address cannot be flooded
	// or have its code guessed.
	r.Mux.Handle("POST /v1/auth/password/forgot",
		httpx.Chain(http.HandlerFunc(h.HandleForgot),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/reset",
		httpx.Chain(http.HandlerFunc(h.HandleReset),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, map[string]Pinger{
			"accounts": r.accounts,
			"sessions": r.sessions,
		}),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	}
}
