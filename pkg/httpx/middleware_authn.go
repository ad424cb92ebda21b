package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/civicworks/townhall/pkg/jwtx"
	"github.com/civicworks/townhall/pkg/slogx"
)

// Authenticator admits a raw bearer access token, returning its verified claims.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (jwtx.Token, error)
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	return raw, raw != ""
}

func AuthnMiddleware(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := BearerToken(r)
			if !ok {
				WriteBearerError(w)
				return
			}

			tok, err := a.Authenticate(ctx, raw)
			if err != nil {
				// The specific failure stays in the log; the caller only sees 401.
				slogx.FromContext(ctx).Info("bearer token rejected", "err", err)
				WriteBearerError(w)
				return
			}

			ctx = contextWithToken(ctx, tok)
			ctx = slogx.With(ctx, "subject", tok.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteBearerError writes the RFC 6750 error response for bearer auth.
func WriteBearerError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "unauthorized",
		"error_description": "authentication required",
	})
}
