package http

import (
	"errors"
	"net/http"

	"github.com/civicworks/townhall/internal/auth/service"
	"github.com/civicworks/townhall/pkg/authsdk"
	"github.com/civicworks/townhall/pkg/slogx"
)

// writeServiceError maps a service error onto its wire form. Unknown errors
// are logged and reported as 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		authsdk.ErrInvalidRequest.WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, service.ErrAccountInactive):
		authsdk.ErrAccountInactive.WriteError(w)
	case errors.Is(err, service.ErrInvalidRefreshToken):
		authsdk.ErrInvalidRefreshToken.WriteError(w)
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, service.ErrRevoked),
		errors.Is(err, service.ErrAccountNotFound):
		authsdk.ErrUnauthorized.WriteError(w)
	case errors.Is(err, service.ErrSessionNotFound):
		authsdk.ErrSessionNotFound.WriteError(w)
	case errors.Is(err, service.ErrSessionAlreadyUsed):
		authsdk.ErrSessionAlreadyUsed.WriteError(w)
	case errors.Is(err, service.ErrSessionExpired):
		authsdk.ErrSessionExpired.WriteError(w)
	case errors.Is(err, service.ErrSessionNotConfirmed):
		authsdk.ErrSessionNotConfirmed.WriteError(w)
	case errors.Is(err, service.ErrInvalidOrExpiredCode):
		authsdk.ErrInvalidOrExpired.WriteError(w)
	case errors.Is(err, service.ErrWeakPassword):
		authsdk.ErrWeakPassword.WriteError(w)
	case errors.Is(err, service.ErrUsernameTaken):
		authsdk.ErrUsernameTaken.WriteError(w)
	case errors.Is(err, service.ErrEmailTaken):
		authsdk.ErrEmailTaken.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
