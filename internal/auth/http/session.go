package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/civicworks/townhall/internal/auth/service"
	"github.com/civicworks/townhall/pkg/authsdk"
	"github.com/civicworks/townhall/pkg/httpx"
)

// SessionHandler serves password sign-in, token refresh and sign-out.
type SessionHandler struct {
	AuthService *service.AuthService
	AccessTTL   time.Duration
}

// HandleSignIn godoc
//
//	@Summary		Sign In
//	@Description	Exchanges a username and password for an access/refresh token pair.
//	@Description	Unknown usernames and wrong passwords are indistinguishable. A disabled account is reported as 403 only after the password has been verified.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SignInRequest	true	"username and password"
//	@Success		200		{object}	authsdk.SignInResponse	"token pair and principal"
//	@Failure		400		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		403		{object}	authsdk.ErrorResponse	"account_inactive"
//	@Failure		429		{object}	authsdk.ErrorResponse	"rate_limit_exceeded"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Router			/v1/auth/signin [post].
func (h *SessionHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SignInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	principal, pair, err := h.AuthService.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toSignIn(principal, pair, h.AccessTTL))
}

// HandleRefresh godoc
//
//	@Summary		Refresh Tokens
//	@Description	Exchanges a valid, unrevoked refresh token for a new token pair. The refresh token is not rotated.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest		true	"refresh_token"
//	@Success		200		{object}	authsdk.TokenPairResponse	"new token pair"
//	@Failure		400		{object}	authsdk.ErrorResponse		"error, error_description"
//	@Failure		401		{object}	authsdk.ErrorResponse		"invalid_refresh_token"
//	@Header			200		{string}	Cache-Control				"no-store"
//	@Router			/v1/auth/refresh [post].
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.AuthService.Refresh(r.Context(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTokenPair(pair, h.AccessTTL))
}

// HandleSignOut godoc
//
//	@Summary		Sign Out
//	@Description	Revokes the bearer access token and the refresh token named in the body. Either may be omitted, so a client whose access token has expired can still revoke its refresh token. When both are sent they must belong to the same account. Expired tokens are skipped.
//	@Tags			Session
//	@Accept			json
//	@Security		BearerAuth
//	@Param			request	body	authsdk.SignOutRequest	false	"refresh_token"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/auth/signout [post].
func (h *SessionHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	access, _ := httpx.BearerToken(r)

	var req authsdk.SignOutRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			authsdk.ErrInvalidRequest.WriteError(w)
			return
		}
	}
	refresh := strings.TrimSpace(req.RefreshToken)

	if access == "" && refresh == "" {
		httpx.WriteBearerError(w)
		return
	}

	if err := h.AuthService.SignOut(r.Context(), access, refresh); err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			httpx.WriteBearerError(w)
			return
		}
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
