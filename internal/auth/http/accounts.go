package http

import (
	"net/http"

	"github.com/civicworks/townhall/internal/auth/service"
	"github.com/civicworks/townhall/pkg/authsdk"
	"github.com/civicworks/townhall/pkg/httpx"
)

type AccountHandler struct {
	AuthService *service.AuthService
}

// HandleSignUp godoc
//
//	@Summary		Register Account
//	@Description	Creates an active citizen account. Passwords must be at least 8 characters.
//	@Tags			Accounts
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SignUpRequest	true	"username, email, password"
//	@Success		201		{object}	authsdk.Principal		"the new account"
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_request, weak_password"
//	@Failure		409		{object}	authsdk.ErrorResponse	"username_taken, email_taken"
//	@Failure		429		{object}	authsdk.ErrorResponse	"rate_limit_exceeded"
//	@Router			/v1/auth/signup [post].
func (h *AccountHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SignUpRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	principal, err := h.AuthService.Register(r.Context(), service.Registration{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toPrincipal(principal))
}

// HandleMe godoc
//
//	@Summary		Current Principal
//	@Description	Returns the account behind the bearer access token, including its roles.
//	@Tags			Accounts
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.Principal		"id, username, email, roles"
//	@Failure		401	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		403	{object}	authsdk.ErrorResponse	"account_inactive"
//	@Router			/v1/auth/me [get].
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	sub, ok := httpx.SubjectFromContext(r.Context())
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	principal, err := h.AuthService.Principal(r.Context(), sub)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toPrincipal(principal))
}
