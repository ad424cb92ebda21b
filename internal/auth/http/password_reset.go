package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/civicworks/townhall/internal/auth/service"
	"github.com/civicworks/townhall/pkg/authsdk"
	"github.com/civicworks/townhall/pkg/httpx"
)

// resetRequestedMessage is returned for every forgot request so callers
// cannot learn which emails are registered.
const resetRequestedMessage = "if the email is registered, a reset code has been sent"

type PasswordResetHandler struct {
	PasswordResetService *service.PasswordResetService
}

// HandleForgot godoc
//
//	@Summary		Request Password Reset
//	@Description	Emails a six digit reset code when the address is registered. The response is the same either way.
//	@Tags			Password Reset
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ForgotPasswordRequest	true	"email"
//	@Success		200		{object}	authsdk.MessageResponse			"message"
//	@Failure		400		{object}	authsdk.ErrorResponse			"invalid_request"
//	@Failure		429		{object}	authsdk.ErrorResponse			"rate_limit_exceeded"
//	@Router			/v1/auth/password/forgot [post].
func (h *PasswordResetHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.PasswordResetService.RequestReset(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: resetRequestedMessage})
}

// HandleVerify godoc
//
//	@Summary		Verify Reset Code
//	@Description	Checks a reset code without using it up.
//	@Tags			Password Reset
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyCodeRequest	true	"email and code"
//	@Success		200		{object}	authsdk.MessageResponse		"message"
//	@Failure		400		{object}	authsdk.ErrorResponse		"invalid_request, invalid_or_expired"
//	@Failure		429		{object}	authsdk.ErrorResponse		"rate_limit_exceeded"
//	@Router			/v1/auth/password/verify [post].
func (h *PasswordResetHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyCodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Email == "" || req.Code == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.PasswordResetService.VerifyCode(r.Context(), req.Email, strings.TrimSpace(req.Code)); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "code is valid"})
}

// HandleReset godoc
//
//	@Summary		Reset Password
//	@Description	Uses up the reset code and sets a new password. Existing tokens stay valid.
//	@Tags			Password Reset
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ResetPasswordRequest	true	"email, code, new_password"
//	@Success		200		{object}	authsdk.MessageResponse			"message"
//	@Failure		400		{object}	authsdk.ErrorResponse			"invalid_request, invalid_or_expired, weak_password"
//	@Failure		429		{object}	authsdk.ErrorResponse			"rate_limit_exceeded"
//	@Router			/v1/auth/password/reset [post].
func (h *PasswordResetHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Email == "" || req.Code == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	err := h.PasswordResetService.ResetPassword(r.Context(), req.Email, strings.TrimSpace(req.Code), req.NewPassword)
	if errors.Is(err, service.ErrAccountNotFound) {
		// The account went away after the code was issued.
		authsdk.ErrInvalidOrExpired.WriteError(w)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "password updated"})
}
