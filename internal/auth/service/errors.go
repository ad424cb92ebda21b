package service

import "errors"

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	// ErrAccountInactive is surfaced to the caller on purpose so the client
	// can point the user at the appeal process.
	ErrAccountInactive     = errors.New("account_inactive")
	ErrAccountNotFound     = errors.New("account_not_found")
	ErrInvalidRefreshToken = errors.New("invalid_refresh_token")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRevoked             = errors.New("token_revoked")

	ErrSessionNotFound     = errors.New("qr_session_not_found")
	ErrSessionAlreadyUsed  = errors.New("qr_session_already_used")
	ErrSessionExpired      = errors.New("qr_session_expired")
	ErrSessionNotConfirmed = errors.New("qr_session_not_confirmed")

	ErrInvalidOrExpiredCode = errors.New("invalid_or_expired_code")

	ErrWeakPassword  = errors.New("weak_password")
	ErrUsernameTaken = errors.New("username_taken")
	ErrEmailTaken    = errors.New("email_taken")
)
