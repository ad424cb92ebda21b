package authsdk

import "time"

// ErrorResponse is the JSON shape of APIError.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Tokens
// ============================================================================

type SignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPairResponse carries a freshly issued access/refresh pair.
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// SignInResponse is returned by password sign-in and QR claim.
type SignInResponse struct {
	TokenPairResponse
	Principal Principal `json:"principal"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SignOutRequest names the refresh token to revoke with the access token
// presented in the Authorization header.
type SignOutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ============================================================================
// Accounts
// ============================================================================

type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Principal is the public identity of an account. Roles are not embedded in
// tokens; fetch them here.
type Principal struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// ============================================================================
// QR login
// ============================================================================

const (
	QRStatePending   = "pending"
	QRStateConfirmed = "confirmed"
	QRStateExpired   = "expired"
)

type QRSessionResponse struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

// QREvent is pushed over the session websocket on every state change.
type QREvent struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

// ============================================================================
// Password reset
// ============================================================================

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse is returned by /livez and /readyz (which adds Checks).
type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime,omitempty"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}
