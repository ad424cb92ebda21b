package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SDKClient calls the Townhall auth service. It holds no credentials;
// authenticated calls take a token or go through a Session.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *SDKClient) SignIn(ctx context.Context, username, password string) (*SignInResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/signin", SignInRequest{
		Username: username,
		Password: password,
	}, "")
	if err != nil {
		return nil, err
	}

	var out SignInResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuthenticateWithPassword signs in and wraps the result in a Session.
func (c *SDKClient) AuthenticateWithPassword(ctx context.Context, username, password string) (*Session, error) {
	out, err := c.SignIn(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return newSession(c, out.TokenPairResponse), nil
}

func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenPairResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/refresh", RefreshRequest{
		RefreshToken: refreshToken,
	}, "")
	if err != nil {
		return nil, err
	}

	var out TokenPairResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignOut revokes accessToken and, when non-empty, refreshToken.
func (c *SDKClient) SignOut(ctx context.Context, accessToken, refreshToken string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/signout", SignOutRequest{
		RefreshToken: refreshToken,
	}, accessToken)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

func (c *SDKClient) SignUp(ctx context.Context, req SignUpRequest) (*Principal, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/signup", req, "")
	if err != nil {
		return nil, err
	}

	var out Principal
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) Me(ctx context.Context, accessToken string) (*Principal, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/auth/me", nil, accessToken)
	if err != nil {
		return nil, err
	}

	var out Principal
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) CreateQRSession(ctx context.Context) (*QRSessionResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/qr/sessions", nil, "")
	if err != nil {
		return nil, err
	}

	var out QRSessionResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) GetQRSession(ctx context.Context, id string) (*QRSessionResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/auth/qr/sessions/"+url.PathEscape(id), nil, "")
	if err != nil {
		return nil, err
	}

	var out QRSessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmQRSession approves a session shown on another device, as the
// account that owns accessToken.
func (c *SDKClient) ConfirmQRSession(ctx context.Context, accessToken, id string) (*QRSessionResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/qr/sessions/"+url.PathEscape(id)+"/confirm", nil, accessToken)
	if err != nil {
		return nil, err
	}

	var out QRSessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) ClaimQRSession(ctx context.Context, id string) (*SignInResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/qr/sessions/"+url.PathEscape(id)+"/claim", nil, "")
	if err != nil {
		return nil, err
	}

	var out SignInResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/password/forgot", ForgotPasswordRequest{Email: email}, "")
	if err != nil {
		return nil, err
	}

	var out MessageResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) VerifyResetCode(ctx context.Context, email, code string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/password/verify", VerifyCodeRequest{
		Email: email,
		Code:  code,
	}, "")
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

func (c *SDKClient) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/password/reset", req, "")
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// GetLiveness checks if the service is alive.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness checks if the service and its stores are ready.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}
