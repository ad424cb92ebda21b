package authsdk

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// refreshBuffer renews the access token this long before it expires.
const refreshBuffer = 30 * time.Second

// Session holds a token pair and refreshes the access token when it is
// about to expire. It is safe for concurrent use.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newSession(client *SDKClient, pair TokenPairResponse) *Session {
	s := &Session{client: client}
	s.store(pair)
	return s
}

// NewSessionFromTokens resumes a session from stored tokens.
func (c *SDKClient) NewSessionFromTokens(pair TokenPairResponse) *Session {
	return newSession(c, pair)
}

func (s *Session) store(pair TokenPairResponse) {
	s.accessToken = pair.AccessToken
	s.refreshToken = pair.RefreshToken

	expiresAt := pair.AccessExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Duration(pair.ExpiresIn) * time.Second)
	}
	s.expiresAt = expiresAt.Add(-refreshBuffer)
}

// getValidToken returns a valid access token, refreshing it if needed.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if s.refreshToken == "" {
		return "", fmt.Errorf("access token expired and no refresh token available")
	}

	pair, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	s.store(*pair)
	return s.accessToken, nil
}

// AccessToken returns the current access token without checking expiry.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

func (s *Session) Me(ctx context.Context) (*Principal, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.Me(ctx, token)
}

func (s *Session) ConfirmQRSession(ctx context.Context, id string) (*QRSessionResponse, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.ConfirmQRSession(ctx, token, id)
}

// SignOut revokes both tokens of the session.
func (s *Session) SignOut(ctx context.Context) error {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return err
	}
	return s.client.SignOut(ctx, token, s.RefreshToken())
}
