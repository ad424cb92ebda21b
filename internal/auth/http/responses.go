package http

import (
	"time"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/pkg/authsdk"
)

func toPrincipal(p domain.Principal) authsdk.Principal {
	roles := p.Roles
	if roles == nil {
		roles = []string{}
	}
	return authsdk.Principal{
		ID:       p.ID,
		Username: p.Username,
		Email:    p.Email,
		Roles:    roles,
	}
}

func toTokenPair(pair domain.TokenPair, accessTTL time.Duration) authsdk.TokenPairResponse {
	return authsdk.TokenPairResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int(accessTTL.Seconds()),
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

func toSignIn(p domain.Principal, pair domain.TokenPair, accessTTL time.Duration) authsdk.SignInResponse {
	return authsdk.SignInResponse{
		TokenPairResponse: toTokenPair(pair, accessTTL),
		Principal:         toPrincipal(p),
	}
}

func toQRSession(s domain.QRSession) authsdk.QRSessionResponse {
	return authsdk.QRSessionResponse{
		SessionID: s.ID,
		State:     string(s.State),
		ExpiresAt: s.ExpiresAt,
	}
}
