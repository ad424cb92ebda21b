package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/internal/auth/store"
	"github.com/civicworks/townhall/pkg/clockx"
	"github.com/civicworks/townhall/pkg/idx"
	"github.com/civicworks/townhall/pkg/metricsx"
	"github.com/civicworks/townhall/pkg/slogx"
)

// AuthService handles password sign-in, sign-out and registration.
type AuthService struct {
	Store   store.Store
	Hasher  PasswordHasher
	Tokens  *TokenService
	Clock   clockx.Clock
	Metrics *metricsx.Metrics

	dummyOnce sync.Once
	dummyHash string
}

// SignIn checks username and password and issues a token pair. Unknown
// usernames and wrong passwords both yield ErrInvalidCredentials and cost
// one hash verification. ErrAccountInactive is only returned once the
// password has been proven.
func (s *AuthService) SignIn(ctx context.Context, username, password string) (domain.Principal, domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	username = strings.TrimSpace(username)

	acct, err := s.Store.Accounts().GetAccountByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, domain.TokenPair{}, err
		}
		s.burnHash(password)
		l.Info("sign-in failed", slog.String("reason", "unknown username"))
		s.Metrics.SignIn("invalid")
		return domain.Principal{}, domain.TokenPair{}, ErrInvalidCredentials
	}

	if err := s.Hasher.Verify(password, acct.PasswordHash); err != nil {
		l.Info("sign-in failed", slog.String("reason", "password"), slog.String("account_id", acct.ID), slog.Any("error", err))
		s.Metrics.SignIn("invalid")
		return domain.Principal{}, domain.TokenPair{}, ErrInvalidCredentials
	}

	if !acct.Active {
		l.Info("sign-in refused for inactive account", slog.String("account_id", acct.ID))
		s.Metrics.SignIn("inactive")
		return domain.Principal{}, domain.TokenPair{}, ErrAccountInactive
	}

	pair, err := s.Tokens.IssuePair(ctx, acct.ID)
	if err != nil {
		return domain.Principal{}, domain.TokenPair{}, err
	}

	s.Metrics.SignIn("success")
	l.Info("signed in", slog.String("account_id", acct.ID))
	return acct.Principal(), pair, nil
}

// burnHash spends the same work as a real verification.
func (s *AuthService) burnHash(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.Hasher.Hash(idx.New().String())
	})
	if s.dummyHash != "" {
		_ = s.Hasher.Verify(password, s.dummyHash)
	}
}

func (s *AuthService) SignOut(ctx context.Context, accessToken, refreshToken string) error {
	return s.Tokens.RevokePair(ctx, accessToken, refreshToken)
}

// Refresh is TokenService.Refresh; the account is not re-checked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	return s.Tokens.Refresh(ctx, refreshToken)
}

type Registration struct {
	Username string
	Email    string
	Password string
}

// Register creates an active citizen account.
func (s *AuthService) Register(ctx context.Context, req Registration) (domain.Principal, error) {
	l := slogx.FromContext(ctx)

	username := strings.TrimSpace(req.Username)
	email := NormalizeEmail(req.Email)
	if username == "" || len(username) > 64 || strings.ContainsAny(username, " \t\r\n@") {
		return domain.Principal{}, ErrInvalidRequest
	}
	if !validEmail(email) {
		return domain.Principal{}, ErrInvalidRequest
	}
	if err := checkPassword(req.Password); err != nil {
		return domain.Principal{}, err
	}

	hash, err := s.Hasher.Hash(req.Password)
	if err != nil {
		return domain.Principal{}, err
	}

	now := clockOrReal(s.Clock).Now().UTC()
	acct := domain.Account{
		ID:           idx.NewAt(now).String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{domain.RoleCitizen},
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		taken, err := tx.Accounts().ExistsByUsername(ctx, username)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}
		taken, err = tx.Accounts().ExistsByEmail(ctx, email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
		if err := tx.Accounts().CreateAccount(ctx, acct); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrUsernameTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Principal{}, err
	}

	l.Info("account registered", slog.String("account_id", acct.ID))
	return acct.Principal(), nil
}

// Principal returns the public identity of an active account.
func (s *AuthService) Principal(ctx context.Context, accountID string) (domain.Principal, error) {
	acct, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, ErrAccountNotFound
		}
		return domain.Principal{}, err
	}
	if !acct.Active {
		return domain.Principal{}, ErrAccountInactive
	}
	return acct.Principal(), nil
}
