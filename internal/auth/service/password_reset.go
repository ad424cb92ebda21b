package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/internal/auth/store"
	"github.com/civicworks/townhall/pkg/clockx"
	"github.com/civicworks/townhall/pkg/cryptox"
	"github.com/civicworks/townhall/pkg/metricsx"
	"github.com/civicworks/townhall/pkg/slogx"
)

const DefaultResetCodeTTL = 15 * time.Minute

// PasswordResetService runs the email code flow: request, optional verify,
// then reset. Each email has at most one active code; a new request
// replaces the previous one.
type PasswordResetService struct {
	Accounts store.Accounts
	Codes    store.ResetCodes
	Hasher   PasswordHasher
	Mailer   Mailer
	Clock    clockx.Clock
	TTL      time.Duration
	Metrics  *metricsx.Metrics
}

func (s *PasswordResetService) now() time.Time {
	return clockOrReal(s.Clock).Now()
}

func (s *PasswordResetService) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultResetCodeTTL
	}
	return s.TTL
}

// RequestReset sends a fresh code when email belongs to an account. The
// result is nil whether or not it does. Failing to create, store or deliver
// the code is logged and not reported; a failed delivery leaves the stored
// code in place.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	l := slogx.FromContext(ctx)
	email = NormalizeEmail(email)

	acct, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Metrics.PasswordReset("unknown_email")
			l.Debug("password reset requested for unknown email")
			return nil
		}
		return err
	}

	code, err := cryptox.GenerateNumericCode()
	if err != nil {
		s.Metrics.PasswordReset("store_failed")
		l.Error("failed to generate password reset code",
			slog.String("account_id", acct.ID),
			slog.Any("error", err),
		)
		return nil
	}
	rc := domain.ResetCode{
		Email:     email,
		Code:      code,
		ExpiresAt: s.now().Add(s.ttl()),
	}
	if err := s.Codes.PutResetCode(ctx, rc); err != nil {
		s.Metrics.PasswordReset("store_failed")
		l.Error("failed to store password reset code",
			slog.String("account_id", acct.ID),
			slog.Any("error", err),
		)
		return nil
	}
	s.Metrics.PasswordReset("requested")

	if err := s.Mailer.SendResetCode(ctx, email, code, rc.ExpiresAt); err != nil {
		s.Metrics.PasswordReset("mail_failed")
		l.Error("failed to send password reset code",
			slog.String("account_id", acct.ID),
			slog.Any("error", err),
		)
		return nil
	}

	l.Info("password reset code sent", slog.String("account_id", acct.ID))
	return nil
}

// VerifyCode checks code without consuming it.
func (s *PasswordResetService) VerifyCode(ctx context.Context, email, code string) error {
	rc, err := s.Codes.GetResetCode(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Metrics.PasswordReset("rejected")
			return ErrInvalidOrExpiredCode
		}
		return err
	}
	if !cryptox.EqualStrings(rc.Code, code) || !rc.ValidAt(s.now()) {
		s.Metrics.PasswordReset("rejected")
		return ErrInvalidOrExpiredCode
	}

	s.Metrics.PasswordReset("verified")
	return nil
}

// ResetPassword consumes code and sets a new password. The code is checked
// and deleted in one step, so two concurrent resets with the same code
// yield one success.
func (s *PasswordResetService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	l := slogx.FromContext(ctx)
	email = NormalizeEmail(email)

	if err := checkPassword(newPassword); err != nil {
		return err
	}

	if _, err := s.Codes.ConsumeResetCode(ctx, email, code, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrExpired) {
			s.Metrics.PasswordReset("rejected")
			return ErrInvalidOrExpiredCode
		}
		return err
	}

	acct, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.Accounts.UpdatePasswordHash(ctx, acct.ID, hash); err != nil {
		return err
	}

	s.Metrics.PasswordReset("completed")
	l.Info("password reset", slog.String("account_id", acct.ID))
	return nil
}

// Reap drops codes that expired without being used.
func (s *PasswordResetService) Reap(ctx context.Context, now time.Time) (int, error) {
	n, err := s.Codes.DeleteExpiredResetCodes(ctx, now)
	if err != nil {
		return 0, err
	}
	s.Metrics.Reaped("reset_codes", n)
	return n, nil
}
