package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/civicworks/townhall/pkg/clockx"
)

// MinPasswordLength applies to registration and password reset.
const MinPasswordLength = 8

// PasswordHasher encodes and checks credentials. cryptox.Argon2Hasher is the
// production implementation.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify returns nil when password matches encoded.
	Verify(password, encoded string) error
}

// Mailer delivers password reset codes. Delivery failures are reported to
// the caller but never undo the stored code.
type Mailer interface {
	SendResetCode(ctx context.Context, to, code string, expiresAt time.Time) error
}

func clockOrReal(c clockx.Clock) clockx.Clock {
	if c == nil {
		return clockx.Real()
	}
	return c
}

// NormalizeEmail is the canonical key for email lookups and reset codes.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func checkPassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
