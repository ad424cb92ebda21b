package store

import (
	"context"
	"errors"
	"time"

	"github.com/civicworks/townhall/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	// ErrConflict means the record has already left the state the caller
	// expected, e.g. a QR session that is no longer pending.
	ErrConflict = errors.New("store: state conflict")
	ErrExpired  = errors.New("store: expired")
	// ErrNotReady means the record exists but has not reached the state the
	// caller needs yet, e.g. a QR session that is still pending.
	ErrNotReady = errors.New("store: not ready")
)

// Store is the relational account store. Drivers (sqlite) expose
// sub-repositories so transactions stay explicit and cannot nest.
type Store interface {
	Accounts() Accounts

	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transaction scoped Store.
type Tx interface {
	Accounts() Accounts
}

type Accounts interface {
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// CreateAccount inserts a new account (id is provided by the caller as a
	// ULID). Returns ErrAlreadyExists if the username or email is taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	// UpdatePasswordHash sets the password hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, id string, hash string) error

	// SetActive enables or disables sign-in for the account.
	SetActive(ctx context.Context, id string, active bool) error

	// IsEmpty returns true if there are no accounts.
	IsEmpty(ctx context.Context) (bool, error)
}

// SessionStore holds the short lived, single use records of the session
// lifecycle. Every operation is linearizable per key; there is no ordering
// across keys. The memory driver keeps them in process, the redis driver
// shares them across nodes.
type SessionStore interface {
	Revocations() Revocations
	QRSessions() QRSessions
	ResetCodes() ResetCodes

	Close() error
	Ping(ctx context.Context) error
}

type Revocations interface {
	// Revoke inserts or overwrites an entry. Revoking twice is the same as once.
	Revoke(ctx context.Context, e domain.RevocationEntry) error

	// IsRevoked reports whether an entry exists for id. It never observes a
	// partially written or partially deleted entry.
	IsRevoked(ctx context.Context, id string) (bool, error)

	// DeleteExpiredRevocations removes every entry with ExpiresAt <= now and
	// returns how many were removed.
	DeleteExpiredRevocations(ctx context.Context, now time.Time) (int, error)
}

type QRSessions interface {
	// CreateQRSession stores a new pending session. Returns ErrAlreadyExists
	// on an ID collision.
	CreateQRSession(ctx context.Context, s domain.QRSession) error

	GetQRSession(ctx context.Context, id string) (domain.QRSession, error)

	// ConfirmQRSession atomically moves a pending session to confirmed and
	// binds userID. Checks run in order: ErrNotFound if absent, ErrConflict if
	// not pending, ErrExpired if now is past the deadline (the session is
	// deleted). Of two concurrent confirmations exactly one succeeds.
	ConfirmQRSession(ctx context.Context, id, userID string, now time.Time) (domain.QRSession, error)

	// ClaimQRSession atomically removes a confirmed session and returns it.
	// Checks run in order: ErrNotFound if absent, ErrExpired if now is past
	// the deadline (the session is deleted), ErrNotReady if still pending.
	ClaimQRSession(ctx context.Context, id string, now time.Time) (domain.QRSession, error)

	// DeleteExpiredQRSessions removes every session with now > ExpiresAt,
	// regardless of state, and returns how many were removed.
	DeleteExpiredQRSessions(ctx context.Context, now time.Time) (int, error)
}

type ResetCodes interface {
	// PutResetCode stores rc, replacing any earlier code for the same email.
	PutResetCode(ctx context.Context, rc domain.ResetCode) error

	GetResetCode(ctx context.Context, email string) (domain.ResetCode, error)

	// ConsumeResetCode atomically deletes the record for email if its code
	// equals code. ErrNotFound if there is no record or the code differs (the
	// record is kept), ErrExpired if it is past its deadline (it is deleted).
	ConsumeResetCode(ctx context.Context, email, code string, now time.Time) (domain.ResetCode, error)

	// DeleteExpiredResetCodes removes every record with now > ExpiresAt.
	DeleteExpiredResetCodes(ctx context.Context, now time.Time) (int, error)
}
