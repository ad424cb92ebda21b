package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/internal/auth/store/drivers/memory"
	"github.com/civicworks/townhall/internal/auth/store/drivers/sqlite"
	"github.com/civicworks/townhall/pkg/clockx"
	"github.com/civicworks/townhall/pkg/cryptox"
	"github.com/civicworks/townhall/pkg/idx"
	"github.com/civicworks/townhall/pkg/jwtx"
	"github.com/civicworks/townhall/pkg/metricsx"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	clock    *clockx.FakeClock
	accounts *sqlite.Store
	sessions *memory.Store
	codec    *jwtx.Codec
	hasher   cryptox.Argon2Hasher
	metrics  *metricsx.Metrics
	mailer   *recordingMailer

	revocations *RevocationRegistry
	tokens      *TokenService
	auth        *AuthService
	qr          *QRLoginService
	reset       *PasswordResetService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	accounts, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = accounts.Close() })
	require.NoError(t, accounts.ApplyMigrations())

	codec, err := jwtx.NewCodec(jwtx.CodecConfig{
		Secret:     []byte(testSecret),
		Issuer:     "townhall-auth",
		Audience:   "townhall-api",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	e := &testEnv{
		clock:    clockx.Fake(epoch),
		accounts: accounts,
		sessions: memory.NewStore(4),
		codec:    codec,
		hasher:   cryptox.Argon2Hasher{Pepper: "test-pepper"},
		metrics:  metricsx.New(),
		mailer:   &recordingMailer{},
	}

	e.revocations = &RevocationRegistry{Store: e.sessions.Revocations(), Metrics: e.metrics}
	e.tokens = &TokenService{Codec: codec, Revocations: e.revocations, Clock: e.clock, Metrics: e.metrics}
	e.auth = &AuthService{Store: accounts, Hasher: e.hasher, Tokens: e.tokens, Clock: e.clock, Metrics: e.metrics}
	e.qr = &QRLoginService{
		Store:    e.sessions.QRSessions(),
		Accounts: accounts.Accounts(),
		Tokens:   e.tokens,
		Clock:    e.clock,
		TTL:      5 * time.Minute,
		Metrics:  e.metrics,
	}
	e.reset = &PasswordResetService{
		Accounts: accounts.Accounts(),
		Codes:    e.sessions.ResetCodes(),
		Hasher:   e.hasher,
		Mailer:   e.mailer,
		Clock:    e.clock,
		TTL:      15 * time.Minute,
		Metrics:  e.metrics,
	}
	return e
}

// createAccount stores an account with the given password directly.
func (e *testEnv) createAccount(t *testing.T, username, email, password string, active bool) domain.Account {
	t.Helper()

	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)

	a := domain.Account{
		ID:           idx.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{domain.RoleCitizen},
		Active:       active,
		CreatedAt:    epoch,
		UpdatedAt:    epoch,
	}
	require.NoError(t, e.accounts.Accounts().CreateAccount(context.Background(), a))
	return a
}

type sentCode struct {
	To   string
	Code string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (m *recordingMailer) SendResetCode(_ context.Context, to, code string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentCode{To: to, Code: code})
	return nil
}

func (m *recordingMailer) last(t *testing.T) sentCode {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
