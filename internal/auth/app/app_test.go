package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/townhall/pkg/authsdk"
	"github.com/civicworks/townhall/pkg/slogx"
)

type lastCodeMailer struct {
	mu   sync.Mutex
	code string
}

func (m *lastCodeMailer) SendResetCode(_ context.Context, _ string, code string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.code = code
	return nil
}

func (m *lastCodeMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.DatabaseFile = filepath.Join(dir, "auth.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.BootstrapAdmin = BootstrapAdminConfig{
		Username: "admin",
		Email:    "admin@example.org",
		Password: "bootstrap password",
	}
	return cfg
}

func startApp(t *testing.T, cfg Config) (*authsdk.SDKClient, *lastCodeMailer) {
	t.Helper()

	mailer := &lastCodeMailer{}
	application, err := New(cfg, WithLogger(slogx.Discard()), WithMailer(mailer))
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)
	return authsdk.NewSDKClient(srv.URL), mailer
}

func TestApplication(t *testing.T) {
	drivers := map[string]func(t *testing.T, cfg *Config){
		StoreDriverMemory: func(t *testing.T, cfg *Config) {},
		StoreDriverRedis: func(t *testing.T, cfg *Config) {
			cfg.StoreDriver = StoreDriverRedis
			cfg.RedisAddr = miniredis.RunT(t).Addr()
		},
	}

	for name, setup := range drivers {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			setup(t, &cfg)
			client, mailer := startApp(t, cfg)
			ctx := context.Background()

			ready, err := client.GetReadiness(ctx)
			require.NoError(t, err)
			require.Equal(t, "ok", ready.Status)

			admin, err := client.AuthenticateWithPassword(ctx, "admin", "bootstrap password")
			require.NoError(t, err)

			me, err := admin.Me(ctx)
			require.NoError(t, err)
			require.ElementsMatch(t, []string{"admin", "citizen"}, me.Roles)

			qr, err := client.CreateQRSession(ctx)
			require.NoError(t, err)
			_, err = admin.ConfirmQRSession(ctx, qr.SessionID)
			require.NoError(t, err)
			claimed, err := client.ClaimQRSession(ctx, qr.SessionID)
			require.NoError(t, err)
			require.Equal(t, me.ID, claimed.Principal.ID)

			_, err = client.ForgotPassword(ctx, "admin@example.org")
			require.NoError(t, err)
			code := mailer.last()
			require.Len(t, code, 6)
			require.NoError(t, client.ResetPassword(ctx, authsdk.ResetPasswordRequest{
				Email:       "admin@example.org",
				Code:        code,
				NewPassword: "a new password",
			}))

			require.NoError(t, admin.SignOut(ctx))
			_, err = client.Me(ctx, admin.AccessToken())
			require.ErrorIs(t, err, authsdk.ErrUnauthorized)

			_, err = client.SignIn(ctx, "admin", "a new password")
			require.NoError(t, err)
		})
	}
}

func TestApplicationRestart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Secret = "0123456789abcdef0123456789abcdef"

	first, err := New(cfg, WithLogger(slogx.Discard()))
	require.NoError(t, err)

	srv := httptest.NewServer(first.Handler())
	out, err := authsdk.NewSDKClient(srv.URL).SignIn(context.Background(), "admin", "bootstrap password")
	require.NoError(t, err)
	srv.Close()
	require.NoError(t, first.Close())

	// Same database, pepper and secret: the account and its tokens survive
	// and the admin is not bootstrapped twice.
	client, _ := startApp(t, cfg)
	me, err := client.Me(context.Background(), out.AccessToken)
	require.NoError(t, err)
	require.Equal(t, out.Principal.ID, me.ID)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.RefreshTTL = cfg.AccessTTL

	_, err := New(cfg, WithLogger(slogx.Discard()))
	require.Error(t, err)
}

func TestNewFailsWithoutRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = StoreDriverRedis

	mr := miniredis.RunT(t)
	cfg.RedisAddr = mr.Addr()
	mr.Close()

	_, err := New(cfg, WithLogger(slogx.Discard()))
	require.Error(t, err)
}

func TestHandlerServesSwagger(t *testing.T) {
	client, _ := startApp(t, testConfig(t))

	resp, err := http.Get(client.BaseURL + "/swagger/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
