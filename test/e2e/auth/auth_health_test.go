package auth_test

import (
	"io"
	"net/http"
	"testing"

	"github.com/civicworks/townhall/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestLivezEndpoint verifies the liveness check endpoint.
func TestLivezEndpoint(t *testing.T) {
	c := setupAuthContainer(t)
	client := authsdk.NewSDKClient(c.BaseURL)

	health, err := client.GetLiveness(t.Context())
	assertHealthy(t, health, err)
	require.NotEmpty(t, health.Version)
}

// TestReadyzEndpoint verifies both stores report ready.
func TestReadyzEndpoint(t *testing.T) {
	c := setupAuthContainer(t)
	client := authsdk.NewSDKClient(c.BaseURL)

	health, err := client.GetReadiness(t.Context())
	assertHealthy(t, health, err)
	require.Equal(t, "ok", health.Checks["accounts"])
	require.Equal(t, "ok", health.Checks["sessions"])
}

// TestMetricsEndpoint verifies sign-ins show up in the Prometheus output.
func TestMetricsEndpoint(t *testing.T) {
	c := setupAuthContainer(t)
	client := authsdk.NewSDKClient(c.BaseURL)

	_, err := client.SignIn(t.Context(), adminUsername, adminPassword)
	require.NoError(t, err)

	resp, err := http.Get(c.BaseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `townhall_auth_tokens_issued_total{kind="access"} 1`)
	require.Contains(t, string(body), "townhall_auth_signin_total")
}
