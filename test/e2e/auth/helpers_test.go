package auth_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/civicworks/townhall/pkg/authsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helper functions for auth service end-to-end tests.
 * This includes container setup, account helpers, and assertions.
 */

const (
	testImageName = "townhall-auth-test:latest"

	adminUsername = "admin"
	adminEmail    = "admin@townhall.test"
	adminPassword = "Admin123!"

	testSecret = "e2e-secret-0123456789abcdef0123456789"
)

// TestMain manages the test lifecycle, builds the Docker image once before
// all tests and cleans it up after all tests complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building Auth Service Docker image...")

	// Build the Docker image once before all tests
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	// Run all tests
	exitCode := m.Run()

	// Clean up the Docker image after all tests complete
	fmt.Fprintf(os.Stdout, "Cleaning up Auth Service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

// buildDockerImage builds the test Docker image if it doesn't exist.
func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/auth/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

// cleanupDockerImage removes the test Docker image.
func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // Ignore errors - image might not exist
}

// authContainer is a running auth service.
type authContainer struct {
	BaseURL   string
	container testcontainers.Container
}

func baseEnv() map[string]string {
	return map[string]string{
		"AUTH_SECRET":              testSecret,
		"AUTH_DATABASE_FILE":       "/data/auth.db",
		"AUTH_PEPPER_FILE":         "/data/pepper",
		"AUTH_ISSUER":              "townhall-auth",
		"AUTH_AUDIENCE":            "townhall-api",
		"BOOTSTRAP_ADMIN_USERNAME": adminUsername,
		"BOOTSTRAP_ADMIN_EMAIL":    adminEmail,
		"BOOTSTRAP_ADMIN_PASSWORD": adminPassword,
		"ENV":                      "test",
		"LOG_LEVEL":                "info",
		"LOG_FORMAT":               "json",
	}
}

// startAuthContainer starts the auth service with env and waits for /livez.
func startAuthContainer(t *testing.T, env map[string]string) *authContainer {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	// Get the mapped port
	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return &authContainer{
		BaseURL:   fmt.Sprintf("http://%s:%s", host, mappedPort.Port()),
		container: container,
	}
}

// setupAuthContainer starts the auth service with relaxed rate limits.
// Tests often make many rapid requests which would otherwise hit the
// strict production limits.
func setupAuthContainer(t *testing.T) *authContainer {
	t.Helper()

	env := baseEnv()
	env["RATELIMIT_STRICT_REQUESTS"] = "1000"
	env["RATELIMIT_STRICT_WINDOW_SEC"] = "60"
	env["RATELIMIT_STRICT_BURST"] = "1000"
	env["RATELIMIT_MODERATE_REQUESTS"] = "1000"
	env["RATELIMIT_MODERATE_BURST"] = "1000"
	return startAuthContainer(t, env)
}

// setupAuthContainerWithDefaultRateLimits starts the auth service with the
// production rate limits, for the tests that check them.
func setupAuthContainerWithDefaultRateLimits(t *testing.T) *authContainer {
	t.Helper()
	return startAuthContainer(t, baseEnv())
}

// lastResetCode scrapes the most recent reset code for email from the
// container log. Without SMTP_ADDR the service logs codes instead of
// mailing them.
func (c *authContainer) lastResetCode(t *testing.T, email string) string {
	t.Helper()

	var code string
	require.Eventually(t, func() bool {
		logs, err := c.container.Logs(context.Background())
		if err != nil {
			return false
		}
		defer logs.Close()

		scanner := bufio.NewScanner(logs)
		for scanner.Scan() {
			line := scanner.Text()
			if i := strings.IndexByte(line, '{'); i > 0 {
				line = line[i:]
			}
			var entry struct {
				Msg  string `json:"msg"`
				To   string `json:"to"`
				Code string `json:"code"`
			}
			if json.Unmarshal([]byte(line), &entry) != nil {
				continue
			}
			if entry.To == email && entry.Code != "" {
				code = entry.Code
			}
		}
		return code != ""
	}, 5*time.Second, 100*time.Millisecond, "no reset code logged for %s", email)
	return code
}

// signUpCitizen registers a citizen account and returns its principal.
func signUpCitizen(t *testing.T, client *authsdk.SDKClient, username, password string) *authsdk.Principal {
	t.Helper()

	p, err := client.SignUp(t.Context(), authsdk.SignUpRequest{
		Username: username,
		Email:    username + "@townhall.test",
		Password: password,
	})
	require.NoError(t, err, "Sign up should succeed")
	require.NotEmpty(t, p.ID)
	return p
}

// assertTokenPair verifies a token response has all required fields.
func assertTokenPair(t *testing.T, resp authsdk.TokenPairResponse) {
	t.Helper()
	require.NotEmpty(t, resp.AccessToken, "Access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "Refresh token should not be empty")
	require.Equal(t, "Bearer", resp.TokenType, "Token type should be Bearer")
	require.Positive(t, resp.ExpiresIn)
	require.True(t, resp.RefreshExpiresAt.After(resp.AccessExpiresAt))
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
