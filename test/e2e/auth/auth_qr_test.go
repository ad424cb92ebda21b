package auth_test

import (
	"image/png"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/civicworks/townhall/pkg/authsdk"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"
)

// TestQRLogin signs a second device in by scanning a QR code with a signed
// in phone, watching the session over the websocket on the way.
func TestQRLogin(t *testing.T) {
	c := setupAuthContainer(t)
	client := authsdk.NewSDKClient(c.BaseURL)
	ctx := t.Context()

	carol := signUpCitizen(t, client, "carol", "correct horse")
	phone, err := client.AuthenticateWithPassword(ctx, "carol", "correct horse")
	require.NoError(t, err)

	// Desktop: create the session and fetch its image.
	sess, err := client.CreateQRSession(ctx)
	require.NoError(t, err)
	require.Equal(t, authsdk.QRStatePending, sess.State)

	resp, err := http.Get(c.BaseURL + "/v1/auth/qr/sessions/" + sess.SessionID + "/qr.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	require.Equal(t, 256, img.Bounds().Dx())

	// Desktop: watch for the confirmation.
	wsURL := "ws" + strings.TrimPrefix(c.BaseURL, "http") + "/v1/auth/qr/sessions/" + sess.SessionID + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var ev authsdk.QREvent
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	require.Equal(t, authsdk.QRStatePending, ev.State)

	// Desktop cannot claim yet.
	_, err = client.ClaimQRSession(ctx, sess.SessionID)
	require.ErrorIs(t, err, authsdk.ErrSessionNotConfirmed)

	// Phone: confirm.
	_, err = phone.ConfirmQRSession(ctx, sess.SessionID)
	require.NoError(t, err)

	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	require.Equal(t, authsdk.QRStateConfirmed, ev.State)

	// A second confirmation loses.
	_, err = phone.ConfirmQRSession(ctx, sess.SessionID)
	require.ErrorIs(t, err, authsdk.ErrSessionAlreadyUsed)

	// Desktop: claim once.
	out, err := client.ClaimQRSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assertTokenPair(t, out.TokenPairResponse)
	require.Equal(t, carol.ID, out.Principal.ID)

	_, err = client.ClaimQRSession(ctx, sess.SessionID)
	require.ErrorIs(t, err, authsdk.ErrSessionNotFound)

	me, err := client.Me(ctx, out.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "carol", me.Username)
}

// TestQRSessionExpires verifies an unconfirmed session runs out.
func TestQRSessionExpires(t *testing.T) {
	env := baseEnv()
	env["AUTH_QR_SESSION_TTL"] = "2s"
	c := startAuthContainer(t, env)
	client := authsdk.NewSDKClient(c.BaseURL)
	ctx := t.Context()

	phone, err := client.AuthenticateWithPassword(ctx, adminUsername, adminPassword)
	require.NoError(t, err)

	sess, err := client.CreateQRSession(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := client.GetQRSession(ctx, sess.SessionID)
		return err == nil && st.State == authsdk.QRStateExpired
	}, 10*time.Second, 250*time.Millisecond)

	_, err = phone.ConfirmQRSession(ctx, sess.SessionID)
	require.ErrorIs(t, err, authsdk.ErrSessionExpired)
}
