package mailx

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSMTPMailer(t *testing.T) {
	t.Parallel()

	expires := time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC)

	t.Run("renders and sends", func(t *testing.T) {
		m := NewSMTPMailer("mail.example.org:587", "townhall", "secret", "noreply@example.org")

		var (
			gotAddr string
			gotTo   []string
			gotMsg  string
			gotAuth smtp.Auth
		)
		m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotTo, gotMsg, gotAuth = addr, to, string(msg), a
			return nil
		}

		require.NoError(t, m.SendResetCode(context.Background(), "alice@example.org", "123456", expires))
		require.Equal(t, "mail.example.org:587", gotAddr)
		require.Equal(t, []string{"alice@example.org"}, gotTo)
		require.NotNil(t, gotAuth)
		require.Contains(t, gotMsg, "To: alice@example.org\r\n")
		require.Contains(t, gotMsg, "Your password reset code is 123456.")
		require.Contains(t, gotMsg, "Sun, 01 Mar 2026 09:15:00 UTC")
	})

	t.Run("no auth without username", func(t *testing.T) {
		m := NewSMTPMailer("localhost:25", "", "", "noreply@example.org")
		m.send = func(_ string, a smtp.Auth, _ string, _ []string, _ []byte) error {
			require.Nil(t, a)
			return nil
		}
		require.NoError(t, m.SendResetCode(context.Background(), "bob@example.org", "654321", expires))
	})

	t.Run("wraps transport errors", func(t *testing.T) {
		boom := errors.New("connection refused")
		m := NewSMTPMailer("localhost:25", "", "", "noreply@example.org")
		m.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

		err := m.SendResetCode(context.Background(), "bob@example.org", "654321", expires)
		require.ErrorIs(t, err, boom)
	})

	t.Run("rejects header injection", func(t *testing.T) {
		m := NewSMTPMailer("localhost:25", "", "", "noreply@example.org")
		m.send = func(string, smtp.Auth, string, []string, []byte) error {
			t.Fatal("must not send")
			return nil
		}
		err := m.SendResetCode(context.Background(), "a@example.org\r\nBcc: x@example.org", "1", expires)
		require.Error(t, err)
	})
}

func TestRenderHasHeaderBlock(t *testing.T) {
	msg, err := render("from@example.org", "to@example.org", "111111", time.Unix(0, 0))
	require.NoError(t, err)

	head, body, ok := strings.Cut(string(msg), "\r\n\r\n")
	require.True(t, ok)
	require.Contains(t, head, "Subject: ")
	require.Contains(t, body, "111111")
}
