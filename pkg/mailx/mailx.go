// Package mailx delivers password reset codes by SMTP, or to the log in
// development.
package mailx

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"text/template"
	"time"
)

var resetTemplate = template.Must(template.New("reset").Parse(
	"From: {{.From}}\r\n" +
		"To: {{.To}}\r\n" +
		"Subject: Your Townhall password reset code\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		"Your password reset code is {{.Code}}.\r\n" +
		"\r\n" +
		"It expires at {{.ExpiresAt}}. If you did not ask to reset your password you can ignore this message.\r\n",
))

type message struct {
	From      string
	To        string
	Code      string
	ExpiresAt string
}

func render(from, to, code string, expiresAt time.Time) ([]byte, error) {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(from, "\r\n") {
		return nil, fmt.Errorf("mailx: header injection in address")
	}
	var buf bytes.Buffer
	err := resetTemplate.Execute(&buf, message{
		From:      from,
		To:        to,
		Code:      code,
		ExpiresAt: expiresAt.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SMTPMailer sends through a submission server. Username may be empty for
// relays that do not authenticate.
type SMTPMailer struct {
	Addr     string // host:port
	Username string
	Password string
	From     string

	// send is smtp.SendMail, replaced in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(addr, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		Addr:     addr,
		Username: username,
		Password: password,
		From:     from,
		send:     smtp.SendMail,
	}
}

func (m *SMTPMailer) SendResetCode(ctx context.Context, to, code string, expiresAt time.Time) error {
	msg, err := render(m.From, to, code, expiresAt)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.Username != "" {
		host, _, err := net.SplitHostPort(m.Addr)
		if err != nil {
			return fmt.Errorf("mailx: smtp addr: %w", err)
		}
		auth = smtp.PlainAuth("", m.Username, m.Password, host)
	}

	// smtp.SendMail takes no context; run it aside so cancellation is honoured.
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.send(m.Addr, auth, m.From, []string{to}, msg)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("mailx: send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogMailer writes codes to the logger instead of sending them. Only for
// local development.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendResetCode(ctx context.Context, to, code string, expiresAt time.Time) error {
	m.Logger.WarnContext(ctx, "password reset code (log mailer, not delivered)",
		slog.String("to", to),
		slog.String("code", code),
		slog.Time("expires_at", expiresAt),
	)
	return nil
}
