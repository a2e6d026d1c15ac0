// Package mail renders and sends password-reset messages.
//
// When no SMTP relay is configured the dispatcher degrades to log-only
// delivery: the full message lands in the log at INFO and the caller sees
// success. That keeps the reset flow usable in development, where the token
// is picked out of the log instead of an inbox.
package mail

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Dispatcher sends password-reset mail via SMTP or the log.
type Dispatcher struct {
	host       string
	port       int
	username   string
	password   string
	from       string
	configured bool
	logger     *slog.Logger

	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewDispatcher creates a Dispatcher. configured should come from
// config.SMTPConfigured: non-default username and non-empty password.
func NewDispatcher(host string, port int, username, password, from string, configured bool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		from:       from,
		configured: configured,
		logger:     logger,
		send:       smtp.SendMail,
	}
}

// SendPasswordReset delivers the reset message for the given address.
// Without a configured relay it logs the message and reports success; with
// one, a send failure is logged and returned for the caller to mask.
func (d *Dispatcher) SendPasswordReset(email, resetURL string) error {
	body := resetBody(resetURL)

	if !d.configured {
		d.logger.Info("SMTP not configured, logging password reset email instead",
			slog.String("to", email),
			slog.String("resetUrl", resetURL),
			slog.String("body", body),
		)
		return nil
	}

	msg := strings.Join([]string{
		"From: " + d.from,
		"To: " + email,
		"Subject: Password Reset Request - DriveX",
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", d.host, d.port)
	auth := smtp.PlainAuth("", d.username, d.password, d.host)

	if err := d.send(addr, auth, d.from, []string{email}, []byte(msg)); err != nil {
		d.logger.Error("failed to send password reset email",
			slog.String("to", email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("mail: sending password reset: %w", err)
	}

	d.logger.Info("password reset email sent", slog.String("to", email))
	return nil
}

func resetBody(resetURL string) string {
	return fmt.Sprintf(`Hello,

You have requested to reset your password for your DriveX account.

Click the link below to reset your password:
%s

Security information:
- This link will expire in 1 hour
- You can only use this link once
- If you didn't request this reset, please ignore this email

Best regards,
The DriveX Team
`, resetURL)
}
