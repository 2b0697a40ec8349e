package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"os"
	"strconv"
	"strings"
)

// emailSender delivers an HTML reminder over SMTP with STARTTLS. Sender
// identity and password are read from the environment on every send. The
// destination address is validated before any dial, so a malformed address
// fails fast without touching the network.
type emailSender struct {
	cfg EmailConfig
}

func (e *emailSender) send(ctx context.Context, p Payload) error {
	if _, err := mail.ParseAddress(p.Destination); err != nil {
		return fmt.Errorf("%w: %v", ErrBadAddress, err)
	}

	from := os.Getenv(EnvEmailName)
	password := os.Getenv(EnvEmailPassword)
	if from == "" || password == "" {
		return fmt.Errorf("%w: %s/%s not set", ErrMissingCredentials, EnvEmailName, EnvEmailPassword)
	}
	if !strings.Contains(from, "@") {
		// The account name doubles as the From header.
		from += "@gmail.com"
	}

	msg := buildMIME(from, p.Destination, p.Subject, p.Message)
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	auth := smtp.PlainAuth("", from, password, e.cfg.Host)
	return e.transmit(ctx, addr, auth, from, p.Destination, msg)
}

// transmit drives the SMTP conversation over a context-aware dial so a hung
// server cannot outlive the send timeout.
func (e *emailSender) transmit(ctx context.Context, addr string, auth smtp.Auth, from, to string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: e.cfg.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return c.Quit()
}

func buildMIME(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	return []byte(b.String())
}
