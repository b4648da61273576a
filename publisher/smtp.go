package publisher

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"auto_newsletter_digest/models"
)

type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	DialTimeout time.Duration
}

// SMTPTransport submits mail over STARTTLS with PLAIN auth, the setup Gmail and
// most submission servers on port 587 expect.
type SMTPTransport struct {
	cfg SMTPConfig
}

func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if cfg.Host == "" {
		return nil, &models.ConfigurationError{Field: "mail.host", Reason: "SMTP host not configured"}
	}
	if cfg.Password == "" {
		return nil, &models.ConfigurationError{Field: "mail.password", Reason: "EMAIL_PASSWORD not set"}
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	return &SMTPTransport{cfg: cfg}, nil
}

func (t *SMTPTransport) Dial(ctx context.Context) (Session, error) {
	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	d := net.Dialer{Timeout: t.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if err := client.StartTLS(&tls.Config{ServerName: t.cfg.Host}); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start TLS: %w", err)
	}
	auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, fmt.Errorf("SMTP authentication failed: %w", err)
	}
	return &smtpSession{client: client}, nil
}

type smtpSession struct {
	client *smtp.Client
}

func (s *smtpSession) Send(from, to string, msg []byte) error {
	if err := s.client.Mail(from); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	if err := s.client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set mail recipient: %w", err)
	}
	w, err := s.client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := bytes.NewReader(msg).WriteTo(w); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return nil
}

func (s *smtpSession) Close() error {
	if err := s.client.Quit(); err != nil {
		return s.client.Close()
	}
	return nil
}
