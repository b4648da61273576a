package publisher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"

	"auto_newsletter_digest/models"
)

// Transport opens one delivery session for a batch of messages.
type Transport interface {
	Dial(ctx context.Context) (Session, error)
}

// Session sends pre-built RFC 5322 messages until closed.
type Session interface {
	Send(from, to string, msg []byte) error
	Close() error
}

// Message is one newsletter edition, sent identically to every recipient.
type Message struct {
	Subject string
	Text    string
	HTML    string
	Date    time.Time
}

// Report lists the recipients that accepted the message, in send order.
type Report struct {
	Delivered []string `json:"delivered"`
}

type MailerConfig struct {
	From       string
	FromName   string
	Recipients []string
}

type Mailer struct {
	cfg       MailerConfig
	transport Transport
	logger    arbor.ILogger
}

func NewMailer(cfg MailerConfig, transport Transport, logger arbor.ILogger) (*Mailer, error) {
	if cfg.From == "" {
		return nil, &models.ConfigurationError{Field: "mail.from", Reason: "sender address not set; set EMAIL_ADDRESS or mail.from"}
	}
	if len(cfg.Recipients) == 0 {
		return nil, &models.ConfigurationError{Field: "mail.recipients", Reason: "no recipient emails configured"}
	}
	if transport == nil {
		return nil, &models.ConfigurationError{Field: "mail", Reason: "no transport"}
	}
	return &Mailer{cfg: cfg, transport: transport, logger: logger}, nil
}

func (m *Mailer) Recipients() []string { return append([]string(nil), m.cfg.Recipients...) }

// Send delivers msg to each recipient in its own envelope over one session.
// The first failure stops the batch; the report still lists who already got it.
func (m *Mailer) Send(ctx context.Context, msg Message) (Report, error) {
	var report Report

	m.logger.Info().Int("recipients", len(m.cfg.Recipients)).Str("subject", msg.Subject).Msg("Sending newsletter")

	session, err := m.transport.Dial(ctx)
	if err != nil {
		return report, &models.DeliveryError{Err: err}
	}
	defer session.Close()

	for _, rcpt := range m.cfg.Recipients {
		if err := ctx.Err(); err != nil {
			return report, &models.DeliveryError{Recipient: rcpt, Err: err}
		}
		raw, err := m.build(rcpt, msg)
		if err != nil {
			return report, &models.DeliveryError{Recipient: rcpt, Err: err}
		}
		if err := session.Send(m.cfg.From, rcpt, raw); err != nil {
			m.logger.Error().Err(err).Str("recipient", rcpt).Int("delivered", len(report.Delivered)).Msg("Delivery failed")
			return report, &models.DeliveryError{Recipient: rcpt, Err: err}
		}
		report.Delivered = append(report.Delivered, rcpt)
		m.logger.Debug().Str("recipient", rcpt).Msg("Newsletter sent")
	}

	m.logger.Info().Int("delivered", len(report.Delivered)).Msg("All newsletters sent")
	return report, nil
}

// build writes a multipart/alternative message addressed to a single recipient.
func (m *Mailer) build(to string, msg Message) ([]byte, error) {
	var h mail.Header
	h.SetAddressList("From", []*mail.Address{{Name: m.cfg.FromName, Address: m.cfg.From}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(msg.Subject)
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}
	h.SetDate(date)
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if err := writePart(w, "text/plain", msg.Text); err != nil {
		return nil, err
	}
	if err := writePart(w, "text/html", msg.HTML); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePart(w *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := w.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}
