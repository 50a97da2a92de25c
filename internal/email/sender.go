package email

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// Message is one outgoing HTML mail.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Sender delivers a Message, either directly or through a queue.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

type SMTPConfig struct {
	Host       string
	Port       int
	User       string
	Pass       string
	From       string
	SenderName string
}

// SMTPSender delivers mail over SMTP. Port 465 uses implicit TLS, anything else
// STARTTLS when the server offers it.
type SMTPSender struct {
	cfg     SMTPConfig
	timeout time.Duration
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, timeout: 15 * time.Second}
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if s.cfg.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}
	msg, err := s.message(m)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.timeout),
	}
	if s.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if s.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.User),
			mail.WithPassword(s.cfg.Pass),
		)
	}

	c, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", m.To, err)
	}
	return nil
}

func (s *SMTPSender) message(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if s.cfg.SenderName != "" {
		if err := msg.FromFormat(s.cfg.SenderName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("mail from: %w", err)
		}
	} else if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("mail to %s: %w", m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextHTML, m.HTML)
	return msg, nil
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, m Message) error

func (f SenderFunc) Send(ctx context.Context, m Message) error { return f(ctx, m) }
