// Package mailer sends the account mails: address verification and password reset.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/phuslu/log"
)

// Config of the SMTP relay. An empty Host disables sending: mails are logged instead.
type Config struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port" validate:"omitempty,min=1,max=65535"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from" validate:"omitempty,email"`
	FromName string `toml:"from_name"`
}

// Message is a plain text mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// New returns the sender configured by cfg.
func New(cfg Config) Sender {
	if cfg.Host == "" {
		log.Warn().Msg("no SMTP host configured, mails are only logged")
		return LogSender{}
	}
	return &SMTPSender{cfg: cfg}
}

// Compose writes m as an RFC 5322 message.
func Compose(w io.Writer, from *mail.Address, m Message, date time.Time) error {
	to, err := mail.ParseAddress(m.To)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", m.To, err)
	}
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(m.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return fmt.Errorf("cannot generate message id: %w", err)
	}

	body, err := mail.CreateSingleInlineWriter(w, h)
	if err != nil {
		return fmt.Errorf("cannot write mail header: %w", err)
	}
	if _, err := io.WriteString(body, m.Body); err != nil {
		return fmt.Errorf("cannot write mail body: %w", err)
	}
	return body.Close()
}

// SMTPSender sends mails through an SMTP relay using STARTTLS when offered.
type SMTPSender struct {
	cfg Config
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	from := &mail.Address{Name: s.cfg.FromName, Address: s.cfg.From}
	var buf bytes.Buffer
	if err := Compose(&buf, from, m, time.Now()); err != nil {
		return err
	}

	port := s.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	done := make(chan error, 1)
	go func() { done <- smtp.SendMail(addr, auth, s.cfg.From, []string{m.To}, buf.Bytes()) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("cannot send mail to %q: %w", m.To, err)
		}
	}
	log.Info().Str("to", m.To).Str("subject", m.Subject).Msg("mail sent")
	return nil
}

// LogSender only logs the messages, for development setups.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, m Message) error {
	log.Info().Str("to", m.To).Str("subject", m.Subject).Str("body", m.Body).Msg("mail not sent")
	return nil
}
