// Package email delivers workflow emails (evaluation results, edit
// approvals) over SMTP or the Brevo transactional API.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

var ErrNotConfigured = errors.New("email not configured")

// Recipient is a single addressee.
type Recipient struct {
	Email string
	Name  string
}

// Sender is the transport port used by Service.
type Sender interface {
	SendHTML(ctx context.Context, to Recipient, subject, htmlBody string) error
	IsConfigured() bool
}

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// SMTPSender sends mail through an SMTP relay
type SMTPSender struct {
	config Config
	server string
	auth   smtp.Auth
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(config Config) *SMTPSender {
	return &SMTPSender{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   smtp.PlainAuth("", config.Username, config.Password, config.Host),
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *SMTPSender) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *SMTPSender) SendHTML(ctx context.Context, to Recipient, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(to.Email) == "" {
		return errors.New("recipient email required")
	}
	return s.send(s.server, s.auth, s.config.From, []string{to.Email}, s.buildMessage(to, subject, htmlBody))
}

func (s *SMTPSender) buildMessage(to Recipient, subject, htmlBody string) []byte {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	recipient := to.Email
	if to.Name != "" {
		recipient = fmt.Sprintf("%s <%s>", to.Name, to.Email)
	}

	boundary := "boundary-experiences"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	// Plain text part (fallback)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Consulta este mensaje en un cliente de correo compatible con HTML.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return msg.Bytes()
}
