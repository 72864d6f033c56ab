package accounts

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig holds delivery settings for the SMTP mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Secure dials an implicit TLS connection instead of plaintext SMTP.
	Secure bool
}

// Enabled reports whether the config carries enough to attempt delivery.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Port != 0 && c.From != ""
}

// SMTPMailer delivers account emails over SMTP.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer returns a Mailer backed by net/smtp.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

var _ Mailer = (*SMTPMailer)(nil)

func (s *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	if !s.cfg.Enabled() {
		return NewMailDeliveryError(map[string]any{
			"reason": "mailer is not configured",
		})
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", s.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	if s.cfg.Secure {
		if err := s.sendTLS(addr, to, msg.String()); err != nil {
			return NewMailDeliveryError(map[string]any{
				"reason": err.Error(),
			})
		}
		return nil
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return NewMailDeliveryError(map[string]any{
			"reason": err.Error(),
		})
	}

	return nil
}

func (s *SMTPMailer) sendTLS(addr, to, msg string) error {
	tlsCfg := &tls.Config{
		ServerName: s.cfg.Host,
	}
	conn, err := tls.Dial("tcp", addr, tlsCfg)
	if err != nil {
		return err
	}
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	return w.Close()
}

// LogMailer writes messages to the logger instead of delivering them.
// Intended for development and examples.
type LogMailer struct {
	logger Logger
}

// NewLogMailer returns a Mailer that logs message envelopes.
func NewLogMailer(logger Logger) *LogMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogMailer{logger: logger}
}

var _ Mailer = (*LogMailer)(nil)

func (l *LogMailer) Send(_ context.Context, to, subject, body string) error {
	l.logger.Info("mail to=%s subject=%q\n%s", to, subject, body)
	return nil
}
