package notify

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// MailConfig configures the SMTP sender.
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// MailSender sends notifications over SMTP.
type MailSender struct {
	addr string
	from string
	auth smtp.Auth
	now  func() time.Time
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailSender creates an SMTP sender. PLAIN auth is used when a username
// is configured.
func NewMailSender(cfg MailConfig) (*MailSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mail sender address is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	s := &MailSender{
		addr: net.JoinHostPort(cfg.Host, fmt.Sprint(port)),
		from: cfg.From,
		now:  time.Now,
		send: smtp.SendMail,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s, nil
}

// Send mails msg to the user's address.
func (s *MailSender) Send(ctx context.Context, to User, msg Message) error {
	if to.Email == "" {
		return errors.New("user has no email address")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.send(s.addr, s.auth, s.from, []string{to.Email}, s.compose(to.Email, msg))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// compose builds an RFC 5322 plain text message.
func (s *MailSender) compose(to string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
