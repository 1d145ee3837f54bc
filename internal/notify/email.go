package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/hamed0406/watchdog/internal/domain"
)

// Email sends via SMTP with PLAIN auth; net/smtp upgrades to STARTTLS when
// the server advertises it.
type Email struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string

	// sendMail is swapped in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmail(host string, port int, username, password, from string, recipients []string) *Email {
	if host == "" || username == "" {
		return nil
	}
	if port == 0 {
		port = 587
	}
	if from == "" {
		from = username
	}
	return &Email{
		Host:       host,
		Port:       port,
		Username:   username,
		Password:   password,
		From:       from,
		Recipients: recipients,
		sendMail:   smtp.SendMail,
	}
}

func (e *Email) Send(ctx context.Context, title, text string) error {
	if e == nil || e.Host == "" {
		return fmt.Errorf("%w: smtp disabled", domain.ErrNotificationSend)
	}
	if len(e.Recipients) == 0 {
		return fmt.Errorf("%w: no email recipients configured", domain.ErrNotificationSend)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", title)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(text)

	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	auth := smtp.PlainAuth("", e.Username, e.Password, e.Host)
	if err := e.sendMail(addr, auth, e.From, e.Recipients, []byte(b.String())); err != nil {
		return fmt.Errorf("%w: smtp: %v", domain.ErrNotificationSend, err)
	}
	return nil
}

var _ Notifier = (*Email)(nil)
