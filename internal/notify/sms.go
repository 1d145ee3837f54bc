package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hamed0406/watchdog/internal/domain"
)

// smsMaxLen is the classic single-segment SMS limit; bodies are truncated.
const smsMaxLen = 160

// TwilioSMS sends via the Twilio Messages REST endpoint.
type TwilioSMS struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	Recipients []string
	Client     *http.Client

	// BaseURL is overridden in tests.
	BaseURL string
}

func NewTwilioSMS(accountSID, authToken, fromNumber string, recipients []string) *TwilioSMS {
	if accountSID == "" || authToken == "" || fromNumber == "" {
		return nil
	}
	return &TwilioSMS{
		AccountSID: accountSID,
		AuthToken:  authToken,
		FromNumber: fromNumber,
		Recipients: recipients,
		Client:     &http.Client{Timeout: 10 * time.Second},
		BaseURL:    "https://api.twilio.com",
	}
}

func (t *TwilioSMS) Send(ctx context.Context, title, text string) error {
	if t == nil {
		return fmt.Errorf("%w: twilio disabled", domain.ErrNotificationSend)
	}
	if len(t.Recipients) == 0 {
		return fmt.Errorf("%w: no sms recipients configured", domain.ErrNotificationSend)
	}

	body := truncate(title+": "+text, smsMaxLen)
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.BaseURL, t.AccountSID)

	for _, to := range t.Recipients {
		form := url.Values{}
		form.Set("To", to)
		form.Set("From", t.FromNumber)
		form.Set("Body", body)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.SetBasicAuth(t.AccountSID, t.AuthToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := t.Client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: twilio: %v", domain.ErrNotificationSend, err)
		}
		resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("%w: twilio returned %s", domain.ErrNotificationSend, resp.Status)
		}
	}
	return nil
}

// GatewaySMS sends through an email-to-SMS gateway address; no carrier API
// needed, just the SMTP transport.
type GatewaySMS struct {
	Email   *Email
	Gateway string
}

func NewGatewaySMS(email *Email, gateway string) *GatewaySMS {
	if email == nil || gateway == "" {
		return nil
	}
	// same SMTP account, different recipient
	e := *email
	e.Recipients = []string{gateway}
	return &GatewaySMS{Email: &e, Gateway: gateway}
}

func (g *GatewaySMS) Send(ctx context.Context, title, text string) error {
	if g == nil {
		return fmt.Errorf("%w: sms gateway disabled", domain.ErrNotificationSend)
	}
	return g.Email.Send(ctx, title, truncate(text, smsMaxLen))
}

// truncate cuts s to at most n bytes without splitting a rune; message
// titles carry multibyte status markers.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var (
	_ Notifier = (*TwilioSMS)(nil)
	_ Notifier = (*GatewaySMS)(nil)
)
