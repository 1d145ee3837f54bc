package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hamed0406/watchdog/internal/domain"
)

// Slack posts to a Slack-compatible incoming webhook. This is the "chat"
// channel, the default first-alert transport.
type Slack struct {
	Webhook string
	Channel string // optional channel override, e.g. "#alerts"
	Client  *http.Client
}

func NewSlack(webhook, channel string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Channel: channel,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackPayload struct {
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
}

func (s *Slack) Send(ctx context.Context, title, text string) error {
	if s == nil || s.Webhook == "" {
		return fmt.Errorf("%w: slack disabled", domain.ErrNotificationSend)
	}
	body, _ := json.Marshal(slackPayload{
		Text:    "*" + title + "*\n" + text,
		Channel: s.Channel,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotificationSend, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: slack returned %s", domain.ErrNotificationSend, resp.Status)
	}
	return nil
}

var _ Notifier = (*Slack)(nil)
