package domain

import "time"

// Channel identifies a notification channel. The set is closed: nothing in
// the engine branches on channel names, channels are only looked up in a
// registry, so adding one means adding a constant and a notifier.
type Channel string

const (
	ChannelChat  Channel = "chat"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelChat, ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

// ChannelConfig is one entry of a target's ordered alert channel list.
// EscalateAfter is the consecutive-failure count at which the channel fires;
// the first channel of the list fires on the first failure.
type ChannelConfig struct {
	Channel       Channel `json:"channel"`
	EscalateAfter int     `json:"escalate_after"`
}

// Target is a monitored HTTP endpoint. Targets are immutable snapshots for
// the duration of a check cycle; a config reload builds new values.
type Target struct {
	Name           string          `json:"name"`
	URL            string          `json:"url"`
	Method         string          `json:"method"`
	ExpectedStatus int             `json:"expected_status"`
	Timeout        time.Duration   `json:"timeout"`
	Contains       string          `json:"contains,omitempty"`
	Enabled        bool            `json:"enabled"`
	Channels       []ChannelConfig `json:"channels"`
}

// FirstAlertChannel is the channel notified immediately on a new incident
// and on recovery. Empty when the target has no channels configured.
func (t Target) FirstAlertChannel() Channel {
	if len(t.Channels) == 0 {
		return ""
	}
	return t.Channels[0].Channel
}

type CheckStatus string

const (
	StatusSuccess CheckStatus = "success"
	StatusFailure CheckStatus = "failure" // response received, criteria not met
	StatusTimeout CheckStatus = "timeout" // no response before the deadline
	StatusError   CheckStatus = "error"   // DNS, connection refused, TLS, ...
)

func (s CheckStatus) OK() bool { return s == StatusSuccess }

// CheckOutcome is the result of one probe attempt. Append-only, never
// mutated after creation. HTTPStatus is 0 when no response was received.
type CheckOutcome struct {
	ID         string      `json:"id"`
	TargetName string      `json:"target_name"`
	Status     CheckStatus `json:"status"`
	HTTPStatus int         `json:"http_status,omitempty"`
	LatencyMS  float64     `json:"latency_ms"`
	Detail     string      `json:"detail,omitempty"`
	CheckedAt  time.Time   `json:"checked_at"`
}

type IncidentStatus string

const (
	IncidentOpen         IncidentStatus = "open"
	IncidentAcknowledged IncidentStatus = "acknowledged"
	IncidentResolved     IncidentStatus = "resolved"
)

// Incident is a tracked run of consecutive non-success outcomes for one
// target. At most one unresolved incident exists per target at any time.
// Alerted maps channel -> already notified for this incident; a set flag is
// never re-sent while the incident stays open.
type Incident struct {
	ID            string           `json:"id"`
	TargetName    string           `json:"target_name"`
	Status        IncidentStatus   `json:"status"`
	StartedAt     time.Time        `json:"started_at"`
	ResolvedAt    *time.Time       `json:"resolved_at,omitempty"`
	FailureCount  int              `json:"failure_count"`
	LastOutcomeID string           `json:"last_outcome_id"`
	Alerted       map[Channel]bool `json:"alerted"`
}

// Open reports whether the incident is still active. Acknowledged counts as
// open; it only records that a human has seen it.
func (i *Incident) Open() bool {
	return i.Status == IncidentOpen || i.Status == IncidentAcknowledged
}

// Duration is total downtime, using now for still-open incidents.
func (i *Incident) Duration(now time.Time) time.Duration {
	if i.ResolvedAt != nil {
		return i.ResolvedAt.Sub(i.StartedAt)
	}
	return now.Sub(i.StartedAt)
}
