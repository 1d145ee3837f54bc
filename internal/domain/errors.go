package domain

import "errors"

// Probe-level failures (timeout, transport, status/content mismatch) are
// never surfaced as errors; they land in CheckOutcome.Status and Detail.
// These sentinels classify everything else. Wrap with fmt.Errorf("...: %w").
var (
	ErrPersistence      = errors.New("persistence error")
	ErrNotificationSend = errors.New("notification send error")
	ErrConfig           = errors.New("config error")
)
