// Package alert turns incident transitions into channel notifications,
// gated by per-channel escalation thresholds and alerted flags.
package alert

import (
	"context"

	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/incident"
	"github.com/hamed0406/watchdog/internal/notify"
	"github.com/hamed0406/watchdog/internal/repo"
)

// SendRecord reports one attempted send for the cycle report.
type SendRecord struct {
	Channel  domain.Channel
	Recovery bool
	Err      error
}

type Dispatcher struct {
	log       *zap.Logger
	incidents repo.IncidentStore
	notifiers notify.Registry
}

func NewDispatcher(log *zap.Logger, incidents repo.IncidentStore, notifiers notify.Registry) *Dispatcher {
	return &Dispatcher{log: log, incidents: incidents, notifiers: notifiers}
}

// Dispatch evaluates one transition against the target's channel config and
// sends whatever is due. The alerted flag for a channel is persisted only
// after a successful send; a failed send leaves it unset so the next cycle's
// updated signal retries that channel. That flag-gating is the whole retry
// mechanism: there is no queue.
func (d *Dispatcher) Dispatch(ctx context.Context, t domain.Target, tr *incident.Transition) []SendRecord {
	if tr == nil || len(t.Channels) == 0 {
		return nil
	}

	if tr.Kind == incident.SignalResolved {
		return d.sendRecovery(ctx, t, tr)
	}

	var sent []SendRecord
	for _, cc := range t.Channels {
		threshold := cc.EscalateAfter
		if threshold <= 0 {
			threshold = 1
		}
		if threshold > tr.FailureCount || tr.Incident.Alerted[cc.Channel] {
			continue
		}

		n := d.notifiers.Get(cc.Channel)
		if n == nil {
			// channel configured on the target but transport disabled;
			// nothing to retry until config changes
			d.log.Warn("alert_channel_unconfigured",
				zap.String("target", t.Name),
				zap.String("channel", string(cc.Channel)),
			)
			continue
		}

		title, text := failureMessage(t, tr)
		if err := n.Send(ctx, title, text); err != nil {
			d.log.Warn("alert_send_failed",
				zap.String("target", t.Name),
				zap.String("channel", string(cc.Channel)),
				zap.Int("failure_count", tr.FailureCount),
				zap.Error(err),
			)
			sent = append(sent, SendRecord{Channel: cc.Channel, Err: err})
			continue
		}

		if err := d.incidents.SetAlerted(ctx, tr.Incident.ID, cc.Channel); err != nil {
			// sent but not recorded: the next cycle may send again, which
			// is the lesser evil compared to losing the alert entirely
			d.log.Error("alerted_flag_persist_failed",
				zap.String("incident_id", tr.Incident.ID),
				zap.String("channel", string(cc.Channel)),
				zap.Error(err),
			)
			sent = append(sent, SendRecord{Channel: cc.Channel, Err: err})
			continue
		}
		tr.Incident.Alerted[cc.Channel] = true

		d.log.Info("alert_sent",
			zap.String("target", t.Name),
			zap.String("channel", string(cc.Channel)),
			zap.Int("failure_count", tr.FailureCount),
		)
		sent = append(sent, SendRecord{Channel: cc.Channel})
	}
	return sent
}

// sendRecovery notifies the first-alert channel once, unconditionally,
// regardless of which escalation channels fired during the incident.
func (d *Dispatcher) sendRecovery(ctx context.Context, t domain.Target, tr *incident.Transition) []SendRecord {
	ch := t.FirstAlertChannel()
	n := d.notifiers.Get(ch)
	if n == nil {
		d.log.Warn("recovery_channel_unconfigured",
			zap.String("target", t.Name),
			zap.String("channel", string(ch)),
		)
		return nil
	}

	title, text := recoveryMessage(t, tr)
	if err := n.Send(ctx, title, text); err != nil {
		// the incident is resolved either way; recovery is best-effort
		d.log.Warn("recovery_send_failed",
			zap.String("target", t.Name),
			zap.String("channel", string(ch)),
			zap.Error(err),
		)
		return []SendRecord{{Channel: ch, Recovery: true, Err: err}}
	}
	d.log.Info("recovery_sent",
		zap.String("target", t.Name),
		zap.String("channel", string(ch)),
	)
	return []SendRecord{{Channel: ch, Recovery: true}}
}
