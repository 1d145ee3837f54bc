// Package incident holds the state machine that turns a stream of check
// outcomes into incident lifecycle transitions.
package incident

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/repo"
)

type SignalKind string

const (
	SignalNew      SignalKind = "new"
	SignalUpdated  SignalKind = "updated"
	SignalResolved SignalKind = "resolved"
)

// Transition is what the engine hands to the alert dispatcher after
// applying one outcome. Incident reflects state after the transition.
type Transition struct {
	Kind         SignalKind
	Incident     *domain.Incident
	Outcome      *domain.CheckOutcome
	FailureCount int
}

type Engine struct {
	log       *zap.Logger
	incidents repo.IncidentStore
}

func NewEngine(log *zap.Logger, incidents repo.IncidentStore) *Engine {
	return &Engine{log: log, incidents: incidents}
}

// Apply evaluates one outcome against the target's incident state and
// persists the resulting transition. Returns nil, nil when nothing changed
// (healthy steady state, or a replayed outcome). Store errors are returned
// to the caller, which treats them as fatal for this target's cycle step:
// state is re-derived from outcome history, so the next cycle retries.
func (e *Engine) Apply(ctx context.Context, out *domain.CheckOutcome) (*Transition, error) {
	inc, err := e.incidents.OpenIncident(ctx, out.TargetName)
	if err != nil {
		return nil, fmt.Errorf("open incident lookup for %s: %w", out.TargetName, err)
	}

	// Replay guard: the incident already saw this outcome. Catch-up scans
	// after a crash may feed outcomes twice; a replay must not move state
	// or re-trigger alerts.
	if inc != nil && inc.LastOutcomeID == out.ID {
		e.log.Debug("outcome_replayed",
			zap.String("target", out.TargetName),
			zap.String("outcome_id", out.ID),
		)
		return nil, nil
	}

	if out.Status.OK() {
		if inc == nil {
			// healthy steady state
			return nil, nil
		}
		at := out.CheckedAt
		if err := e.incidents.Resolve(ctx, inc.ID, at); err != nil {
			return nil, fmt.Errorf("resolve incident %s: %w", inc.ID, err)
		}
		inc.Status = domain.IncidentResolved
		inc.ResolvedAt = &at
		e.log.Info("incident_resolved",
			zap.String("target", out.TargetName),
			zap.String("incident_id", inc.ID),
			zap.Int("failure_count", inc.FailureCount),
			zap.Duration("duration", inc.Duration(at)),
		)
		return &Transition{
			Kind:         SignalResolved,
			Incident:     inc,
			Outcome:      out,
			FailureCount: inc.FailureCount,
		}, nil
	}

	if inc == nil {
		inc = &domain.Incident{
			ID:            uuid.NewString(),
			TargetName:    out.TargetName,
			Status:        domain.IncidentOpen,
			StartedAt:     out.CheckedAt,
			FailureCount:  1,
			LastOutcomeID: out.ID,
			Alerted:       make(map[domain.Channel]bool),
		}
		if err := e.incidents.Create(ctx, inc); err != nil {
			return nil, fmt.Errorf("create incident for %s: %w", out.TargetName, err)
		}
		e.log.Info("incident_opened",
			zap.String("target", out.TargetName),
			zap.String("incident_id", inc.ID),
			zap.String("status", string(out.Status)),
			zap.String("detail", out.Detail),
		)
		return &Transition{Kind: SignalNew, Incident: inc, Outcome: out, FailureCount: 1}, nil
	}

	inc.FailureCount++
	inc.LastOutcomeID = out.ID
	if err := e.incidents.Update(ctx, inc); err != nil {
		return nil, fmt.Errorf("update incident %s: %w", inc.ID, err)
	}
	e.log.Info("incident_continues",
		zap.String("target", out.TargetName),
		zap.String("incident_id", inc.ID),
		zap.Int("failure_count", inc.FailureCount),
	)
	return &Transition{
		Kind:         SignalUpdated,
		Incident:     inc,
		Outcome:      out,
		FailureCount: inc.FailureCount,
	}, nil
}
