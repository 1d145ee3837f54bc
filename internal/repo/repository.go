package repo

import (
	"context"
	"time"

	"github.com/hamed0406/watchdog/internal/domain"
)

// Ports (interfaces) — swap in any DB adapter later. Implementations must
// serialize writes per target key; the core relies on that instead of a
// global lock for the one-open-incident-per-target invariant.

type TargetStore interface {
	// Upsert inserts or replaces the config snapshot for a target, keyed
	// by name.
	Upsert(ctx context.Context, t *domain.Target) error
	List(ctx context.Context) ([]domain.Target, error)
	GetByName(ctx context.Context, name string) (*domain.Target, error)
}

// Stats summarizes a target's recent outcomes over a window.
type Stats struct {
	Total        int     `json:"total"`
	Successes    int     `json:"successes"`
	UptimePct    float64 `json:"uptime_pct"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

type OutcomeStore interface {
	Append(ctx context.Context, out *domain.CheckOutcome) error
	LastByTarget(ctx context.Context, name string) (*domain.CheckOutcome, error)
	// Recent returns the newest outcomes across all targets, newest first.
	Recent(ctx context.Context, limit int) ([]domain.CheckOutcome, error)
	RecentStats(ctx context.Context, name string, window time.Duration) (Stats, error)
}

type IncidentStore interface {
	// OpenIncident returns nil, nil when the target has no open incident.
	OpenIncident(ctx context.Context, targetName string) (*domain.Incident, error)
	Create(ctx context.Context, inc *domain.Incident) error
	// Update persists failure count, status and last outcome reference.
	Update(ctx context.Context, inc *domain.Incident) error
	Resolve(ctx context.Context, id string, at time.Time) error
	SetAlerted(ctx context.Context, id string, ch domain.Channel) error
	Acknowledge(ctx context.Context, id string) error
	ListOpen(ctx context.Context) ([]domain.Incident, error)
}
