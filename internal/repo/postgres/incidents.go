package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/watchdog/internal/domain"
)

// ---- IncidentStore ----
//
// The partial unique index incidents_one_open makes the DB the enforcer of
// the one-open-incident-per-target invariant; a racing Create loses with a
// constraint error instead of silently double-opening.

func (s *Store) OpenIncident(ctx context.Context, targetName string) (*domain.Incident, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, target_name, status, started_at, resolved_at, failure_count,
		        COALESCE(last_outcome_id::text,''), alerted
		   FROM incidents
		  WHERE target_name = $1 AND status <> 'resolved'`, targetName)
	inc, err := scanIncident(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return inc, nil
}

func (s *Store) Create(ctx context.Context, inc *domain.Incident) error {
	alerted, err := json.Marshal(inc.Alerted)
	if err != nil {
		return fmt.Errorf("marshal alerted: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO incidents (id, target_name, status, started_at, failure_count, last_outcome_id, alerted)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		inc.ID, inc.TargetName, string(inc.Status), inc.StartedAt,
		inc.FailureCount, inc.LastOutcomeID, alerted,
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, inc *domain.Incident) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE incidents
		    SET failure_count = $2, last_outcome_id = $3, status = $4
		  WHERE id = $1`,
		inc.ID, inc.FailureCount, inc.LastOutcomeID, string(inc.Status),
	)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("incident %s not found", inc.ID)
	}
	return nil
}

func (s *Store) Resolve(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE incidents
		    SET status = 'resolved', resolved_at = $2
		  WHERE id = $1 AND status <> 'resolved'`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("resolve incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("incident %s not open", id)
	}
	return nil
}

func (s *Store) SetAlerted(ctx context.Context, id string, ch domain.Channel) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE incidents
		    SET alerted = alerted || jsonb_build_object($2::text, true)
		  WHERE id = $1`,
		id, string(ch),
	)
	if err != nil {
		return fmt.Errorf("set alerted %s: %w", ch, err)
	}
	return nil
}

func (s *Store) Acknowledge(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE incidents SET status = 'acknowledged'
		  WHERE id = $1 AND status = 'open'`, id)
	if err != nil {
		return fmt.Errorf("acknowledge incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("incident %s not open", id)
	}
	return nil
}

func (s *Store) ListOpen(ctx context.Context) ([]domain.Incident, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, target_name, status, started_at, resolved_at, failure_count,
		        COALESCE(last_outcome_id::text,''), alerted
		   FROM incidents
		  WHERE status <> 'resolved'
		  ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list open incidents: %w", err)
	}
	defer rows.Close()

	var out []domain.Incident
	for rows.Next() {
		inc, err := scanIncident(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *inc)
	}
	return out, rows.Err()
}

func scanIncident(scan func(...any) error) (*domain.Incident, error) {
	var (
		inc     domain.Incident
		status  string
		alerted []byte
	)
	if err := scan(&inc.ID, &inc.TargetName, &status, &inc.StartedAt,
		&inc.ResolvedAt, &inc.FailureCount, &inc.LastOutcomeID, &alerted); err != nil {
		return nil, err
	}
	inc.Status = domain.IncidentStatus(status)
	if err := json.Unmarshal(alerted, &inc.Alerted); err != nil {
		return nil, fmt.Errorf("unmarshal alerted for %s: %w", inc.ID, err)
	}
	if inc.Alerted == nil {
		inc.Alerted = make(map[domain.Channel]bool)
	}
	return &inc, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
