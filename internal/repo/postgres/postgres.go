package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/repo"
)

var (
	_ repo.TargetStore   = (*Store)(nil)
	_ repo.OutcomeStore  = (*Store)(nil)
	_ repo.IncidentStore = (*Store)(nil)
)

//go:embed schema.sql
var schema string

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema applies the embedded schema. Idempotent.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// ---- TargetStore ----

func (s *Store) Upsert(ctx context.Context, t *domain.Target) error {
	channels, err := json.Marshal(t.Channels)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO targets (name, url, method, expected_status, timeout_seconds, contains, enabled, channels)
		 VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8)
		 ON CONFLICT (name) DO UPDATE SET
		   url=EXCLUDED.url, method=EXCLUDED.method,
		   expected_status=EXCLUDED.expected_status,
		   timeout_seconds=EXCLUDED.timeout_seconds,
		   contains=EXCLUDED.contains, enabled=EXCLUDED.enabled,
		   channels=EXCLUDED.channels`,
		t.Name, t.URL, t.Method, t.ExpectedStatus,
		int(t.Timeout/time.Second), t.Contains, t.Enabled, channels,
	)
	if err != nil {
		return fmt.Errorf("upsert target: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, url, method, expected_status, timeout_seconds, COALESCE(contains,''), enabled, channels
		   FROM targets
		  ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		t, err := scanTarget(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) GetByName(ctx context.Context, name string) (*domain.Target, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT name, url, method, expected_status, timeout_seconds, COALESCE(contains,''), enabled, channels
		   FROM targets WHERE name = $1`, name)
	t, err := scanTarget(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func scanTarget(scan func(...any) error) (*domain.Target, error) {
	var (
		t        domain.Target
		timeoutS int
		channels []byte
	)
	if err := scan(&t.Name, &t.URL, &t.Method, &t.ExpectedStatus, &timeoutS, &t.Contains, &t.Enabled, &channels); err != nil {
		return nil, err
	}
	t.Timeout = time.Duration(timeoutS) * time.Second
	if err := json.Unmarshal(channels, &t.Channels); err != nil {
		return nil, fmt.Errorf("unmarshal channels for %s: %w", t.Name, err)
	}
	return &t, nil
}

// ---- OutcomeStore ----

func (s *Store) Append(ctx context.Context, out *domain.CheckOutcome) error {
	var statusPtr *int
	if out.HTTPStatus != 0 {
		statusPtr = &out.HTTPStatus
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO checks (id, target_name, status, http_status, latency_ms, detail, checked_at)
		 VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7)`,
		out.ID, out.TargetName, string(out.Status), statusPtr, out.LatencyMS, out.Detail, out.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

func (s *Store) LastByTarget(ctx context.Context, name string) (*domain.CheckOutcome, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, target_name, status, http_status, latency_ms, COALESCE(detail,''), checked_at
		   FROM checks
		  WHERE target_name = $1
		  ORDER BY checked_at DESC
		  LIMIT 1`, name)
	o, err := scanOutcome(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]domain.CheckOutcome, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, target_name, status, http_status, latency_ms, COALESCE(detail,''), checked_at
		   FROM checks
		  ORDER BY checked_at DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent checks: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckOutcome
	for rows.Next() {
		o, err := scanOutcome(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOutcome(scan func(...any) error) (*domain.CheckOutcome, error) {
	var (
		o        domain.CheckOutcome
		status   string
		httpNull sql.NullInt32
	)
	if err := scan(&o.ID, &o.TargetName, &status, &httpNull, &o.LatencyMS, &o.Detail, &o.CheckedAt); err != nil {
		return nil, err
	}
	o.Status = domain.CheckStatus(status)
	if httpNull.Valid {
		o.HTTPStatus = int(httpNull.Int32)
	}
	return &o, nil
}

func (s *Store) RecentStats(ctx context.Context, name string, window time.Duration) (repo.Stats, error) {
	var st repo.Stats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'success'),
		        COALESCE(AVG(latency_ms) FILTER (WHERE status = 'success'), 0)
		   FROM checks
		  WHERE target_name = $1 AND checked_at > now() - $2::interval`,
		name, fmt.Sprintf("%d seconds", int(window.Seconds())),
	).Scan(&st.Total, &st.Successes, &st.AvgLatencyMS)
	if err != nil {
		return repo.Stats{}, fmt.Errorf("recent stats: %w", err)
	}
	if st.Total > 0 {
		st.UptimePct = float64(st.Successes) / float64(st.Total) * 100
	}
	return st, nil
}
