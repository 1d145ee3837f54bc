package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/repo"
)

var (
	_ repo.TargetStore   = (*Store)(nil)
	_ repo.OutcomeStore  = (*Store)(nil)
	_ repo.IncidentStore = (*Store)(nil)
)

// Store keeps everything in process memory. Used for dev and tests; a
// single mutex serializes all writes, which trivially satisfies the
// per-target serialization the core requires.
type Store struct {
	mu        sync.RWMutex
	targets   map[string]domain.Target
	outcomes  []domain.CheckOutcome
	incidents map[string]*domain.Incident
	openByTgt map[string]string // target name -> open incident id
}

func New() *Store {
	return &Store{
		targets:   make(map[string]domain.Target),
		outcomes:  make([]domain.CheckOutcome, 0, 128),
		incidents: make(map[string]*domain.Incident),
		openByTgt: make(map[string]string),
	}
}

// ---- TargetStore ----

func (m *Store) Upsert(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Name == "" {
		return fmt.Errorf("target name required")
	}
	m.targets[t.Name] = *t
	return nil
}

func (m *Store) List(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		out = append(out, t)
	}
	return out, nil
}

func (m *Store) GetByName(ctx context.Context, name string) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[name]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// ---- OutcomeStore ----

func (m *Store) Append(ctx context.Context, out *domain.CheckOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, *out)
	return nil
}

func (m *Store) LastByTarget(ctx context.Context, name string) (*domain.CheckOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.outcomes) - 1; i >= 0; i-- {
		if m.outcomes[i].TargetName == name {
			o := m.outcomes[i]
			return &o, nil
		}
	}
	return nil, nil
}

func (m *Store) Recent(ctx context.Context, limit int) ([]domain.CheckOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.outcomes) {
		limit = len(m.outcomes)
	}
	out := make([]domain.CheckOutcome, 0, limit)
	for i := len(m.outcomes) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.outcomes[i])
	}
	return out, nil
}

func (m *Store) RecentStats(ctx context.Context, name string, window time.Duration) (repo.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := time.Now().UTC().Add(-window)

	var st repo.Stats
	var latSum float64
	var latN int
	for _, o := range m.outcomes {
		if o.TargetName != name || o.CheckedAt.Before(cutoff) {
			continue
		}
		st.Total++
		if o.Status.OK() {
			st.Successes++
			latSum += o.LatencyMS
			latN++
		}
	}
	if st.Total > 0 {
		st.UptimePct = float64(st.Successes) / float64(st.Total) * 100
	}
	if latN > 0 {
		st.AvgLatencyMS = latSum / float64(latN)
	}
	return st, nil
}

// ---- IncidentStore ----

func (m *Store) OpenIncident(ctx context.Context, targetName string) (*domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.openByTgt[targetName]
	if !ok {
		return nil, nil
	}
	return copyIncident(m.incidents[id]), nil
}

func (m *Store) Create(ctx context.Context, inc *domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.openByTgt[inc.TargetName]; exists {
		return fmt.Errorf("open incident already exists for %s", inc.TargetName)
	}
	m.incidents[inc.ID] = copyIncident(inc)
	m.openByTgt[inc.TargetName] = inc.ID
	return nil
}

func (m *Store) Update(ctx context.Context, inc *domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.incidents[inc.ID]
	if !ok {
		return fmt.Errorf("incident %s not found", inc.ID)
	}
	cur.FailureCount = inc.FailureCount
	cur.LastOutcomeID = inc.LastOutcomeID
	cur.Status = inc.Status
	return nil
}

func (m *Store) Resolve(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return fmt.Errorf("incident %s not found", id)
	}
	inc.Status = domain.IncidentResolved
	t := at
	inc.ResolvedAt = &t
	delete(m.openByTgt, inc.TargetName)
	return nil
}

func (m *Store) SetAlerted(ctx context.Context, id string, ch domain.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return fmt.Errorf("incident %s not found", id)
	}
	if inc.Alerted == nil {
		inc.Alerted = make(map[domain.Channel]bool)
	}
	inc.Alerted[ch] = true
	return nil
}

func (m *Store) Acknowledge(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return fmt.Errorf("incident %s not found", id)
	}
	if inc.Status != domain.IncidentOpen {
		return fmt.Errorf("incident %s is %s, not open", id, inc.Status)
	}
	inc.Status = domain.IncidentAcknowledged
	return nil
}

func (m *Store) ListOpen(ctx context.Context) ([]domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Incident, 0, len(m.openByTgt))
	for _, id := range m.openByTgt {
		out = append(out, *copyIncident(m.incidents[id]))
	}
	return out, nil
}

func copyIncident(inc *domain.Incident) *domain.Incident {
	cp := *inc
	cp.Alerted = make(map[domain.Channel]bool, len(inc.Alerted))
	for k, v := range inc.Alerted {
		cp.Alerted[k] = v
	}
	return &cp
}
