package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/statusguard/statusguard/internal/domain"
	"github.com/statusguard/statusguard/internal/repo"
)

// Store keeps everything in process memory. It is the default backend
// when no database is configured, and the fixture for engine tests.
type Store struct {
	mu        sync.RWMutex
	services  map[domain.ServiceID]*domain.Service
	results   []domain.CheckResult
	incidents map[domain.IncidentID]*domain.Incident
	updates   map[domain.IncidentID][]domain.IncidentUpdate
}

func New() *Store {
	return &Store{
		services:  make(map[domain.ServiceID]*domain.Service),
		results:   make([]domain.CheckResult, 0, 128),
		incidents: make(map[domain.IncidentID]*domain.Incident),
		updates:   make(map[domain.IncidentID][]domain.IncidentUpdate),
	}
}

// ---- ServiceStore ----

func (m *Store) Add(ctx context.Context, s *domain.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = domain.ServiceID(uuid.NewString())
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	s.UpdatedAt = time.Now().UTC()
	if s.Status == "" {
		s.Status = domain.StatusOperational
	}
	cp := *s
	m.services[s.ID] = &cp
	return nil
}

func (m *Store) List(ctx context.Context) ([]domain.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Service, 0, len(m.services))
	for _, s := range m.services {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StatusPageID < out[j].StatusPageID })
	return out, nil
}

func (m *Store) Get(ctx context.Context, id domain.ServiceID) (*domain.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Store) SetStatus(ctx context.Context, id domain.ServiceID, status domain.ServiceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return repo.ErrNotFound
	}
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// ---- ResultStore ----

func (m *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	m.results = append(m.results, *r)
	return nil
}

func (m *Store) RecentByService(ctx context.Context, id domain.ServiceID, limit int) ([]domain.CheckResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Walk newest-appended first so the stable sort keeps later writes
	// ahead of earlier ones when CheckedAt ties.
	var out []domain.CheckResult
	for i := len(m.results) - 1; i >= 0; i-- {
		if m.results[i].ServiceID == id {
			out = append(out, m.results[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckedAt.After(out[j].CheckedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) Summary(ctx context.Context, id domain.ServiceID, since time.Time) (*repo.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := &repo.Summary{}
	var totalLatency int64
	for _, r := range m.results {
		if r.ServiceID != id || r.CheckedAt.Before(since) {
			continue
		}
		sum.TotalChecks++
		if r.Up {
			sum.SuccessfulChecks++
		} else {
			sum.FailedChecks++
		}
		totalLatency += r.LatencyMS
		if sum.TotalChecks == 1 || r.LatencyMS < sum.MinLatencyMS {
			sum.MinLatencyMS = r.LatencyMS
		}
		if r.LatencyMS > sum.MaxLatencyMS {
			sum.MaxLatencyMS = r.LatencyMS
		}
	}
	if sum.TotalChecks > 0 {
		sum.AvailabilityPct = 100 * float64(sum.SuccessfulChecks) / float64(sum.TotalChecks)
		sum.AvgLatencyMS = float64(totalLatency) / float64(sum.TotalChecks)
	}
	return sum, nil
}

// ---- IncidentStore ----

func (m *Store) ActiveByService(ctx context.Context, id domain.ServiceID) (*domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inc := range m.incidents {
		if inc.Status == domain.IncidentResolved {
			continue
		}
		for _, sid := range inc.ServiceIDs {
			if sid == id {
				cp := *inc
				return &cp, nil
			}
		}
	}
	return nil, repo.ErrNotFound
}

func (m *Store) Create(ctx context.Context, inc *domain.Incident, initial *domain.IncidentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inc.ID == "" {
		inc.ID = domain.IncidentID(uuid.NewString())
	}
	now := time.Now().UTC()
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = now
	}
	inc.UpdatedAt = now
	cp := *inc
	m.incidents[inc.ID] = &cp

	if initial != nil {
		if initial.ID == "" {
			initial.ID = uuid.NewString()
		}
		initial.IncidentID = inc.ID
		if initial.CreatedAt.IsZero() {
			initial.CreatedAt = now
		}
		m.updates[inc.ID] = append(m.updates[inc.ID], *initial)
	}
	return nil
}

func (m *Store) Resolve(ctx context.Context, id domain.IncidentID, update *domain.IncidentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return repo.ErrNotFound
	}
	now := time.Now().UTC()
	inc.Status = domain.IncidentResolved
	inc.ResolvedAt = &now
	inc.UpdatedAt = now

	if update != nil {
		if update.ID == "" {
			update.ID = uuid.NewString()
		}
		update.IncidentID = id
		if update.CreatedAt.IsZero() {
			update.CreatedAt = now
		}
		m.updates[id] = append(m.updates[id], *update)
	}
	return nil
}

func (m *Store) ListIncidents(ctx context.Context, statusPageID string) ([]domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Incident, 0, len(m.incidents))
	for _, inc := range m.incidents {
		if statusPageID != "" && inc.StatusPageID != statusPageID {
			continue
		}
		out = append(out, *inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) GetIncident(ctx context.Context, id domain.IncidentID) (*domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *inc
	return &cp, nil
}

func (m *Store) Updates(ctx context.Context, id domain.IncidentID) ([]domain.IncidentUpdate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.IncidentUpdate, len(m.updates[id]))
	copy(out, m.updates[id])
	return out, nil
}
