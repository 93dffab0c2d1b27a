package repo

import (
	"context"
	"errors"
	"time"

	"github.com/statusguard/statusguard/internal/domain"
)

// ErrNotFound is returned by lookups that matched no row.
var ErrNotFound = errors.New("not found")

// Summary aggregates a service's check history over a window.
type Summary struct {
	TotalChecks      int     `json:"total_checks"`
	SuccessfulChecks int     `json:"successful_checks"`
	FailedChecks     int     `json:"failed_checks"`
	AvailabilityPct  float64 `json:"availability_percent"`
	AvgLatencyMS     float64 `json:"avg_latency_ms"`
	MinLatencyMS     int64   `json:"min_latency_ms"`
	MaxLatencyMS     int64   `json:"max_latency_ms"`
}

// Ports (interfaces) — swap in any DB adapter later.

type ServiceStore interface {
	Add(ctx context.Context, s *domain.Service) error
	List(ctx context.Context) ([]domain.Service, error)
	Get(ctx context.Context, id domain.ServiceID) (*domain.Service, error)
	// SetStatus is the engine's status write; it also bumps updated_at.
	SetStatus(ctx context.Context, id domain.ServiceID, status domain.ServiceStatus) error
}

type ResultStore interface {
	Append(ctx context.Context, r *domain.CheckResult) error
	// RecentByService returns up to limit results, newest first.
	RecentByService(ctx context.Context, id domain.ServiceID, limit int) ([]domain.CheckResult, error)
	Summary(ctx context.Context, id domain.ServiceID, since time.Time) (*Summary, error)
}

type IncidentStore interface {
	// ActiveByService returns the one non-resolved incident linking the
	// service, or ErrNotFound.
	ActiveByService(ctx context.Context, id domain.ServiceID) (*domain.Incident, error)
	Create(ctx context.Context, inc *domain.Incident, initial *domain.IncidentUpdate) error
	Resolve(ctx context.Context, id domain.IncidentID, update *domain.IncidentUpdate) error
	ListIncidents(ctx context.Context, statusPageID string) ([]domain.Incident, error)
	GetIncident(ctx context.Context, id domain.IncidentID) (*domain.Incident, error)
	Updates(ctx context.Context, id domain.IncidentID) ([]domain.IncidentUpdate, error)
}
