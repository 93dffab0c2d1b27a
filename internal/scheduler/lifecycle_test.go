package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/statusguard/statusguard/internal/domain"
	"github.com/statusguard/statusguard/internal/notify"
	"github.com/statusguard/statusguard/internal/repo"
	"github.com/statusguard/statusguard/internal/repo/memory"
)

func testService() domain.Service {
	return domain.Service{
		ID:           "svc-1",
		StatusPageID: "page-1",
		Name:         "api",
		Endpoint:     "https://api.example.com/health",
		Protocol:     domain.ProtocolHTTPS,
		Status:       domain.StatusOperational,
	}
}

func TestLifecycle_OpensIncidentOnce(t *testing.T) {
	store := memory.New()
	var sent []string
	l := NewLifecycle(zap.NewNop(), store, notify.Func(func(ctx context.Context, title, text string) error {
		sent = append(sent, title)
		return nil
	}))
	svc := testService()
	ctx := context.Background()

	l.OnSustainedFailure(ctx, svc)
	l.OnSustainedFailure(ctx, svc) // already active, must not duplicate

	all, err := store.ListIncidents(ctx, "page-1")
	if err != nil {
		t.Fatalf("ListIncidents: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("want exactly 1 incident, got %d", len(all))
	}
	inc := all[0]
	if inc.Title != `Service "api" is down` {
		t.Fatalf("title: %q", inc.Title)
	}
	if inc.Status != domain.IncidentInvestigating || inc.Severity != domain.SeverityMajor {
		t.Fatalf("status/severity: %s/%s", inc.Status, inc.Severity)
	}

	ups, err := store.Updates(ctx, inc.ID)
	if err != nil {
		t.Fatalf("Updates: %v", err)
	}
	if len(ups) != 1 || !strings.Contains(ups[0].Message, "Service health check failed") {
		t.Fatalf("initial update wrong: %+v", ups)
	}
	if len(sent) != 1 {
		t.Fatalf("want 1 notification, got %d", len(sent))
	}
}

func TestLifecycle_ResolvesActiveIncident(t *testing.T) {
	store := memory.New()
	l := NewLifecycle(zap.NewNop(), store, nil)
	svc := testService()
	ctx := context.Background()

	l.OnSustainedFailure(ctx, svc)
	active, err := store.ActiveByService(ctx, svc.ID)
	if err != nil {
		t.Fatalf("ActiveByService: %v", err)
	}

	l.OnSustainedRecovery(ctx, svc)

	if _, err := store.ActiveByService(ctx, svc.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("incident still active after recovery: %v", err)
	}
	got, err := store.GetIncident(ctx, active.ID)
	if err != nil {
		t.Fatalf("GetIncident: %v", err)
	}
	if got.Status != domain.IncidentResolved || got.ResolvedAt == nil {
		t.Fatalf("resolve fields wrong: %+v", got)
	}
	if got.ResolvedAt.Before(got.CreatedAt) {
		t.Fatalf("resolved_at %v before created_at %v", got.ResolvedAt, got.CreatedAt)
	}

	ups, err := store.Updates(ctx, active.ID)
	if err != nil {
		t.Fatalf("Updates: %v", err)
	}
	if len(ups) != 2 {
		t.Fatalf("want 2 timeline entries, got %d", len(ups))
	}
	if ups[1].Message != `Service "api" has recovered and is operational.` {
		t.Fatalf("resolution message: %q", ups[1].Message)
	}
}

func TestLifecycle_RecoveryWithoutIncidentIsNoop(t *testing.T) {
	store := memory.New()
	notified := false
	l := NewLifecycle(zap.NewNop(), store, notify.Func(func(ctx context.Context, title, text string) error {
		notified = true
		return nil
	}))

	l.OnSustainedRecovery(context.Background(), testService())

	if notified {
		t.Fatalf("no incident to resolve, must not notify")
	}
}

type failingIncidents struct{ err error }

func (f failingIncidents) ActiveByService(ctx context.Context, id domain.ServiceID) (*domain.Incident, error) {
	return nil, f.err
}
func (f failingIncidents) Create(ctx context.Context, inc *domain.Incident, initial *domain.IncidentUpdate) error {
	return f.err
}
func (f failingIncidents) Resolve(ctx context.Context, id domain.IncidentID, update *domain.IncidentUpdate) error {
	return f.err
}
func (f failingIncidents) ListIncidents(ctx context.Context, statusPageID string) ([]domain.Incident, error) {
	return nil, f.err
}
func (f failingIncidents) GetIncident(ctx context.Context, id domain.IncidentID) (*domain.Incident, error) {
	return nil, f.err
}
func (f failingIncidents) Updates(ctx context.Context, id domain.IncidentID) ([]domain.IncidentUpdate, error) {
	return nil, f.err
}

func TestLifecycle_StorageErrorsAreSwallowed(t *testing.T) {
	l := NewLifecycle(zap.NewNop(), failingIncidents{err: errors.New("db down")}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Neither call may panic or block; both degrade to no-ops.
	l.OnSustainedFailure(ctx, testService())
	l.OnSustainedRecovery(ctx, testService())
}
