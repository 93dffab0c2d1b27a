package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/statusguard/statusguard/internal/domain"
	"github.com/statusguard/statusguard/internal/repo"
)

func TestMemoryStore_AddAndListServices(t *testing.T) {
	ctx := context.Background()
	s := New()

	svc := &domain.Service{
		StatusPageID: "P1",
		Name:         "api",
		Endpoint:     "https://example.com",
		Protocol:     domain.ProtocolHTTPS,
		TimeoutMS:    5000,
	}
	if err := s.Add(ctx, svc); err != nil {
		t.Fatalf("Add service: %v", err)
	}
	if svc.ID == "" {
		t.Fatalf("expected service ID to be set")
	}
	if svc.Status != domain.StatusOperational {
		t.Fatalf("new service should default to operational, got %s", svc.Status)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].Endpoint != "https://example.com" {
		t.Fatalf("unexpected list: %+v", all)
	}
}

func TestMemoryStore_SetStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	svc := &domain.Service{Name: "api", Endpoint: "https://example.com", Protocol: domain.ProtocolHTTPS}
	if err := s.Add(ctx, svc); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.SetStatus(ctx, svc.ID, domain.StatusDown); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	got, err := s.Get(ctx, svc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusDown {
		t.Fatalf("want down, got %s", got.Status)
	}

	if err := s.SetStatus(ctx, domain.ServiceID("missing"), domain.StatusDown); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ResultRoundTripNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := domain.ServiceID("S1")

	base := time.Now().UTC().Add(-time.Minute)
	code := 200
	older := &domain.CheckResult{ServiceID: id, Up: false, LatencyMS: 40, Error: "boom", CheckedAt: base}
	newer := &domain.CheckResult{ServiceID: id, Up: true, LatencyMS: 12, StatusCode: &code, CheckedAt: base.Add(10 * time.Second)}
	for _, r := range []*domain.CheckResult{older, newer} {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	// another service's result must not leak in
	if err := s.Append(ctx, &domain.CheckResult{ServiceID: "S2", Up: true, CheckedAt: base}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.RecentByService(ctx, id, 10)
	if err != nil {
		t.Fatalf("RecentByService: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 results, got %d", len(got))
	}
	if !got[0].Up || got[0].LatencyMS != 12 || got[0].StatusCode == nil || *got[0].StatusCode != 200 {
		t.Fatalf("newest-first ordering broken: %+v", got[0])
	}
	if got[1].Up || got[1].Error != "boom" || got[1].LatencyMS != 40 {
		t.Fatalf("fields lost on round-trip: %+v", got[1])
	}

	limited, err := s.RecentByService(ctx, id, 1)
	if err != nil {
		t.Fatalf("RecentByService limit: %v", err)
	}
	if len(limited) != 1 || !limited[0].Up {
		t.Fatalf("limit should keep the newest: %+v", limited)
	}
}

func TestMemoryStore_RecentTiesPreferLatestWrite(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := domain.ServiceID("S1")

	// Identical timestamps: the later append is the newer result and
	// must come first.
	at := time.Now().UTC()
	first := &domain.CheckResult{ServiceID: id, Up: false, LatencyMS: 40, Error: "boom", CheckedAt: at}
	second := &domain.CheckResult{ServiceID: id, Up: true, LatencyMS: 12, CheckedAt: at}
	for _, r := range []*domain.CheckResult{first, second} {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := s.RecentByService(ctx, id, 10)
	if err != nil {
		t.Fatalf("RecentByService: %v", err)
	}
	if len(got) != 2 || got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("tie must order latest write first: %+v", got)
	}
}

func TestMemoryStore_Summary(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := domain.ServiceID("S1")
	now := time.Now().UTC()

	for _, r := range []domain.CheckResult{
		{ServiceID: id, Up: true, LatencyMS: 10, CheckedAt: now.Add(-3 * time.Minute)},
		{ServiceID: id, Up: true, LatencyMS: 30, CheckedAt: now.Add(-2 * time.Minute)},
		{ServiceID: id, Up: false, LatencyMS: 50, CheckedAt: now.Add(-1 * time.Minute)},
		{ServiceID: id, Up: true, LatencyMS: 999, CheckedAt: now.Add(-2 * time.Hour)}, // outside window
	} {
		cp := r
		if err := s.Append(ctx, &cp); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	sum, err := s.Summary(ctx, id, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalChecks != 3 || sum.SuccessfulChecks != 2 || sum.FailedChecks != 1 {
		t.Fatalf("counts wrong: %+v", sum)
	}
	if sum.MinLatencyMS != 10 || sum.MaxLatencyMS != 50 {
		t.Fatalf("min/max wrong: %+v", sum)
	}
	if sum.AvgLatencyMS != 30 {
		t.Fatalf("avg wrong: %+v", sum)
	}
	if sum.AvailabilityPct < 66 || sum.AvailabilityPct > 67 {
		t.Fatalf("availability wrong: %+v", sum)
	}
}

func TestMemoryStore_IncidentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	sid := domain.ServiceID("S1")

	if _, err := s.ActiveByService(ctx, sid); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound before creation, got %v", err)
	}

	inc := &domain.Incident{
		StatusPageID: "P1",
		Title:        `Service "api" is down`,
		Status:       domain.IncidentInvestigating,
		Severity:     domain.SeverityMajor,
		ServiceIDs:   []domain.ServiceID{sid},
	}
	initial := &domain.IncidentUpdate{Status: domain.IncidentInvestigating, Message: "health check failed"}
	if err := s.Create(ctx, inc, initial); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inc.ID == "" {
		t.Fatalf("expected incident ID to be set")
	}

	active, err := s.ActiveByService(ctx, sid)
	if err != nil {
		t.Fatalf("ActiveByService: %v", err)
	}
	if active.ID != inc.ID {
		t.Fatalf("active incident mismatch: %+v", active)
	}

	if err := s.Resolve(ctx, inc.ID, &domain.IncidentUpdate{Status: domain.IncidentResolved, Message: "recovered"}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := s.ActiveByService(ctx, sid); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("resolved incident must not be active, got %v", err)
	}

	got, err := s.GetIncident(ctx, inc.ID)
	if err != nil {
		t.Fatalf("GetIncident: %v", err)
	}
	if got.Status != domain.IncidentResolved || got.ResolvedAt == nil {
		t.Fatalf("resolved fields wrong: %+v", got)
	}
	if got.ResolvedAt.Before(got.CreatedAt) {
		t.Fatalf("resolved_at must be >= created_at")
	}

	ups, err := s.Updates(ctx, inc.ID)
	if err != nil {
		t.Fatalf("Updates: %v", err)
	}
	if len(ups) != 2 || ups[0].Status != domain.IncidentInvestigating || ups[1].Status != domain.IncidentResolved {
		t.Fatalf("timeline wrong: %+v", ups)
	}
}
