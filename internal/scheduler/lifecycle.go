package scheduler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/statusguard/statusguard/internal/domain"
	"github.com/statusguard/statusguard/internal/notify"
	"github.com/statusguard/statusguard/internal/repo"
)

// Lifecycle opens and resolves incidents in response to sustained
// failure/recovery. Storage errors are logged and swallowed: the
// manager degrades to a no-op for that service this cycle and the next
// cycle retries naturally.
type Lifecycle struct {
	Logger    *zap.Logger
	Incidents repo.IncidentStore
	Notifier  notify.Notifier
}

func NewLifecycle(logger *zap.Logger, incidents repo.IncidentStore, notifier notify.Notifier) *Lifecycle {
	return &Lifecycle{Logger: logger, Incidents: incidents, Notifier: notifier}
}

// OnSustainedFailure opens an incident for the service unless one is
// already active (idempotent). It does not touch the service status;
// the cycle runner does that after this returns.
func (l *Lifecycle) OnSustainedFailure(ctx context.Context, svc domain.Service) {
	_, err := l.Incidents.ActiveByService(ctx, svc.ID)
	if err == nil {
		// Incident already open; nothing to do.
		return
	}
	if !errors.Is(err, repo.ErrNotFound) {
		l.Logger.Warn("incident_lookup_error",
			zap.String("service_id", string(svc.ID)),
			zap.Error(err),
		)
		return
	}

	inc := &domain.Incident{
		StatusPageID: svc.StatusPageID,
		Title:        fmt.Sprintf("Service %q is down", svc.Name),
		Status:       domain.IncidentInvestigating,
		Severity:     domain.SeverityMajor,
		ServiceIDs:   []domain.ServiceID{svc.ID},
	}
	initial := &domain.IncidentUpdate{
		Status:  domain.IncidentInvestigating,
		Message: "Service health check failed. Latency: unknown. Status: down",
	}
	if err := l.Incidents.Create(ctx, inc, initial); err != nil {
		l.Logger.Warn("incident_create_error",
			zap.String("service_id", string(svc.ID)),
			zap.Error(err),
		)
		return
	}

	l.Logger.Info("incident_created",
		zap.String("incident_id", string(inc.ID)),
		zap.String("service", svc.Name),
	)
	if l.Notifier != nil {
		_ = l.Notifier.Send(ctx, "🔴 Incident opened",
			fmt.Sprintf("%s\nService: %s\nEndpoint: %s", inc.Title, svc.Name, svc.Endpoint))
	}
}

// OnSustainedRecovery resolves the service's active incident, if any.
func (l *Lifecycle) OnSustainedRecovery(ctx context.Context, svc domain.Service) {
	inc, err := l.Incidents.ActiveByService(ctx, svc.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return
	}
	if err != nil {
		l.Logger.Warn("incident_lookup_error",
			zap.String("service_id", string(svc.ID)),
			zap.Error(err),
		)
		return
	}

	update := &domain.IncidentUpdate{
		Status:  domain.IncidentResolved,
		Message: fmt.Sprintf("Service %q has recovered and is operational.", svc.Name),
	}
	if err := l.Incidents.Resolve(ctx, inc.ID, update); err != nil {
		l.Logger.Warn("incident_resolve_error",
			zap.String("incident_id", string(inc.ID)),
			zap.String("service_id", string(svc.ID)),
			zap.Error(err),
		)
		return
	}

	l.Logger.Info("incident_resolved",
		zap.String("incident_id", string(inc.ID)),
		zap.String("service", svc.Name),
	)
	if l.Notifier != nil {
		_ = l.Notifier.Send(ctx, "🟢 Incident resolved",
			fmt.Sprintf("%s\nService: %s", update.Message, svc.Name))
	}
}
