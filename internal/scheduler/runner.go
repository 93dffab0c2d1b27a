package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/statusguard/statusguard/internal/domain"
	"github.com/statusguard/statusguard/internal/notify"
	"github.com/statusguard/statusguard/internal/probe"
	"github.com/statusguard/statusguard/internal/repo"
)

// Runner drives the health-check cycle: on a fixed cadence it fetches
// every service, fans probes out concurrently, then processes results
// sequentially so incident writes for one status page never race.
type Runner struct {
	Logger    *zap.Logger
	Services  repo.ServiceStore
	Results   repo.ResultStore
	Prober    probe.Prober
	Streak    *StreakEvaluator
	Lifecycle *Lifecycle
	Notifier  notify.Notifier

	Interval    time.Duration
	Concurrency int

	// Consecutive-outcome thresholds. Degradation is asymmetric on
	// purpose: one failure degrades, FailuresForIncident failures open
	// an incident, SuccessesForRecovery successes restore operational.
	FailuresForIncident  int
	SuccessesForRecovery int

	running atomic.Bool
}

func NewRunner(
	logger *zap.Logger,
	services repo.ServiceStore,
	results repo.ResultStore,
	incidents repo.IncidentStore,
	prober probe.Prober,
	notifier notify.Notifier,
	interval time.Duration,
	concurrency int,
	failuresForIncident int,
	successesForRecovery int,
) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if interval < 0 {
		interval = 0
	}
	if failuresForIncident < 1 {
		failuresForIncident = 2
	}
	if successesForRecovery < 1 {
		successesForRecovery = 2
	}
	return &Runner{
		Logger:               logger,
		Services:             services,
		Results:              results,
		Prober:               prober,
		Streak:               &StreakEvaluator{Results: results},
		Lifecycle:            NewLifecycle(logger, incidents, notifier),
		Notifier:             notifier,
		Interval:             interval,
		Concurrency:          concurrency,
		FailuresForIncident:  failuresForIncident,
		SuccessesForRecovery: successesForRecovery,
	}
}

// Run starts the loop. It does an immediate pass, then runs each tick.
// Stops when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	if r.Interval == 0 {
		// disabled
		r.Logger.Info("scheduler_disabled")
		return
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	// immediate pass
	r.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("scheduler_stopped")
			return
		case <-t.C:
			r.runCycle(ctx)
		}
	}
}

// runCycle executes one full pass. A tick that fires while the
// previous cycle is still draining slow probes is skipped rather than
// overlapped.
func (r *Runner) runCycle(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		r.Logger.Warn("cycle_skipped_still_running")
		return
	}
	defer r.running.Store(false)

	services, err := r.Services.List(ctx)
	if err != nil {
		// The whole cycle aborts; the next tick retries.
		r.Logger.Warn("cycle_list_error", zap.Error(err))
		return
	}
	if len(services) == 0 {
		r.Logger.Info("cycle_no_services")
		return
	}

	start := time.Now()
	results := r.probeAll(ctx, services)

	// Sequential post-processing: one service at a time, so the
	// read-then-write incident check stays effectively serialized.
	for i := range services {
		r.processResult(ctx, services[i], results[i])
	}

	r.Logger.Info("cycle_complete",
		zap.Int("services", len(services)),
		zap.Duration("took", time.Since(start)),
	)
}

// probeAll fans out one probe per service, bounded by Concurrency, and
// waits for all of them. results[i] corresponds to services[i].
func (r *Runner) probeAll(ctx context.Context, services []domain.Service) []domain.CheckResult {
	results := make([]domain.CheckResult, len(services))
	sem := make(chan struct{}, r.Concurrency)
	var wg sync.WaitGroup

	for i := range services {
		i := i
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			results[i] = r.Prober.Probe(ctx, services[i])
		}()
	}

	wg.Wait()
	return results
}

// processResult persists one result and walks the status machine.
// A storage failure for this service skips its post-processing; the
// rest of the cycle continues.
func (r *Runner) processResult(ctx context.Context, svc domain.Service, result domain.CheckResult) {
	if err := r.Results.Append(ctx, &result); err != nil {
		r.Logger.Warn("result_append_error",
			zap.String("service_id", string(svc.ID)),
			zap.Error(err),
		)
		return
	}

	if !result.Up {
		sustained, err := r.Streak.HasConsecutiveOutcome(ctx, svc.ID, false, r.FailuresForIncident)
		if err != nil {
			r.Logger.Warn("streak_eval_error", zap.String("service_id", string(svc.ID)), zap.Error(err))
			return
		}
		if sustained {
			r.Lifecycle.OnSustainedFailure(ctx, svc)
			r.setStatus(ctx, svc, domain.StatusDown, result)
		} else {
			// A single failure degrades but does not yet open an incident.
			r.setStatus(ctx, svc, domain.StatusDegraded, result)
		}
		return
	}

	sustained, err := r.Streak.HasConsecutiveOutcome(ctx, svc.ID, true, r.SuccessesForRecovery)
	if err != nil {
		r.Logger.Warn("streak_eval_error", zap.String("service_id", string(svc.ID)), zap.Error(err))
		return
	}
	if sustained {
		r.Lifecycle.OnSustainedRecovery(ctx, svc)
		r.setStatus(ctx, svc, domain.StatusOperational, result)
	}
	// Below the recovery threshold the status stays wherever it was:
	// hysteresis keeps a flapping service from bouncing to operational
	// on its first good probe.
}

func (r *Runner) setStatus(ctx context.Context, svc domain.Service, status domain.ServiceStatus, result domain.CheckResult) {
	if err := r.Services.SetStatus(ctx, svc.ID, status); err != nil {
		r.Logger.Warn("status_update_error",
			zap.String("service_id", string(svc.ID)),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return
	}
	if svc.Status == status {
		return
	}
	r.Logger.Info("service_status_changed",
		zap.String("service_id", string(svc.ID)),
		zap.String("service", svc.Name),
		zap.String("from", string(svc.Status)),
		zap.String("to", string(status)),
	)
	if r.Notifier != nil {
		_ = r.Notifier.Send(ctx, statusTitle(status), fmt.Sprintf(
			"Service: %s\nEndpoint: %s\nStatus: %s → %s\nLatency: %dms\nReason: %s",
			svc.Name, svc.Endpoint, svc.Status, status, result.LatencyMS, reasonText(result),
		))
	}
}

// RunSingleCheck probes one service immediately, persists the result,
// and runs the same evaluation the cycle would. Unlike the cycle, a
// persistence failure is returned to the caller alongside the result,
// since this is a synchronous on-demand path.
func (r *Runner) RunSingleCheck(ctx context.Context, id domain.ServiceID) (domain.CheckResult, error) {
	svc, err := r.Services.Get(ctx, id)
	if err != nil {
		return domain.CheckResult{}, err
	}

	result := r.Prober.Probe(ctx, *svc)
	if err := r.Results.Append(ctx, &result); err != nil {
		return result, fmt.Errorf("save check result: %w", err)
	}

	if !result.Up {
		sustained, err := r.Streak.HasConsecutiveOutcome(ctx, svc.ID, false, r.FailuresForIncident)
		if err != nil {
			return result, err
		}
		if sustained {
			r.Lifecycle.OnSustainedFailure(ctx, *svc)
			r.setStatus(ctx, *svc, domain.StatusDown, result)
		} else {
			r.setStatus(ctx, *svc, domain.StatusDegraded, result)
		}
		return result, nil
	}

	sustained, err := r.Streak.HasConsecutiveOutcome(ctx, svc.ID, true, r.SuccessesForRecovery)
	if err != nil {
		return result, err
	}
	if sustained {
		r.Lifecycle.OnSustainedRecovery(ctx, *svc)
		r.setStatus(ctx, *svc, domain.StatusOperational, result)
	}
	return result, nil
}

func statusTitle(status domain.ServiceStatus) string {
	switch status {
	case domain.StatusDown:
		return "🔴 Service DOWN"
	case domain.StatusDegraded:
		return "🟠 Service DEGRADED"
	case domain.StatusOperational:
		return "🟢 Service OPERATIONAL"
	default:
		return "Service " + string(status)
	}
}

func reasonText(result domain.CheckResult) string {
	if result.Error != "" {
		return result.Error
	}
	if result.StatusCode != nil {
		return fmt.Sprintf("%d", *result.StatusCode)
	}
	return "ok"
}
