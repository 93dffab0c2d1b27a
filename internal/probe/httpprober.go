package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/statusguard/statusguard/internal/domain"
)

type HTTPProber struct {
	Client *http.Client
}

func NewHTTPProber() *HTTPProber {
	// Per-probe deadlines come from the service config, so the shared
	// client carries no timeout of its own.
	return &HTTPProber{Client: &http.Client{}}
}

func (h *HTTPProber) Probe(ctx context.Context, svc domain.Service) domain.CheckResult {
	timeout := timeoutFor(svc)
	budgetMS := timeout.Milliseconds()
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, svc.Endpoint, nil)
	if err != nil {
		return domain.CheckResult{
			ServiceID: svc.ID,
			Up:        false,
			LatencyMS: 0,
			Error:     err.Error(),
			CheckedAt: time.Now().UTC(),
		}
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		if isTimeout(err) {
			// On timeout the latency is the effective budget, spent in full.
			return domain.CheckResult{
				ServiceID: svc.ID,
				Up:        false,
				LatencyMS: budgetMS,
				Error:     fmt.Sprintf("Timeout after %dms", budgetMS),
				CheckedAt: time.Now().UTC(),
			}
		}
		return domain.CheckResult{
			ServiceID: svc.ID,
			Up:        false,
			LatencyMS: time.Since(start).Milliseconds(),
			Error:     err.Error(),
			CheckedAt: time.Now().UTC(),
		}
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()
	expected := svc.ExpectedStatusCode
	if expected == 0 {
		expected = http.StatusOK
	}
	code := resp.StatusCode

	cr := domain.CheckResult{
		ServiceID:  svc.ID,
		Up:         code == expected,
		LatencyMS:  latency,
		StatusCode: &code,
		CheckedAt:  time.Now().UTC(),
	}
	if !cr.Up {
		cr.Error = fmt.Sprintf("unexpected status code: %d (want %d)", code, expected)
	}
	return cr
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
