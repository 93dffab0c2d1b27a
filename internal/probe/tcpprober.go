package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/statusguard/statusguard/internal/domain"
)

// TCPProber checks that a TCP connection to host:port completes within
// the service timeout. No data is exchanged; the connection is closed
// as soon as it opens.
type TCPProber struct{}

func (t *TCPProber) Probe(ctx context.Context, svc domain.Service) domain.CheckResult {
	if _, _, err := net.SplitHostPort(svc.Endpoint); err != nil {
		// Malformed endpoint: fail without touching the network.
		return domain.CheckResult{
			ServiceID: svc.ID,
			Up:        false,
			LatencyMS: 0,
			Error:     "invalid TCP endpoint format (expected host:port)",
			CheckedAt: time.Now().UTC(),
		}
	}

	timeout := timeoutFor(svc)
	budgetMS := timeout.Milliseconds()
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var d net.Dialer
	conn, err := d.DialContext(cctx, "tcp", svc.Endpoint)
	if err != nil {
		if isTimeout(err) {
			return domain.CheckResult{
				ServiceID: svc.ID,
				Up:        false,
				LatencyMS: budgetMS,
				Error:     fmt.Sprintf("TCP timeout after %dms", budgetMS),
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
	latency := time.Since(start).Milliseconds()
	_ = conn.Close()

	return domain.CheckResult{
		ServiceID: svc.ID,
		Up:        true,
		LatencyMS: latency,
		CheckedAt: time.Now().UTC(),
	}
}
