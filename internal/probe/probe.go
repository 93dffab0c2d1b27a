package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/statusguard/statusguard/internal/domain"
)

// Prober performs a single health check for a service. Implementations
// never return an error: every failure mode (timeout, refused
// connection, TLS error, bad endpoint, unexpected status code) folds
// into a CheckResult with Up=false and a human-readable Error.
type Prober interface {
	Probe(ctx context.Context, svc domain.Service) domain.CheckResult
}

// MultiProber dispatches on the service's protocol. One prober per
// protocol kind, selected here and nowhere else.
type MultiProber struct {
	HTTP *HTTPProber
	TCP  *TCPProber
}

func NewMultiProber() *MultiProber {
	return &MultiProber{
		HTTP: NewHTTPProber(),
		TCP:  &TCPProber{},
	}
}

func (m *MultiProber) Probe(ctx context.Context, svc domain.Service) domain.CheckResult {
	switch svc.Protocol {
	case domain.ProtocolHTTP, domain.ProtocolHTTPS:
		return m.HTTP.Probe(ctx, svc)
	case domain.ProtocolTCP:
		return m.TCP.Probe(ctx, svc)
	default:
		// gRPC is accepted in the service model but has no prober.
		return domain.CheckResult{
			ServiceID: svc.ID,
			Up:        false,
			LatencyMS: 0,
			Error:     fmt.Sprintf("unsupported protocol: %s", svc.Protocol),
			CheckedAt: time.Now().UTC(),
		}
	}
}

func timeoutFor(svc domain.Service) time.Duration {
	if svc.TimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(svc.TimeoutMS) * time.Millisecond
}
