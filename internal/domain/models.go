package domain

import "time"

type ServiceID string

type IncidentID string

// Protocol is the probe protocol configured for a service. GRPC is a
// valid configuration value but no prober exists for it yet; probing a
// gRPC service yields a failed result naming the protocol.
type Protocol string

const (
	ProtocolHTTP  Protocol = "HTTP"
	ProtocolHTTPS Protocol = "HTTPS"
	ProtocolTCP   Protocol = "TCP"
	ProtocolGRPC  Protocol = "gRPC"
)

// ServiceStatus is derived from check history by the scheduler.
// Admin edits may only set StatusMaintenance or reset to
// StatusOperational; the engine owns the rest.
type ServiceStatus string

const (
	StatusOperational ServiceStatus = "operational"
	StatusDegraded    ServiceStatus = "degraded"
	StatusDown        ServiceStatus = "down"
	StatusMaintenance ServiceStatus = "maintenance"
)

type Service struct {
	ID                   ServiceID     `json:"id"`
	StatusPageID         string        `json:"status_page_id"`
	Name                 string        `json:"name"`
	Endpoint             string        `json:"endpoint"`
	Protocol             Protocol      `json:"protocol"`
	CheckIntervalSeconds int           `json:"check_interval_seconds"`
	TimeoutMS            int64         `json:"timeout_ms"`
	ExpectedStatusCode   int           `json:"expected_status_code"`
	Status               ServiceStatus `json:"status"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// CheckResult is one probe outcome. Append-only once written.
// StatusCode is set for HTTP probes that received a response, even
// when the code mismatched the expectation (Up=false).
type CheckResult struct {
	ID         string    `json:"id"`
	ServiceID  ServiceID `json:"service_id"`
	Up         bool      `json:"up"`
	LatencyMS  int64     `json:"latency_ms"`
	StatusCode *int      `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

type IncidentStatus string

const (
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentIdentified    IncidentStatus = "identified"
	IncidentMonitoring    IncidentStatus = "monitoring"
	IncidentResolved      IncidentStatus = "resolved"
)

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

type Incident struct {
	ID           IncidentID     `json:"id"`
	StatusPageID string         `json:"status_page_id"`
	Title        string         `json:"title"`
	Status       IncidentStatus `json:"status"`
	Severity     Severity       `json:"severity"`
	ServiceIDs   []ServiceID    `json:"service_ids"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	ResolvedAt   *time.Time     `json:"resolved_at,omitempty"`
}

// IncidentUpdate is an append-only timeline entry, written whenever an
// incident is created or transitions state.
type IncidentUpdate struct {
	ID         string         `json:"id"`
	IncidentID IncidentID     `json:"incident_id"`
	Status     IncidentStatus `json:"status"`
	Message    string         `json:"message"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ValidProtocol reports whether p is an accepted configuration value.
func ValidProtocol(p Protocol) bool {
	switch p {
	case ProtocolHTTP, ProtocolHTTPS, ProtocolTCP, ProtocolGRPC:
		return true
	}
	return false
}
