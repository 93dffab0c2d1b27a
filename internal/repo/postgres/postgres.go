package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/statusguard/statusguard/internal/domain"
	"github.com/statusguard/statusguard/internal/repo"
)

var _ repo.ServiceStore = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)
var _ repo.IncidentStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			status_page_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			protocol TEXT NOT NULL,
			check_interval_seconds INT NOT NULL DEFAULT 60,
			timeout_ms BIGINT NOT NULL DEFAULT 5000,
			expected_status_code INT NOT NULL DEFAULT 200,
			status TEXT NOT NULL DEFAULT 'operational',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS checks (
			id TEXT PRIMARY KEY,
			service_id TEXT NOT NULL REFERENCES services(id) ON DELETE CASCADE,
			up BOOLEAN NOT NULL,
			latency_ms BIGINT NOT NULL,
			status_code INT,
			error TEXT,
			checked_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checks_service_time ON checks (service_id, checked_at DESC)`,
		`CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			status_page_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'investigating',
			severity TEXT NOT NULL DEFAULT 'minor',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS incident_affected_services (
			incident_id TEXT NOT NULL REFERENCES incidents(id) ON DELETE CASCADE,
			service_id TEXT NOT NULL,
			PRIMARY KEY (incident_id, service_id)
		)`,
		`CREATE TABLE IF NOT EXISTS incident_updates (
			id TEXT PRIMARY KEY,
			incident_id TEXT NOT NULL REFERENCES incidents(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ---- ServiceStore ----

func (s *Store) Add(ctx context.Context, svc *domain.Service) error {
	if svc.ID == "" {
		svc.ID = domain.ServiceID(uuid.NewString())
	}
	now := time.Now().UTC()
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = now
	}
	svc.UpdatedAt = now
	if svc.Status == "" {
		svc.Status = domain.StatusOperational
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO services
		 (id, status_page_id, name, endpoint, protocol, check_interval_seconds, timeout_ms, expected_status_code, status, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		string(svc.ID), svc.StatusPageID, svc.Name, svc.Endpoint, string(svc.Protocol),
		svc.CheckIntervalSeconds, svc.TimeoutMS, svc.ExpectedStatusCode, string(svc.Status),
		svc.CreatedAt, svc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

const serviceCols = `id, status_page_id, name, endpoint, protocol, check_interval_seconds, timeout_ms, expected_status_code, status, created_at, updated_at`

func scanService(row pgx.Row) (*domain.Service, error) {
	var svc domain.Service
	err := row.Scan(&svc.ID, &svc.StatusPageID, &svc.Name, &svc.Endpoint, &svc.Protocol,
		&svc.CheckIntervalSeconds, &svc.TimeoutMS, &svc.ExpectedStatusCode, &svc.Status,
		&svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Service, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+serviceCols+` FROM services ORDER BY status_page_id`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()
	var out []domain.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, *svc)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id domain.ServiceID) (*domain.Service, error) {
	svc, err := scanService(s.pool.QueryRow(ctx,
		`SELECT `+serviceCols+` FROM services WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return svc, nil
}

func (s *Store) SetStatus(ctx context.Context, id domain.ServiceID, status domain.ServiceStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE services SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), string(id))
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ---- ResultStore ----

func (s *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO checks (id, service_id, up, latency_ms, status_code, error, checked_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, string(r.ServiceID), r.Up, r.LatencyMS, r.StatusCode, nullableString(r.Error), r.CheckedAt)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

func (s *Store) RecentByService(ctx context.Context, id domain.ServiceID, limit int) ([]domain.CheckResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, service_id, up, latency_ms, status_code, error, checked_at
		 FROM checks WHERE service_id = $1
		 ORDER BY checked_at DESC LIMIT $2`,
		string(id), limit)
	if err != nil {
		return nil, fmt.Errorf("recent checks: %w", err)
	}
	defer rows.Close()
	var out []domain.CheckResult
	for rows.Next() {
		var r domain.CheckResult
		var errMsg *string
		if err := rows.Scan(&r.ID, &r.ServiceID, &r.Up, &r.LatencyMS, &r.StatusCode, &errMsg, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Summary(ctx context.Context, id domain.ServiceID, since time.Time) (*repo.Summary, error) {
	var sum repo.Summary
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE up),
		        COUNT(*) FILTER (WHERE NOT up),
		        COALESCE(AVG(latency_ms), 0),
		        COALESCE(MIN(latency_ms), 0),
		        COALESCE(MAX(latency_ms), 0)
		 FROM checks WHERE service_id = $1 AND checked_at >= $2`,
		string(id), since).
		Scan(&sum.TotalChecks, &sum.SuccessfulChecks, &sum.FailedChecks,
			&sum.AvgLatencyMS, &sum.MinLatencyMS, &sum.MaxLatencyMS)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	if sum.TotalChecks > 0 {
		sum.AvailabilityPct = 100 * float64(sum.SuccessfulChecks) / float64(sum.TotalChecks)
	}
	return &sum, nil
}

// ---- IncidentStore ----

func (s *Store) ActiveByService(ctx context.Context, id domain.ServiceID) (*domain.Incident, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT i.id, i.status_page_id, i.title, i.status, i.severity, i.created_at, i.updated_at, i.resolved_at
		 FROM incidents i
		 WHERE i.status != 'resolved'
		   AND i.id IN (SELECT incident_id FROM incident_affected_services WHERE service_id = $1)
		 LIMIT 1`,
		string(id))
	inc, err := scanIncident(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("active incident: %w", err)
	}
	if err := s.loadServiceIDs(ctx, inc); err != nil {
		return nil, err
	}
	return inc, nil
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var inc domain.Incident
	err := row.Scan(&inc.ID, &inc.StatusPageID, &inc.Title, &inc.Status, &inc.Severity,
		&inc.CreatedAt, &inc.UpdatedAt, &inc.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

func (s *Store) loadServiceIDs(ctx context.Context, inc *domain.Incident) error {
	rows, err := s.pool.Query(ctx,
		`SELECT service_id FROM incident_affected_services WHERE incident_id = $1`, string(inc.ID))
	if err != nil {
		return fmt.Errorf("affected services: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return fmt.Errorf("scan affected service: %w", err)
		}
		inc.ServiceIDs = append(inc.ServiceIDs, domain.ServiceID(sid))
	}
	return rows.Err()
}

func (s *Store) Create(ctx context.Context, inc *domain.Incident, initial *domain.IncidentUpdate) error {
	if inc.ID == "" {
		inc.ID = domain.IncidentID(uuid.NewString())
	}
	now := time.Now().UTC()
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = now
	}
	inc.UpdatedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO incidents (id, status_page_id, title, status, severity, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		string(inc.ID), inc.StatusPageID, inc.Title, string(inc.Status), string(inc.Severity),
		inc.CreatedAt, inc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	for _, sid := range inc.ServiceIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO incident_affected_services (incident_id, service_id) VALUES ($1,$2)`,
			string(inc.ID), string(sid)); err != nil {
			return fmt.Errorf("link service: %w", err)
		}
	}
	if initial != nil {
		if initial.ID == "" {
			initial.ID = uuid.NewString()
		}
		initial.IncidentID = inc.ID
		if initial.CreatedAt.IsZero() {
			initial.CreatedAt = now
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO incident_updates (id, incident_id, status, message, created_at)
			 VALUES ($1,$2,$3,$4,$5)`,
			initial.ID, string(inc.ID), string(initial.Status), initial.Message, initial.CreatedAt); err != nil {
			return fmt.Errorf("insert initial update: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) Resolve(ctx context.Context, id domain.IncidentID, update *domain.IncidentUpdate) error {
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE incidents SET status = 'resolved', resolved_at = $1, updated_at = $1 WHERE id = $2`,
		now, string(id))
	if err != nil {
		return fmt.Errorf("resolve incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	if update != nil {
		if update.ID == "" {
			update.ID = uuid.NewString()
		}
		update.IncidentID = id
		if update.CreatedAt.IsZero() {
			update.CreatedAt = now
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO incident_updates (id, incident_id, status, message, created_at)
			 VALUES ($1,$2,$3,$4,$5)`,
			update.ID, string(id), string(update.Status), update.Message, update.CreatedAt); err != nil {
			return fmt.Errorf("insert resolve update: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ListIncidents(ctx context.Context, statusPageID string) ([]domain.Incident, error) {
	q := `SELECT id, status_page_id, title, status, severity, created_at, updated_at, resolved_at
	      FROM incidents ORDER BY created_at DESC`
	args := []any{}
	if statusPageID != "" {
		q = `SELECT id, status_page_id, title, status, severity, created_at, updated_at, resolved_at
		     FROM incidents WHERE status_page_id = $1 ORDER BY created_at DESC`
		args = append(args, statusPageID)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()
	var out []domain.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, *inc)
	}
	return out, rows.Err()
}

func (s *Store) GetIncident(ctx context.Context, id domain.IncidentID) (*domain.Incident, error) {
	inc, err := scanIncident(s.pool.QueryRow(ctx,
		`SELECT id, status_page_id, title, status, severity, created_at, updated_at, resolved_at
		 FROM incidents WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}
	if err := s.loadServiceIDs(ctx, inc); err != nil {
		return nil, err
	}
	return inc, nil
}

func (s *Store) Updates(ctx context.Context, id domain.IncidentID) ([]domain.IncidentUpdate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, incident_id, status, message, created_at
		 FROM incident_updates WHERE incident_id = $1 ORDER BY created_at ASC`,
		string(id))
	if err != nil {
		return nil, fmt.Errorf("incident updates: %w", err)
	}
	defer rows.Close()
	var out []domain.IncidentUpdate
	for rows.Next() {
		var u domain.IncidentUpdate
		if err := rows.Scan(&u.ID, &u.IncidentID, &u.Status, &u.Message, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
