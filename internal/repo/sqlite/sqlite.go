package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/statusguard/statusguard/internal/domain"
	"github.com/statusguard/statusguard/internal/repo"
)

var _ repo.ServiceStore = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)
var _ repo.IncidentStore = (*Store)(nil)

// Store is the zero-setup backend: a single SQLite file, no external
// database required.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

func New(path string, log *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer at a time; a single connection keeps the
	// scheduler's concurrent result writes from tripping SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			status_page_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			protocol TEXT NOT NULL,
			check_interval_seconds INTEGER NOT NULL DEFAULT 60,
			timeout_ms INTEGER NOT NULL DEFAULT 5000,
			expected_status_code INTEGER NOT NULL DEFAULT 200,
			status TEXT NOT NULL DEFAULT 'operational',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS checks (
			id TEXT PRIMARY KEY,
			service_id TEXT NOT NULL REFERENCES services(id) ON DELETE CASCADE,
			up BOOLEAN NOT NULL,
			latency_ms INTEGER NOT NULL,
			status_code INTEGER,
			error TEXT,
			checked_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checks_service_time ON checks (service_id, checked_at DESC)`,
		`CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			status_page_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'investigating',
			severity TEXT NOT NULL DEFAULT 'minor',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			resolved_at TIMESTAMP
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
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO services
		 (id, status_page_id, name, endpoint, protocol, check_interval_seconds, timeout_ms, expected_status_code, status, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
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

func scanService(row interface{ Scan(...any) error }) (*domain.Service, error) {
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
	rows, err := s.db.QueryContext(ctx, `SELECT `+serviceCols+` FROM services ORDER BY status_page_id`)
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
	svc, err := scanService(s.db.QueryRowContext(ctx,
		`SELECT `+serviceCols+` FROM services WHERE id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return svc, nil
}

func (s *Store) SetStatus(ctx context.Context, id domain.ServiceID, status domain.ServiceStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE services SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), string(id))
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
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
	var errMsg *string
	if r.Error != "" {
		errMsg = &r.Error
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checks (id, service_id, up, latency_ms, status_code, error, checked_at)
		 VALUES (?,?,?,?,?,?,?)`,
		r.ID, string(r.ServiceID), r.Up, r.LatencyMS, r.StatusCode, errMsg, r.CheckedAt)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

func (s *Store) RecentByService(ctx context.Context, id domain.ServiceID, limit int) ([]domain.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, service_id, up, latency_ms, status_code, error, checked_at
		 FROM checks WHERE service_id = ?
		 ORDER BY checked_at DESC LIMIT ?`,
		string(id), limit)
	if err != nil {
		return nil, fmt.Errorf("recent checks: %w", err)
	}
	defer rows.Close()
	var out []domain.CheckResult
	for rows.Next() {
		var r domain.CheckResult
		var errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.ServiceID, &r.Up, &r.LatencyMS, &r.StatusCode, &errMsg, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		r.Error = errMsg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Summary(ctx context.Context, id domain.ServiceID, since time.Time) (*repo.Summary, error) {
	var sum repo.Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN up THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN up THEN 0 ELSE 1 END), 0),
		        COALESCE(AVG(latency_ms), 0),
		        COALESCE(MIN(latency_ms), 0),
		        COALESCE(MAX(latency_ms), 0)
		 FROM checks WHERE service_id = ? AND checked_at >= ?`,
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

const incidentCols = `id, status_page_id, title, status, severity, created_at, updated_at, resolved_at`

func scanIncident(row interface{ Scan(...any) error }) (*domain.Incident, error) {
	var inc domain.Incident
	var resolved sql.NullTime
	err := row.Scan(&inc.ID, &inc.StatusPageID, &inc.Title, &inc.Status, &inc.Severity,
		&inc.CreatedAt, &inc.UpdatedAt, &resolved)
	if err != nil {
		return nil, err
	}
	if resolved.Valid {
		t := resolved.Time
		inc.ResolvedAt = &t
	}
	return &inc, nil
}

func (s *Store) ActiveByService(ctx context.Context, id domain.ServiceID) (*domain.Incident, error) {
	inc, err := scanIncident(s.db.QueryRowContext(ctx,
		`SELECT `+incidentCols+` FROM incidents
		 WHERE status != 'resolved'
		   AND id IN (SELECT incident_id FROM incident_affected_services WHERE service_id = ?)
		 LIMIT 1`,
		string(id)))
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *Store) loadServiceIDs(ctx context.Context, inc *domain.Incident) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT service_id FROM incident_affected_services WHERE incident_id = ?`, string(inc.ID))
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO incidents (id, status_page_id, title, status, severity, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?)`,
		string(inc.ID), inc.StatusPageID, inc.Title, string(inc.Status), string(inc.Severity),
		inc.CreatedAt, inc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	for _, sid := range inc.ServiceIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO incident_affected_services (incident_id, service_id) VALUES (?,?)`,
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
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO incident_updates (id, incident_id, status, message, created_at)
			 VALUES (?,?,?,?,?)`,
			initial.ID, string(inc.ID), string(initial.Status), initial.Message, initial.CreatedAt); err != nil {
			return fmt.Errorf("insert initial update: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) Resolve(ctx context.Context, id domain.IncidentID, update *domain.IncidentUpdate) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE incidents SET status = 'resolved', resolved_at = ?, updated_at = ? WHERE id = ?`,
		now, now, string(id))
	if err != nil {
		return fmt.Errorf("resolve incident: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
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
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO incident_updates (id, incident_id, status, message, created_at)
			 VALUES (?,?,?,?,?)`,
			update.ID, string(id), string(update.Status), update.Message, update.CreatedAt); err != nil {
			return fmt.Errorf("insert resolve update: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListIncidents(ctx context.Context, statusPageID string) ([]domain.Incident, error) {
	q := `SELECT ` + incidentCols + ` FROM incidents ORDER BY created_at DESC`
	args := []any{}
	if statusPageID != "" {
		q = `SELECT ` + incidentCols + ` FROM incidents WHERE status_page_id = ? ORDER BY created_at DESC`
		args = append(args, statusPageID)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
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
	inc, err := scanIncident(s.db.QueryRowContext(ctx,
		`SELECT `+incidentCols+` FROM incidents WHERE id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, incident_id, status, message, created_at
		 FROM incident_updates WHERE incident_id = ? ORDER BY created_at ASC`,
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
