package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/statusguard/statusguard/internal/domain"
	"github.com/statusguard/statusguard/internal/httpapi/middleware"
	"github.com/statusguard/statusguard/internal/repo"
	"github.com/statusguard/statusguard/internal/scheduler"
)

type Server struct {
	Logger    *zap.Logger
	Services  repo.ServiceStore
	Results   repo.ResultStore
	Incidents repo.IncidentStore
	Runner    *scheduler.Runner

	// Timeout applied to new services that configure none.
	DefaultTimeoutMS int64

	// Rate limit for the on-demand check trigger.
	TriggerRPM   int
	TriggerBurst int
}

func NewServer(
	l *zap.Logger,
	services repo.ServiceStore,
	results repo.ResultStore,
	incidents repo.IncidentStore,
	runner *scheduler.Runner,
	defaultTimeoutMS int64,
	triggerRPM, triggerBurst int,
) *Server {
	if defaultTimeoutMS <= 0 {
		defaultTimeoutMS = 5000
	}
	return &Server{
		Logger:           l,
		Services:         services,
		Results:          results,
		Incidents:        incidents,
		Runner:           runner,
		DefaultTimeoutMS: defaultTimeoutMS,
		TriggerRPM:       triggerRPM,
		TriggerBurst:     triggerBurst,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/api/services", s.handleListServices)
	r.Post("/api/services", s.handleCreateService)
	r.Get("/api/services/{id}", s.handleGetService)
	r.Put("/api/services/{id}/status", s.handleSetStatus)
	r.Get("/api/services/{id}/checks", s.handleListChecks)
	r.Get("/api/services/{id}/summary", s.handleSummary)

	r.With(middleware.RateLimit(s.TriggerRPM, s.TriggerBurst)).
		Post("/api/services/{id}/check", s.handleTriggerCheck)

	r.Get("/api/incidents", s.handleListIncidents)
	r.Get("/api/incidents/{id}", s.handleGetIncident)

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

type createServicePayload struct {
	StatusPageID         string `json:"status_page_id"`
	Name                 string `json:"name"`
	Endpoint             string `json:"endpoint"`
	Protocol             string `json:"protocol"`
	CheckIntervalSeconds int    `json:"check_interval_seconds"`
	TimeoutMS            int64  `json:"timeout_ms"`
	ExpectedStatusCode   int    `json:"expected_status_code"`
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var p createServicePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if p.Name == "" || p.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "name and endpoint are required")
		return
	}
	proto := domain.Protocol(p.Protocol)
	if p.Protocol == "" {
		proto = domain.ProtocolHTTPS
	}
	if !domain.ValidProtocol(proto) {
		writeError(w, http.StatusBadRequest, "unsupported protocol")
		return
	}
	if p.TimeoutMS <= 0 {
		p.TimeoutMS = s.DefaultTimeoutMS
	}

	svc := &domain.Service{
		StatusPageID:         p.StatusPageID,
		Name:                 p.Name,
		Endpoint:             p.Endpoint,
		Protocol:             proto,
		CheckIntervalSeconds: p.CheckIntervalSeconds,
		TimeoutMS:            p.TimeoutMS,
		ExpectedStatusCode:   p.ExpectedStatusCode,
		Status:               domain.StatusOperational,
	}
	if err := s.Services.Add(r.Context(), svc); err != nil {
		s.Logger.Warn("service_add_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not add service")
		return
	}

	s.Logger.Info("service_added",
		zap.String("service_id", string(svc.ID)),
		zap.String("name", svc.Name),
		zap.String("endpoint", svc.Endpoint),
	)
	writeJSON(w, http.StatusCreated, svc)
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	all, err := s.Services.List(r.Context())
	if err != nil {
		s.Logger.Warn("service_list_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	id := domain.ServiceID(chi.URLParam(r, "id"))

	svc, err := s.Services.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}
		s.Logger.Warn("service_get_error", zap.String("service_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup error")
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

type setStatusPayload struct {
	Status string `json:"status"`
}

// handleSetStatus lets an operator move a service in or out of
// maintenance. Only maintenance and operational are accepted here;
// degraded and down belong to the check engine.
func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id := domain.ServiceID(chi.URLParam(r, "id"))

	var p setStatusPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	status := domain.ServiceStatus(p.Status)
	if status != domain.StatusMaintenance && status != domain.StatusOperational {
		writeError(w, http.StatusBadRequest, "status must be maintenance or operational")
		return
	}

	if err := s.Services.SetStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}
		s.Logger.Warn("status_set_error", zap.String("service_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not update status")
		return
	}

	s.Logger.Info("service_status_set",
		zap.String("service_id", string(id)),
		zap.String("status", string(status)),
	)
	writeJSON(w, http.StatusOK, map[string]string{"id": string(id), "status": string(status)})
}

func (s *Server) handleTriggerCheck(w http.ResponseWriter, r *http.Request) {
	id := domain.ServiceID(chi.URLParam(r, "id"))

	result, err := s.Runner.RunSingleCheck(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}
		s.Logger.Warn("manual_check_error", zap.String("service_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "check failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	id := domain.ServiceID(chi.URLParam(r, "id"))

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be 1..1000")
			return
		}
		limit = n
	}

	if _, err := s.Services.Get(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup error")
		return
	}

	results, err := s.Results.RecentByService(r.Context(), id, limit)
	if err != nil {
		s.Logger.Warn("checks_list_error", zap.String("service_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if results == nil {
		results = []domain.CheckResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id := domain.ServiceID(chi.URLParam(r, "id"))

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 24*90 {
			writeError(w, http.StatusBadRequest, "hours must be 1..2160")
			return
		}
		hours = n
	}

	if _, err := s.Services.Get(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup error")
		return
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	sum, err := s.Results.Summary(r.Context(), id, since)
	if err != nil {
		s.Logger.Warn("summary_error", zap.String("service_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "summary error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service_id":   id,
		"period_hours": hours,
		"summary":      sum,
	})
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	statusPageID := r.URL.Query().Get("status_page_id")

	all, err := s.Incidents.ListIncidents(r.Context(), statusPageID)
	if err != nil {
		s.Logger.Warn("incident_list_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if all == nil {
		all = []domain.Incident{}
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := domain.IncidentID(chi.URLParam(r, "id"))

	inc, err := s.Incidents.GetIncident(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "incident not found")
			return
		}
		s.Logger.Warn("incident_get_error", zap.String("incident_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup error")
		return
	}
	updates, err := s.Incidents.Updates(r.Context(), id)
	if err != nil {
		s.Logger.Warn("incident_updates_error", zap.String("incident_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup error")
		return
	}
	if updates == nil {
		updates = []domain.IncidentUpdate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"incident": inc,
		"updates":  updates,
	})
}
