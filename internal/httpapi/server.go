package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/httpapi/middleware"
	"github.com/hamed0406/watchdog/internal/repo"
)

const (
	defaultStatsWindow = 24 * time.Hour
	maxStatsWindow     = 30 * 24 * time.Hour
	defaultChecksLimit = 50
	maxChecksLimit     = 500
)

// Server exposes the watchdog's state over HTTP: configured targets, recent
// checks, per-target uptime stats and the open incident list. Read-only
// except for incident acknowledgement, which needs an admin key.
type Server struct {
	Logger    *zap.Logger
	Targets   repo.TargetStore
	Outcomes  repo.OutcomeStore
	Incidents repo.IncidentStore
	Keys      middleware.Keys
}

func NewServer(l *zap.Logger, ts repo.TargetStore, os repo.OutcomeStore, is repo.IncidentStore, keys middleware.Keys) *Server {
	return &Server{Logger: l, Targets: ts, Outcomes: os, Incidents: is, Keys: keys}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Use(middleware.RateLimit(120, 60))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAny(s.Keys))
		r.Get("/api/targets", s.handleListTargets)
		r.Get("/api/targets/{name}/stats", s.handleTargetStats)
		r.Get("/api/checks", s.handleRecentChecks)
		r.Get("/api/incidents", s.handleOpenIncidents)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(s.Keys))
		r.Post("/api/incidents/{id}/ack", s.handleAcknowledge)
	})

	return r
}

type targetView struct {
	domain.Target
	LastCheck *domain.CheckOutcome `json:"last_check,omitempty"`
	Incident  *domain.Incident     `json:"incident,omitempty"`
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.List(r.Context())
	if err != nil {
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	views := make([]targetView, 0, len(ts))
	for _, t := range ts {
		v := targetView{Target: t}
		// last check and open incident are best-effort decoration
		v.LastCheck, _ = s.Outcomes.LastByTarget(r.Context(), t.Name)
		v.Incident, _ = s.Incidents.OpenIncident(r.Context(), t.Name)
		views = append(views, v)
	}
	writeJSON(w, views)
}

func (s *Server) handleTargetStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	t, err := s.Targets.GetByName(r.Context(), name)
	if err != nil {
		http.Error(w, "lookup error", http.StatusInternalServerError)
		return
	}
	if t == nil {
		http.Error(w, "unknown target", http.StatusNotFound)
		return
	}

	window := defaultStatsWindow
	if q := r.URL.Query().Get("window"); q != "" {
		d, err := time.ParseDuration(q)
		if err != nil || d <= 0 || d > maxStatsWindow {
			http.Error(w, "bad window", http.StatusBadRequest)
			return
		}
		window = d
	}

	stats, err := s.Outcomes.RecentStats(r.Context(), name, window)
	if err != nil {
		http.Error(w, "stats error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"target": name,
		"window": window.String(),
		"stats":  stats,
	})
}

func (s *Server) handleRecentChecks(w http.ResponseWriter, r *http.Request) {
	limit := defaultChecksLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > maxChecksLimit {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	outs, err := s.Outcomes.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, outs)
}

func (s *Server) handleOpenIncidents(w http.ResponseWriter, r *http.Request) {
	incs, err := s.Incidents.ListOpen(r.Context())
	if err != nil {
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, incs)
}

// handleAcknowledge marks an open incident as acknowledged. It keeps
// escalating; acknowledgement only records that someone is looking at it.
func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Incidents.Acknowledge(r.Context(), id); err != nil {
		http.Error(w, "not an open incident", http.StatusConflict)
		return
	}
	s.Logger.Info("incident_acknowledged", zap.String("incident", id))
	writeJSON(w, map[string]string{"status": "acknowledged"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
