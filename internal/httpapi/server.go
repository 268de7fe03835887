package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/notsopreety/uptime-monitor/internal/repo"
	"github.com/notsopreety/uptime-monitor/internal/scheduler"
)

// Server is the thin HTTP glue around the engine: target registration,
// stats reads and the manual cycle trigger. No auth, no UI.
type Server struct {
	Logger  *zap.Logger
	Targets repo.TargetStore
	Results repo.ResultStore
	Runner  *scheduler.Runner
}

func NewServer(l *zap.Logger, ts repo.TargetStore, rs repo.ResultStore, runner *scheduler.Runner) *Server {
	return &Server{Logger: l, Targets: ts, Results: rs, Runner: runner}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	// AllowAll also answers OPTIONS preflights with an empty 200.
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/targets", s.handleListTargets)
		r.Post("/targets", s.handleAddTarget)
		r.Get("/targets/{id}", s.handleGetTarget)
		r.Patch("/targets/{id}", s.handleUpdateTarget)
		r.Get("/targets/{id}/stats", s.handleTargetStats)
		r.Get("/targets/{id}/history", s.handleTargetHistory)
		r.Get("/targets/{id}/hourly", s.handleTargetHourly)
		r.Post("/checks/run", s.handleRunChecks)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func validURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
