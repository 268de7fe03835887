package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/notsopreety/uptime-monitor/internal/domain"
	"github.com/notsopreety/uptime-monitor/internal/repo"
	"github.com/notsopreety/uptime-monitor/internal/scheduler"
	"github.com/notsopreety/uptime-monitor/internal/stats"
)

const defaultStatsWindow = 24 * time.Hour

type addPayload struct {
	URL                  string `json:"url"`
	CheckIntervalSeconds int    `json:"check_interval_seconds"`
	Active               *bool  `json:"active"`
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var p addPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if !validURL(p.URL) {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	if p.CheckIntervalSeconds == 0 {
		p.CheckIntervalSeconds = 300
	}
	if p.CheckIntervalSeconds < domain.MinCheckIntervalSeconds {
		writeError(w, http.StatusBadRequest, "check_interval_seconds must be at least 60")
		return
	}
	active := true
	if p.Active != nil {
		active = *p.Active
	}

	t := &domain.Target{
		URL:                  p.URL,
		CheckIntervalSeconds: p.CheckIntervalSeconds,
		Active:               active,
		CreatedAt:            time.Now().UTC(),
	}
	if err := s.Targets.Add(r.Context(), t); err != nil {
		s.Logger.Warn("add_target_failed", zap.String("url", p.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not add target")
		return
	}

	s.Logger.Info("target_added",
		zap.String("target_id", string(t.ID)),
		zap.String("url", t.URL),
		zap.Int("interval_s", t.CheckIntervalSeconds),
		zap.Bool("active", t.Active),
	)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTarget(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type updatePayload struct {
	CheckIntervalSeconds *int  `json:"check_interval_seconds"`
	Active               *bool `json:"active"`
}

func (s *Server) handleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTarget(w, r)
	if !ok {
		return
	}
	var p updatePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if p.CheckIntervalSeconds != nil {
		if *p.CheckIntervalSeconds < domain.MinCheckIntervalSeconds {
			writeError(w, http.StatusBadRequest, "check_interval_seconds must be at least 60")
			return
		}
		t.CheckIntervalSeconds = *p.CheckIntervalSeconds
	}
	if p.Active != nil {
		t.Active = *p.Active
	}
	if err := s.Targets.Update(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, "could not update target")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// targetStats mirrors the aggregator's "no data" as JSON nulls.
type targetStats struct {
	Window            string          `json:"window"`
	UptimePercent     *int            `json:"uptime_percent"`
	AvgResponseTimeMS *int64          `json:"avg_response_time_ms"`
	Breakdown         stats.Breakdown `json:"breakdown"`
}

func (s *Server) handleTargetStats(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTarget(w, r)
	if !ok {
		return
	}
	window := defaultStatsWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "window must be a positive duration like 1h or 24h")
			return
		}
		window = d
	}

	now := time.Now().UTC()
	results, err := s.Results.ListByTarget(r.Context(), t.ID, now.Add(-window))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read check history")
		return
	}

	out := targetStats{
		Window:    window.String(),
		Breakdown: stats.StatusBreakdown(results, now, window),
	}
	if pct, ok := stats.UptimePercent(results, now, window); ok {
		out.UptimePercent = &pct
	}
	if avg, ok := stats.AverageResponseTime(results, stats.DefaultAverageWindow); ok {
		out.AvgResponseTimeMS = &avg
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTargetHistory(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTarget(w, r)
	if !ok {
		return
	}
	since := time.Now().UTC().Add(-defaultStatsWindow)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = parsed
	}
	results, err := s.Results.ListByTarget(r.Context(), t.ID, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read check history")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleTargetHourly(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTarget(w, r)
	if !ok {
		return
	}
	now := time.Now().UTC()
	results, err := s.Results.ListByTarget(r.Context(), t.ID, now.Add(-stats.HourlyBucketCount*time.Hour))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read check history")
		return
	}
	writeJSON(w, http.StatusOK, stats.HourlyBuckets(results, now))
}

func (s *Server) handleRunChecks(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Runner.RunCycle(r.Context())
	switch {
	case errors.Is(err, scheduler.ErrCycleInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.Logger.Warn("manual_cycle_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "check cycle failed: "+err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]domain.CycleSummary{"summary": summary})
	}
}

func (s *Server) lookupTarget(w http.ResponseWriter, r *http.Request) (*domain.Target, bool) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	t, err := s.Targets.Get(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown target")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup error")
		return nil, false
	}
	return t, true
}
