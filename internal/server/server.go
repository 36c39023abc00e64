// Package server exposes the pipeline and the incident store over a thin
// JSON API. No orchestration logic lives here.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"

	"github.com/threatwire/threatwire/internal/database"
	"github.com/threatwire/threatwire/internal/pipeline"
	"github.com/threatwire/threatwire/internal/report"
)

var md = goldmark.New()

// Runner is the pipeline surface the API exposes.
type Runner interface {
	RunIngestion(ctx context.Context, sourceLabel string) (*pipeline.Stats, error)
	AnalyzeBatch(ctx context.Context, limit int) (int, error)
}

// Server is the HTTP API server.
type Server struct {
	db     *database.DB
	runner Runner
	router chi.Router
}

// New creates a Server over the given store and pipeline.
func New(db *database.DB, runner Runner) *Server {
	s := &Server{db: db, runner: runner, router: chi.NewRouter()}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Get("/api/incidents", s.handleListIncidents)
	s.router.Get("/api/incidents/{id}", s.handleGetIncident)
	s.router.Get("/api/incidents/{id}/report", s.handleIncidentReport)
	s.router.Get("/api/runs", s.handleListRuns)
	s.router.Post("/api/ingest", s.handleIngest)
	s.router.Post("/api/analyze", s.handleAnalyze)
}

type listResponse struct {
	Incidents []incidentJSON `json:"incidents"`
	Total     int            `json:"total"`
	Limit     int            `json:"limit"`
	Offset    int            `json:"offset"`
}

type incidentJSON struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description *string         `json:"description,omitempty"`
	URL         string          `json:"url"`
	Source      string          `json:"source"`
	PublishedAt string          `json:"published_at"`
	Status      string          `json:"status"`
	Severity    *string         `json:"severity,omitempty"`
	AttackType  *string         `json:"attack_type,omitempty"`
	RiskScore   *int            `json:"risk_score,omitempty"`
	Region      *string         `json:"region,omitempty"`
	Analysis    json.RawMessage `json:"analysis,omitempty"`
}

func toIncidentJSON(inc database.Incident) incidentJSON {
	out := incidentJSON{
		ID:          inc.ID,
		Title:       inc.Title,
		Description: inc.Description,
		URL:         inc.URL,
		Source:      inc.Source,
		PublishedAt: inc.PublishedAt,
		Status:      inc.Status,
		Severity:    inc.Severity,
		AttackType:  inc.AttackType,
		RiskScore:   inc.RiskScore,
		Region:      inc.Region,
	}
	if inc.Analysis != nil {
		out.Analysis = json.RawMessage(*inc.Analysis)
	}
	return out
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := database.ListOptions{
		Limit:      intParam(q.Get("limit"), 0),
		Offset:     intParam(q.Get("offset"), 0),
		Severity:   q.Get("severity"),
		AttackType: q.Get("attack_type"),
		Query:      q.Get("q"),
		Date:       q.Get("date"),
	}

	incidents, total, err := s.db.ListIncidents(opts)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "listing incidents: %v", err)
		return
	}

	resp := listResponse{
		Incidents: make([]incidentJSON, 0, len(incidents)),
		Total:     total,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	}
	for _, inc := range incidents {
		resp.Incidents = append(resp.Incidents, toIncidentJSON(inc))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	inc, ok := s.incidentFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toIncidentJSON(*inc))
}

func (s *Server) handleIncidentReport(w http.ResponseWriter, r *http.Request) {
	inc, ok := s.incidentFromPath(w, r)
	if !ok {
		return
	}

	markdown, err := report.Compose(inc)
	if err != nil {
		httpError(w, http.StatusNotFound, "no report available: %v", err)
		return
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		httpError(w, http.StatusInternalServerError, "rendering report: %v", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r.URL.Query().Get("limit"), 20)
	runs, err := s.db.ListRuns(limit)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "listing runs: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
	}
	if r.Body != nil {
		// Body is optional; ignore decode errors from an empty body.
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
	}

	stats, err := s.runner.RunIngestion(r.Context(), req.Source)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "ingestion failed: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"items_fetched":   stats.ItemsFetched,
		"items_new":       stats.ItemsNew,
		"items_duplicate": stats.ItemsDuplicate,
		"items_failed":    stats.ItemsFailed,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r.URL.Query().Get("limit"), 3)
	n, err := s.runner.AnalyzeBatch(r.Context(), limit)
	if err != nil {
		// Partial progress still happened; report it with the error.
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"analyzed": n,
			"error":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"analyzed": n})
}

func (s *Server) incidentFromPath(w http.ResponseWriter, r *http.Request) (*database.Incident, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid incident id")
		return nil, false
	}
	inc, err := s.db.GetIncident(id)
	if errors.Is(err, database.ErrNotFound) {
		httpError(w, http.StatusNotFound, "incident %d not found", id)
		return nil, false
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "loading incident: %v", err)
		return nil, false
	}
	return inc, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func httpError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func intParam(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
