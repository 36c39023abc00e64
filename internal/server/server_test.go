package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/threatwire/threatwire/internal/analysis"
	"github.com/threatwire/threatwire/internal/database"
	"github.com/threatwire/threatwire/internal/pipeline"
)

type fakeRunner struct {
	stats    *pipeline.Stats
	analyzed int
	err      error
}

func (f *fakeRunner) RunIngestion(ctx context.Context, sourceLabel string) (*pipeline.Stats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stats, nil
}

func (f *fakeRunner) AnalyzeBatch(ctx context.Context, limit int) (int, error) {
	return f.analyzed, f.err
}

func testServer(t *testing.T, runner Runner) (*Server, *database.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if runner == nil {
		runner = &fakeRunner{stats: &pipeline.Stats{}}
	}
	return New(db, runner), db
}

func seedIncident(t *testing.T, db *database.DB) *database.Incident {
	t.Helper()
	inc, err := db.InsertIncident(database.NewIncident{
		Title:       "Data broker breach",
		URL:         "https://example.com/breach",
		Source:      "Test",
		PublishedAt: database.FormatTime(time.Now()),
		Fingerprint: "fp-breach",
	})
	if err != nil {
		t.Fatalf("seed incident: %v", err)
	}
	return inc
}

func TestListIncidentsEndpoint(t *testing.T) {
	s, db := testServer(t, nil)
	seedIncident(t, db)

	req := httptest.NewRequest("GET", "/api/incidents?limit=10", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Incidents []map[string]any `json:"incidents"`
		Total     int              `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Total != 1 || len(resp.Incidents) != 1 {
		t.Errorf("expected 1 incident, got total=%d len=%d", resp.Total, len(resp.Incidents))
	}
	if resp.Incidents[0]["title"] != "Data broker breach" {
		t.Errorf("unexpected title %v", resp.Incidents[0]["title"])
	}
}

func TestGetIncidentEndpoint(t *testing.T) {
	s, db := testServer(t, nil)
	inc := seedIncident(t, db)

	req := httptest.NewRequest("GET", "/api/incidents/1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got map[string]any
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got["status"] != database.StatusPending {
		t.Errorf("expected pending status, got %v", got["status"])
	}
	if int64(got["id"].(float64)) != inc.ID {
		t.Errorf("unexpected id %v", got["id"])
	}
}

func TestGetIncidentNotFound(t *testing.T) {
	s, _ := testServer(t, nil)

	req := httptest.NewRequest("GET", "/api/incidents/999", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestIncidentReportEndpoint(t *testing.T) {
	s, db := testServer(t, nil)
	inc := seedIncident(t, db)

	p := &analysis.Payload{ExecutiveSummary: "A serious breach."}
	p.Normalize(inc.Title)
	data, _ := json.Marshal(p)
	if _, err := db.UpdateAnalysis(inc.ID, string(data), nil, nil, nil); err != nil {
		t.Fatalf("UpdateAnalysis: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/incidents/1/report", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected HTML content type, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "A serious breach.") {
		t.Error("expected rendered report body")
	}
}

func TestIncidentReportWithoutAnalysis(t *testing.T) {
	s, db := testServer(t, nil)
	seedIncident(t, db)

	req := httptest.NewRequest("GET", "/api/incidents/1/report", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for pending incident, got %d", rec.Code)
	}
}

func TestIngestEndpoint(t *testing.T) {
	runner := &fakeRunner{stats: &pipeline.Stats{ItemsFetched: 5, ItemsNew: 3, ItemsDuplicate: 2}}
	s, _ := testServer(t, runner)

	req := httptest.NewRequest("POST", "/api/ingest", strings.NewReader(`{"source":"manual"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got map[string]int
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got["items_new"] != 3 || got["items_duplicate"] != 2 {
		t.Errorf("unexpected stats %v", got)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	s, _ := testServer(t, &fakeRunner{analyzed: 2})

	req := httptest.NewRequest("POST", "/api/analyze?limit=5", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got map[string]int
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got["analyzed"] != 2 {
		t.Errorf("expected analyzed=2, got %v", got)
	}
}

func TestRunsEndpoint(t *testing.T) {
	s, db := testServer(t, nil)
	if _, err := db.CreateRun(nil); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/runs", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "running") {
		t.Error("expected run log in response")
	}
}
