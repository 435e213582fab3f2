package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"hidrocl-platform/internal/models"
	"hidrocl-platform/internal/repository"
	"hidrocl-platform/internal/services"
	"hidrocl-platform/pkg/logging"
	"hidrocl-platform/pkg/metrics"
)

var (
	collectorOnce sync.Once
	collector     *metrics.Collector
)

func testCollector() *metrics.Collector {
	collectorOnce.Do(func() {
		collector = metrics.NewCollector("handlers_test")
	})
	return collector
}

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	store, err := repository.OpenOrCreateSeriesStore(
		filepath.Join(t.TempDir(), "ndvi.csv"), "modis_id", []string{"1001", "1002"})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Append("A2023100", "2023-04-10", []string{"42", "NA"}); err != nil {
		t.Fatal(err)
	}

	logger := logging.NewStructuredLogger("test", "test", logging.FatalLevel)
	statusService := services.NewStatusService(
		repository.NewNoopJournal(),
		map[string]*repository.SeriesStore{"ndvi": store},
		logger,
		testCollector(),
	)
	statsService := services.NewStatisticsService(logger, testCollector())

	handler := NewStatusHandler(statusService, statsService, logger, testCollector())
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func TestGetVariables(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/variables", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var statuses []*models.VariableStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &statuses); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("statuses = %d, want 1", len(statuses))
	}
	s := statuses[0]
	if s.Variable != "ndvi" || s.RowCount != 1 || s.Catchments != 2 {
		t.Errorf("status = %+v", s)
	}
	if s.LatestScene != "A2023100" || s.LatestDate != "2023-04-10" {
		t.Errorf("latest = %q %q", s.LatestScene, s.LatestDate)
	}
}

func TestGetVariableStats(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/variables/ndvi/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var summaries []*models.CatchmentSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// 1002 is all-missing and omitted.
	if len(summaries) != 1 || summaries[0].CatchmentID != "1001" || summaries[0].Mean != 42 {
		t.Errorf("summaries = %+v", summaries)
	}
}

func TestGetVariableStatsUnknownVariable(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/variables/nope/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if errResp.Code != http.StatusNotFound {
		t.Errorf("error code = %d", errResp.Code)
	}
}

func TestGetRunsWithNoopJournal(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/runs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp PaginatedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 0 {
		t.Errorf("Total = %d, want 0", resp.Total)
	}
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var status map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status["status"] != "healthy" {
		t.Errorf("status = %v", status["status"])
	}
	if status["journal_enabled"] != false {
		t.Errorf("journal_enabled = %v, want false", status["journal_enabled"])
	}
}
