package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"hidrocl-platform/internal/models"
	"hidrocl-platform/internal/repository"
	"hidrocl-platform/internal/services"
	"hidrocl-platform/pkg/logging"
	"hidrocl-platform/pkg/metrics"
)

// StatusHandler handles the extraction status API endpoints
type StatusHandler struct {
	statusService *services.StatusService
	statsService  *services.StatisticsService
	logger        *logging.StructuredLogger
	metrics       *metrics.Collector
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(
	statusService *services.StatusService,
	statsService *services.StatisticsService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *StatusHandler {
	return &StatusHandler{
		statusService: statusService,
		statsService:  statsService,
		logger:        logger,
		metrics:       metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// GetVariables handles GET /api/variables
func (h *StatusHandler) GetVariables(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/variables").Observe(time.Since(startTime).Seconds())
	}()

	statuses := h.statusService.VariableStatuses(ctx)

	h.metrics.RecordAPIRequest("/api/variables", "GET", "200")
	h.sendJSON(w, statuses, http.StatusOK)
}

// GetVariableStats handles GET /api/variables/{variable}/stats
func (h *StatusHandler) GetVariableStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/variables/stats").Observe(time.Since(startTime).Seconds())
	}()

	variable := mux.Vars(r)["variable"]
	store, ok := h.statusService.Store(variable)
	if !ok {
		h.sendError(w, r, "unknown variable: "+variable, http.StatusNotFound)
		return
	}

	summaries, err := h.statsService.Summarize(ctx, variable, store)
	if err != nil {
		h.logger.Error(ctx, "[API_VARIABLE_STATS_ERROR] Failed to summarize table", logging.Fields{
			"variable": variable,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/variables/stats")
		h.sendError(w, r, "failed to compute statistics", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/variables/stats", "GET", "200")
	h.sendJSON(w, summaries, http.StatusOK)
}

// GetRuns handles GET /api/runs
func (h *StatusHandler) GetRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/runs").Observe(time.Since(startTime).Seconds())
	}()

	page, limit := parsePagination(r)
	filter := repository.RunFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if product := r.URL.Query().Get("product"); product != "" {
		filter.Product = &product
	}

	runs, total, err := h.statusService.GetRuns(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_RUNS_ERROR] Failed to list runs", logging.Fields{
			"filter": filter,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/runs")
		h.sendError(w, r, "failed to retrieve runs", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/runs", "GET", "200")
	h.sendJSON(w, paginate(runs, total, page, limit), http.StatusOK)
}

// GetSceneEvents handles GET /api/events
func (h *StatusHandler) GetSceneEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/events").Observe(time.Since(startTime).Seconds())
	}()

	page, limit := parsePagination(r)
	filter := repository.SceneEventFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if runIDStr := r.URL.Query().Get("run_id"); runIDStr != "" {
		runID, err := strconv.ParseInt(runIDStr, 10, 64)
		if err != nil {
			h.sendError(w, r, "invalid run_id, expected integer", http.StatusBadRequest)
			return
		}
		filter.RunID = &runID
	}
	if sceneID := r.URL.Query().Get("scene_id"); sceneID != "" {
		filter.SceneID = &sceneID
	}
	if outcomeStr := r.URL.Query().Get("outcome"); outcomeStr != "" {
		outcome := models.SceneEventOutcome(outcomeStr)
		filter.Outcome = &outcome
	}

	events, total, err := h.statusService.GetSceneEvents(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_EVENTS_ERROR] Failed to list scene events", logging.Fields{
			"filter": filter,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/events")
		h.sendError(w, r, "failed to retrieve scene events", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/events", "GET", "200")
	h.sendJSON(w, paginate(events, total, page, limit), http.StatusOK)
}

// HealthCheck handles GET /health
func (h *StatusHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]interface{}{
		"status":          "healthy",
		"journal_enabled": h.statusService.JournalEnabled(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.statusService.HealthCheck(ctx); err != nil {
		status["status"] = "degraded"
		status["journal_error"] = err.Error()
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.sendJSON(w, status, http.StatusOK)
}

func parsePagination(r *http.Request) (page, limit int) {
	page = 1
	limit = 100

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}
	return page, limit
}

func paginate(data interface{}, total, page, limit int) PaginatedResponse {
	return PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}
}

// sendJSON sends a JSON response
func (h *StatusHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *StatusHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all status API routes
func (h *StatusHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/variables", h.GetVariables).Methods("GET")
	router.HandleFunc("/api/variables/{variable}/stats", h.GetVariableStats).Methods("GET")
	router.HandleFunc("/api/runs", h.GetRuns).Methods("GET")
	router.HandleFunc("/api/events", h.GetSceneEvents).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
