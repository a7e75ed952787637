package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lei/pipeline-triage/internal/provider"
	"github.com/lei/pipeline-triage/internal/service"
	"github.com/lei/pipeline-triage/internal/triage"
)

// Handlers contains HTTP handler functions
type Handlers struct {
	service *service.Service
}

// NewHandlers creates a new handlers instance
func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{service: svc}
}

// Health handles health check requests
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := h.service.HealthCheck(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if health["status"] != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}

// GetFailures handles GET /v1/pipelines/{pipeline_id}/failures
func (h *Handlers) GetFailures(w http.ResponseWriter, r *http.Request) {
	logger := GetLogger(r.Context())

	pipelineID, ok := parsePipelineID(w, r)
	if !ok {
		return
	}

	report, err := h.service.InspectPipeline(r.Context(), pipelineID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	query := r.URL.Query()
	search := query.Get("search")
	failureType := query.Get("type")
	stage := query.Get("stage")

	var entries []triage.FinalJobStatus
	switch mandatory := parseBoolParam(query.Get("mandatory")); {
	case mandatory == nil:
		entries = report.AllFailures()
	case *mandatory:
		entries = report.MandatoryFailures()
	default:
		entries = filterExcluded(report)
	}
	entries = FilterFailures(entries, search, failureType, stage)

	if logger != nil {
		logger.Debug("failure report served",
			"pipeline_id", pipelineID,
			"entry_count", len(entries))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"pipeline_id": pipelineID,
		"failures":    entries,
	})
}

// GetSkippedOnPR handles GET /v1/pipelines/{pipeline_id}/skipped-on-pr
func (h *Handlers) GetSkippedOnPR(w http.ResponseWriter, r *http.Request) {
	logger := GetLogger(r.Context())

	pipelineID, ok := parsePipelineID(w, r)
	if !ok {
		return
	}

	result, err := h.service.SkippedOnPR(r.Context(), pipelineID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if logger != nil {
		logger.Debug("skip correlation served",
			"pipeline_id", pipelineID,
			"skipped_count", len(result.SkippedJobs))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"pipeline_id": pipelineID,
		"result":      result,
	})
}

// parsePipelineID extracts and validates the pipeline_id URL parameter
func parsePipelineID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "pipeline_id")
	pipelineID, err := strconv.Atoi(raw)
	if err != nil || pipelineID <= 0 {
		respondError(w, r, http.StatusBadRequest, "invalid pipeline_id")
		return 0, false
	}
	return pipelineID, true
}

// filterExcluded returns only the allow-failure-suppressed entries
func filterExcluded(report *triage.Report) []triage.FinalJobStatus {
	var out []triage.FinalJobStatus
	for _, job := range report.AllFailures() {
		if _, ok := report.Excluded[job.FullName]; ok {
			out = append(out, job)
		}
	}
	return out
}

// handleServiceError maps service errors to HTTP responses
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := GetLogger(r.Context())

	switch {
	case errors.Is(err, service.ErrPipelineNotFound):
		respondError(w, r, http.StatusNotFound, "pipeline not found")
	case errors.Is(err, provider.ErrUnauthorized):
		respondError(w, r, http.StatusBadGateway, "platform authentication failed")
	case errors.Is(err, provider.ErrPlatformUnavailable):
		respondError(w, r, http.StatusBadGateway, "platform temporarily unavailable")
	default:
		if logger != nil {
			logger.Error("internal error", "error", err)
		}
		respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":      message,
		"request_id": GetRequestID(r.Context()),
	})
}
