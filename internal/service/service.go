package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/lei/pipeline-triage/internal/models"
	"github.com/lei/pipeline-triage/internal/provider"
	"github.com/lei/pipeline-triage/internal/triage"
	"github.com/lei/pipeline-triage/pkg/logger"
)

var (
	// ErrPipelineNotFound indicates the requested pipeline doesn't exist
	ErrPipelineNotFound = errors.New("pipeline not found")
)

// Service coordinates the API layer with the platform source and the
// triage engine. Inspections are memoized per pipeline id for a short
// TTL since the failure and skip endpoints re-read the same report.
type Service struct {
	source       provider.PipelineSource
	consolidator *triage.Consolidator
	correlator   *triage.Correlator
	reports      *cache.Cache
	logger       *logger.Logger
}

// inspection bundles a pipeline's report with the pipeline itself so the
// skip endpoint doesn't re-resolve the commit SHA.
type inspection struct {
	pipeline *models.PipelineRef
	report   *triage.Report
}

// NewService creates a new service instance.
func NewService(source provider.PipelineSource, consolidator *triage.Consolidator, correlator *triage.Correlator, cacheTTL time.Duration, log *logger.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	return &Service{
		source:       source,
		consolidator: consolidator,
		correlator:   correlator,
		reports:      cache.New(cacheTTL, 2*cacheTTL),
		logger:       log,
	}
}

// getLogger retrieves logger from context or falls back to service logger
func (s *Service) getLogger(ctx context.Context) *logger.Logger {
	if ctxLogger := logger.FromContext(ctx); ctxLogger != nil {
		return ctxLogger
	}
	return s.logger
}

// InspectPipeline builds the failure report for a pipeline.
func (s *Service) InspectPipeline(ctx context.Context, pipelineID int) (*triage.Report, error) {
	insp, err := s.inspect(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	return insp.report, nil
}

// SkippedOnPR correlates the pipeline's mandatory failures against the
// latest pipeline of the pull request containing its commit.
func (s *Service) SkippedOnPR(ctx context.Context, pipelineID int) (*triage.SkipResult, error) {
	logger := s.getLogger(ctx)

	insp, err := s.inspect(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	result, err := s.correlator.FindSkipped(ctx, insp.report, insp.pipeline.SHA)
	if err != nil {
		logger.Error("service: skip correlation failed",
			"pipeline_id", pipelineID,
			"error", err)
		return nil, fmt.Errorf("correlate pipeline %d: %w", pipelineID, err)
	}

	logger.Info("service: skip correlation completed",
		"pipeline_id", pipelineID,
		"skipped_count", len(result.SkippedJobs))
	return result, nil
}

// inspect runs (or replays) one pipeline inspection.
func (s *Service) inspect(ctx context.Context, pipelineID int) (*inspection, error) {
	logger := s.getLogger(ctx)
	key := strconv.Itoa(pipelineID)

	if cached, ok := s.reports.Get(key); ok {
		logger.Debug("service: inspection cache hit", "pipeline_id", pipelineID)
		return cached.(*inspection), nil
	}

	pipeline, err := s.source.GetPipeline(ctx, pipelineID)
	if err != nil {
		if errors.Is(err, provider.ErrPipelineNotFound) {
			logger.Debug("service: pipeline not found", "pipeline_id", pipelineID)
			return nil, ErrPipelineNotFound
		}
		logger.Error("service: get pipeline failed", "pipeline_id", pipelineID, "error", err)
		return nil, fmt.Errorf("get pipeline %d: %w", pipelineID, err)
	}

	execs, err := s.source.ListExecutions(ctx, pipelineID)
	if err != nil {
		logger.Error("service: list executions failed", "pipeline_id", pipelineID, "error", err)
		return nil, fmt.Errorf("list executions of pipeline %d: %w", pipelineID, err)
	}

	report, err := s.consolidator.BuildReport(ctx, execs, s.source)
	if err != nil {
		logger.Error("service: build report failed", "pipeline_id", pipelineID, "error", err)
		return nil, fmt.Errorf("build report for pipeline %d: %w", pipelineID, err)
	}

	logger.Info("service: pipeline inspected",
		"pipeline_id", pipelineID,
		"sha", pipeline.SHA,
		"mandatory_failures", len(report.Mandatory),
		"excluded_failures", len(report.Excluded))

	insp := &inspection{pipeline: pipeline, report: report}
	s.reports.SetDefault(key, insp)
	return insp, nil
}

// HealthCheck performs health checks on the service and the platform
func (s *Service) HealthCheck(ctx context.Context) map[string]interface{} {
	logger := s.getLogger(ctx)

	health := map[string]interface{}{
		"status":  "healthy",
		"service": "pipeline-triage",
		"checks":  make(map[string]interface{}),
	}
	checks := health["checks"].(map[string]interface{})

	checker, ok := s.source.(interface{ HealthCheck(context.Context) error })
	if !ok {
		checks["platform"] = map[string]interface{}{"status": "unknown"}
		return health
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := checker.HealthCheck(healthCtx); err != nil {
		logger.Warn("platform health check failed", "error", err)
		checks["platform"] = map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		}
		health["status"] = "degraded"
	} else {
		checks["platform"] = map[string]interface{}{"status": "healthy"}
	}

	logger.Debug("health check completed", "status", health["status"])
	return health
}
