package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lei/pipeline-triage/internal/models"
	"github.com/lei/pipeline-triage/internal/provider"
	"github.com/lei/pipeline-triage/internal/triage"
	"github.com/lei/pipeline-triage/pkg/logger"
)

type fakeSource struct {
	pipeline   *models.PipelineRef
	executions []models.JobExecution
	prs        []models.PullRequest
	prPipeline *models.PipelineRef

	listCalls atomic.Int64
}

func (f *fakeSource) GetPipeline(ctx context.Context, pipelineID int) (*models.PipelineRef, error) {
	if f.pipeline == nil || f.pipeline.ID != pipelineID {
		return nil, provider.ErrPipelineNotFound
	}
	return f.pipeline, nil
}

func (f *fakeSource) ListExecutions(ctx context.Context, pipelineID int) ([]models.JobExecution, error) {
	f.listCalls.Add(1)
	return f.executions, nil
}

func (f *fakeSource) FetchLog(ctx context.Context, executionID int) (string, error) {
	return "--- FAIL: TestSomething", nil
}

func (f *fakeSource) PullRequestsForCommit(ctx context.Context, sha string) ([]models.PullRequest, error) {
	return f.prs, nil
}

func (f *fakeSource) LatestPipelineForBranch(ctx context.Context, branch string) (*models.PipelineRef, error) {
	return f.prPipeline, nil
}

func newTestService(src *fakeSource) *Service {
	log := logger.NewNop()
	consolidator := triage.NewConsolidator(triage.DefaultConfig(), log)
	correlator := triage.NewCorrelator(src, src, src, log)
	return NewService(src, consolidator, correlator, time.Minute, log)
}

func failedExec(id int, name string) models.JobExecution {
	return models.JobExecution{
		ID:        id,
		Name:      name,
		Status:    models.StatusFailed,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Kind:      models.KindStandard,
	}
}

func TestInspectPipeline(t *testing.T) {
	src := &fakeSource{
		pipeline:   &models.PipelineRef{ID: 42, SHA: "abc123"},
		executions: []models.JobExecution{failedExec(1, "unit_tests")},
	}
	svc := newTestService(src)

	report, err := svc.InspectPipeline(context.Background(), 42)
	require.NoError(t, err)
	require.Contains(t, report.Mandatory, "unit_tests")
	assert.Equal(t, triage.JobFailure, report.Mandatory["unit_tests"].Type)
}

func TestInspectPipelineNotFound(t *testing.T) {
	svc := newTestService(&fakeSource{})

	_, err := svc.InspectPipeline(context.Background(), 42)
	assert.ErrorIs(t, err, ErrPipelineNotFound)
}

func TestInspectPipelineCached(t *testing.T) {
	src := &fakeSource{
		pipeline:   &models.PipelineRef{ID: 42, SHA: "abc123"},
		executions: []models.JobExecution{failedExec(1, "unit_tests")},
	}
	svc := newTestService(src)

	first, err := svc.InspectPipeline(context.Background(), 42)
	require.NoError(t, err)
	second, err := svc.InspectPipeline(context.Background(), 42)
	require.NoError(t, err)

	assert.Same(t, first, second, "second inspection replays the memoized report")
	assert.Equal(t, int64(1), src.listCalls.Load())
}

func TestSkippedOnPR(t *testing.T) {
	src := &fakeSource{
		pipeline:   &models.PipelineRef{ID: 42, SHA: "abc123"},
		executions: []models.JobExecution{failedExec(1, "unit_tests")},
		prs:        []models.PullRequest{{Number: 7, SourceBranch: "feature/x"}},
		prPipeline: &models.PipelineRef{ID: 41, WebURL: "https://gitlab.example.com/pipelines/41"},
	}
	svc := newTestService(src)

	result, err := svc.SkippedOnPR(context.Background(), 42)
	require.NoError(t, err)

	// The PR pipeline returns the same fake executions, where unit_tests
	// failed, so nothing was skipped
	assert.Empty(t, result.SkippedJobs)
	assert.Equal(t, "https://gitlab.example.com/pipelines/41", result.PipelineURL)
}

func TestSkippedOnPRMissingJob(t *testing.T) {
	src := &fakeSource{
		pipeline:   &models.PipelineRef{ID: 42, SHA: "abc123"},
		executions: []models.JobExecution{failedExec(1, "unit_tests")},
		prs:        []models.PullRequest{{Number: 7, SourceBranch: "feature/x"}},
		prPipeline: &models.PipelineRef{ID: 41, WebURL: "https://gitlab.example.com/pipelines/41"},
	}
	svc := newTestService(src)

	// Empty the PR pipeline after the mainline inspection is cached
	report, err := svc.InspectPipeline(context.Background(), 42)
	require.NoError(t, err)
	require.Contains(t, report.Mandatory, "unit_tests")
	src.executions = nil

	result, err := svc.SkippedOnPR(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []string{"unit_tests"}, result.SkippedJobs)
}
