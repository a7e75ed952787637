// Package gitlab implements the provider contracts against the GitLab
// API. It resolves pagination, applies a client-side rate limit and maps
// platform payloads to the inspector's models.
package gitlab

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xanzy/go-gitlab"
	"golang.org/x/time/rate"

	"github.com/lei/pipeline-triage/internal/models"
	"github.com/lei/pipeline-triage/pkg/logger"
)

const perPage = 100

// Config contains GitLab connection settings
type Config struct {
	// BaseURL is the GitLab instance API endpoint
	BaseURL string

	// Token is a read-scoped access token
	Token string

	// ProjectID is the numeric id or "group/project" path of the project
	ProjectID string

	// RequestTimeout bounds every single API call
	RequestTimeout time.Duration

	// RequestsPerSecond caps the call rate against the API; zero disables
	// the limiter
	RequestsPerSecond float64
}

// Source implements PipelineSource, PullRequestResolver and
// PipelineResolver for one GitLab project.
type Source struct {
	client    *gitlab.Client
	projectID string
	limiter   *rate.Limiter
	logger    *logger.Logger
}

// NewSource creates a GitLab source for the configured project.
func NewSource(cfg *Config, log *logger.Logger) (*Source, error) {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client, err := gitlab.NewClient(cfg.Token,
		gitlab.WithBaseURL(cfg.BaseURL),
		gitlab.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("create gitlab client: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Source{
		client:    client,
		projectID: cfg.ProjectID,
		limiter:   limiter,
		logger:    log,
	}, nil
}

// wait blocks until the rate limiter admits the next API call
func (s *Source) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// GetPipeline resolves a pipeline id to its commit SHA and URL.
func (s *Source) GetPipeline(ctx context.Context, pipelineID int) (*models.PipelineRef, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	pipeline, resp, err := s.client.Pipelines.GetPipeline(s.projectID, pipelineID, gitlab.WithContext(ctx))
	if err != nil {
		return nil, mapError(resp, fmt.Errorf("get pipeline %d: %w", pipelineID, err))
	}

	return mapPipeline(pipeline), nil
}

// ListExecutions returns every execution of the pipeline: standard jobs
// including retried attempts, plus bridge jobs, across all pages.
func (s *Source) ListExecutions(ctx context.Context, pipelineID int) ([]models.JobExecution, error) {
	logger := s.logger

	var execs []models.JobExecution

	opts := &gitlab.ListJobsOptions{
		ListOptions:    gitlab.ListOptions{PerPage: perPage},
		IncludeRetried: gitlab.Ptr(true),
	}
	for {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		jobs, resp, err := s.client.Jobs.ListPipelineJobs(s.projectID, pipelineID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, mapError(resp, fmt.Errorf("list jobs of pipeline %d: %w", pipelineID, err))
		}
		for _, job := range jobs {
			execs = append(execs, mapJob(job))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	// Bridges can fail the pipeline too, so they join the execution list
	bridgeOpts := &gitlab.ListJobsOptions{
		ListOptions: gitlab.ListOptions{PerPage: perPage},
	}
	for {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		bridges, resp, err := s.client.Jobs.ListPipelineBridges(s.projectID, pipelineID, bridgeOpts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, mapError(resp, fmt.Errorf("list bridges of pipeline %d: %w", pipelineID, err))
		}
		for _, bridge := range bridges {
			execs = append(execs, mapBridge(bridge))
		}
		if resp.NextPage == 0 {
			break
		}
		bridgeOpts.Page = resp.NextPage
	}

	logger.Debug("provider: listed pipeline executions",
		"pipeline_id", pipelineID,
		"count", len(execs))

	return execs, nil
}

// FetchLog retrieves the raw trace of one job. A trace the platform no
// longer holds is an empty log, not an error.
func (s *Source) FetchLog(ctx context.Context, executionID int) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}

	reader, resp, err := s.client.Jobs.GetTraceFile(s.projectID, executionID, gitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", mapError(resp, fmt.Errorf("get trace of job %d: %w", executionID, err))
	}

	trace, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read trace of job %d: %w", executionID, err)
	}
	return string(trace), nil
}

// PullRequestsForCommit lists the merge requests containing the commit.
func (s *Source) PullRequestsForCommit(ctx context.Context, sha string) ([]models.PullRequest, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	mrs, resp, err := s.client.Commits.ListMergeRequestsByCommit(s.projectID, sha, gitlab.WithContext(ctx))
	if err != nil {
		return nil, mapError(resp, fmt.Errorf("list merge requests for commit %s: %w", sha, err))
	}

	prs := make([]models.PullRequest, 0, len(mrs))
	for _, mr := range mrs {
		prs = append(prs, models.PullRequest{
			Number:       mr.IID,
			SourceBranch: mr.SourceBranch,
			WebURL:       mr.WebURL,
		})
	}
	return prs, nil
}

// LatestPipelineForBranch returns the most recent pipeline run for the
// branch, or nil when the branch never ran one.
func (s *Source) LatestPipelineForBranch(ctx context.Context, branch string) (*models.PipelineRef, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	opts := &gitlab.ListProjectPipelinesOptions{
		ListOptions: gitlab.ListOptions{PerPage: 1},
		Ref:         gitlab.Ptr(branch),
		OrderBy:     gitlab.Ptr("id"),
		Sort:        gitlab.Ptr("desc"),
	}
	pipelines, resp, err := s.client.Pipelines.ListProjectPipelines(s.projectID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, mapError(resp, fmt.Errorf("list pipelines of branch %s: %w", branch, err))
	}
	if len(pipelines) == 0 {
		return nil, nil
	}
	return mapPipelineInfo(pipelines[0]), nil
}

// HealthCheck verifies the project is reachable with the configured
// credentials.
func (s *Source) HealthCheck(ctx context.Context) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	_, resp, err := s.client.Projects.GetProject(s.projectID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return mapError(resp, fmt.Errorf("get project %s: %w", s.projectID, err))
	}
	return nil
}
