package provider

import (
	"context"

	"github.com/lei/pipeline-triage/internal/models"
)

// LogFetcher retrieves the raw log of one job execution. An empty string
// with a nil error is a valid result: the platform may legitimately hold
// no log for a job.
type LogFetcher interface {
	FetchLog(ctx context.Context, executionID int) (string, error)
}

// PipelineSource abstracts the CI platform's pipeline read surface.
// Pagination is resolved inside the implementation; callers always see
// the complete execution list, standard jobs and bridges together.
type PipelineSource interface {
	LogFetcher

	// GetPipeline resolves a pipeline id to its commit SHA and URL
	GetPipeline(ctx context.Context, pipelineID int) (*models.PipelineRef, error)

	// ListExecutions returns every execution of the pipeline, including
	// retried attempts and bridge jobs
	ListExecutions(ctx context.Context, pipelineID int) ([]models.JobExecution, error)
}

// PullRequestResolver finds the pull requests whose head currently
// contains a commit
type PullRequestResolver interface {
	PullRequestsForCommit(ctx context.Context, sha string) ([]models.PullRequest, error)
}

// PipelineResolver finds the most recent pipeline run for a branch.
// A nil ref with a nil error means no pipeline exists for the branch.
type PipelineResolver interface {
	LatestPipelineForBranch(ctx context.Context, branch string) (*models.PipelineRef, error)
}
