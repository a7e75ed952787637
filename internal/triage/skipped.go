package triage

import (
	"context"
	"fmt"

	"github.com/lei/pipeline-triage/internal/models"
	"github.com/lei/pipeline-triage/internal/provider"
	"github.com/lei/pipeline-triage/pkg/logger"
)

// SkipResult lists the mandatory failures whose counterpart never ran, or
// never finished, on the merge-request pipeline that preceded the merge.
type SkipResult struct {
	SkippedJobs []string `json:"skipped_jobs"`
	PipelineURL string   `json:"pr_pipeline_url"`
}

// Correlator cross-references a failure report against the pipeline of
// the pull request that introduced the commit.
type Correlator struct {
	prs       provider.PullRequestResolver
	pipelines provider.PipelineResolver
	source    provider.PipelineSource
	logger    *logger.Logger
}

// NewCorrelator creates a correlator over the given resolvers.
func NewCorrelator(prs provider.PullRequestResolver, pipelines provider.PipelineResolver, source provider.PipelineSource, log *logger.Logger) *Correlator {
	return &Correlator{prs: prs, pipelines: pipelines, source: source, logger: log}
}

// FindSkipped returns the mandatory failed jobs of the report that were
// skipped on the pull request containing sha. Zero or multiple pull
// requests, or a branch without any pipeline, yield an empty result with
// a warning: ambiguity is never guessed at. Matching is case-sensitive
// on the untruncated full name so truncation collisions cannot hide a
// skip. A job absent from the pull-request pipeline, or whose latest
// attempt never reached a terminal outcome, counts as skipped.
func (c *Correlator) FindSkipped(ctx context.Context, report *Report, sha string) (*SkipResult, error) {
	none := &SkipResult{SkippedJobs: []string{}}

	prs, err := c.prs.PullRequestsForCommit(ctx, sha)
	if err != nil {
		return nil, fmt.Errorf("resolve pull requests for %s: %w", sha, err)
	}
	if len(prs) == 0 {
		return none, nil
	}
	if len(prs) > 1 {
		numbers := make([]int, len(prs))
		for i, pr := range prs {
			numbers[i] = pr.Number
		}
		c.logger.Warn("multiple pull requests found for commit, skipping correlation",
			"sha", sha,
			"pull_requests", numbers)
		return none, nil
	}

	branch := prs[0].SourceBranch
	prPipeline, err := c.pipelines.LatestPipelineForBranch(ctx, branch)
	if err != nil {
		return nil, fmt.Errorf("resolve latest pipeline for %s: %w", branch, err)
	}
	if prPipeline == nil {
		c.logger.Warn("no pipeline found for pull request branch", "branch", branch)
		return none, nil
	}

	execs, err := c.source.ListExecutions(ctx, prPipeline.ID)
	if err != nil {
		return nil, fmt.Errorf("list executions of pipeline %d: %w", prPipeline.ID, err)
	}

	result := &SkipResult{
		SkippedJobs: []string{},
		PipelineURL: prPipeline.WebURL,
	}
	canonical := canonicalByName(execs)
	for _, failed := range report.MandatoryFailures() {
		exec, ok := canonical[failed.FullName]
		if !ok || !exec.Status.Terminal() {
			result.SkippedJobs = append(result.SkippedJobs, failed.FullName)
		}
	}
	return result, nil
}

// canonicalByName resolves retried attempts to the latest one per job
// name. The pull-request pipeline carries retried attempts just like the
// inspected one, so a stale terminal attempt must never answer for a
// retry that is still in flight.
func canonicalByName(execs []models.JobExecution) map[string]models.JobExecution {
	out := make(map[string]models.JobExecution)
	for _, group := range groupExecutions(execs) {
		out[group.name] = group.canonical()
	}
	return out
}
