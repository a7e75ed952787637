package gitlab

import (
	"net/http"
	"time"

	"github.com/xanzy/go-gitlab"

	"github.com/lei/pipeline-triage/internal/models"
	"github.com/lei/pipeline-triage/internal/provider"
)

// mapJob converts a GitLab job to a standard execution
func mapJob(job *gitlab.Job) models.JobExecution {
	return models.JobExecution{
		ID:            job.ID,
		Name:          job.Name,
		Stage:         job.Stage,
		Status:        models.JobStatus(job.Status),
		Tags:          job.TagList,
		AllowFailure:  job.AllowFailure,
		WebURL:        job.WebURL,
		CreatedAt:     derefTime(job.CreatedAt),
		FailureReason: job.FailureReason,
		Kind:          models.KindStandard,
	}
}

// mapBridge converts a GitLab bridge to a bridge execution. Bridges carry
// no tags and no fetchable log.
func mapBridge(bridge *gitlab.Bridge) models.JobExecution {
	return models.JobExecution{
		ID:           bridge.ID,
		Name:         bridge.Name,
		Stage:        bridge.Stage,
		Status:       models.JobStatus(bridge.Status),
		AllowFailure: bridge.AllowFailure,
		WebURL:       bridge.WebURL,
		CreatedAt:    derefTime(bridge.CreatedAt),
		Kind:         models.KindBridge,
	}
}

func mapPipeline(pipeline *gitlab.Pipeline) *models.PipelineRef {
	return &models.PipelineRef{
		ID:        pipeline.ID,
		SHA:       pipeline.SHA,
		Ref:       pipeline.Ref,
		Status:    pipeline.Status,
		WebURL:    pipeline.WebURL,
		CreatedAt: derefTime(pipeline.CreatedAt),
	}
}

func mapPipelineInfo(info *gitlab.PipelineInfo) *models.PipelineRef {
	return &models.PipelineRef{
		ID:        info.ID,
		SHA:       info.SHA,
		Ref:       info.Ref,
		Status:    info.Status,
		WebURL:    info.WebURL,
		CreatedAt: derefTime(info.CreatedAt),
	}
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// mapError converts GitLab API failures to provider errors
func mapError(resp *gitlab.Response, err error) error {
	if resp == nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return provider.ErrPipelineNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return provider.ErrUnauthorized
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return provider.ErrPlatformUnavailable
	default:
		return &provider.PlatformError{
			Code:    resp.StatusCode,
			Message: "gitlab request failed",
			Err:     err,
		}
	}
}
