package models

import "time"

// JobKind distinguishes regular jobs from bridges that trigger
// downstream pipelines
type JobKind string

const (
	KindStandard JobKind = "standard"
	KindBridge   JobKind = "bridge"
)

// JobStatus represents the state of a job execution
type JobStatus string

const (
	StatusCreated  JobStatus = "created"
	StatusPending  JobStatus = "pending"
	StatusRunning  JobStatus = "running"
	StatusSuccess  JobStatus = "success"
	StatusFailed   JobStatus = "failed"
	StatusCanceled JobStatus = "canceled"
	StatusSkipped  JobStatus = "skipped"
	StatusManual   JobStatus = "manual"
)

// Terminal reports whether the status is a final outcome. A job that is
// neither failed nor successful never produced a result.
func (s JobStatus) Terminal() bool {
	return s == StatusFailed || s == StatusSuccess
}

// JobExecution is one attempt to run a named job within a pipeline.
// Executions are immutable once fetched. Bridge executions carry no tags
// and have no fetchable log.
type JobExecution struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	Stage         string    `json:"stage"`
	Status        JobStatus `json:"status"`
	Tags          []string  `json:"tag_list,omitempty"`
	AllowFailure  bool      `json:"allow_failure"`
	WebURL        string    `json:"web_url"`
	CreatedAt     time.Time `json:"created_at"`
	FailureReason string    `json:"failure_reason,omitempty"` // platform code, empty when none
	Kind          JobKind   `json:"kind"`
}

// PullRequest is the subset of a merge request the skip correlator needs
type PullRequest struct {
	Number       int    `json:"number"`
	SourceBranch string `json:"source_branch"`
	WebURL       string `json:"web_url"`
}

// PipelineRef identifies a pipeline run on the platform
type PipelineRef struct {
	ID        int       `json:"id"`
	SHA       string    `json:"sha"`
	Ref       string    `json:"ref"`
	Status    string    `json:"status"`
	WebURL    string    `json:"web_url"`
	CreatedAt time.Time `json:"created_at"`
}
