// Package triage implements the failure-classification core: it
// consolidates retried job executions into a per-name final status,
// classifies each failure as an infrastructure or script problem, and
// correlates a pipeline's failures against the merge-request pipeline
// that preceded the merge.
package triage

// FailureType is the coarse category of a job failure
type FailureType string

const (
	BridgeFailure FailureType = "bridge_failure"
	InfraFailure  FailureType = "infra_failure"
	JobFailure    FailureType = "job_failure"
)

// FailureReason is the precise cause of a job failure. A fixed subset is
// derivable from platform failure codes; the rest come from log-pattern
// matches or the fixed defaults.
type FailureReason string

const (
	// ReasonRunner covers CI runner provisioning and init problems
	ReasonRunner FailureReason = "runner"
	// ReasonGitlab covers platform-side failures, including jobs that
	// produced no log at all
	ReasonGitlab FailureReason = "gitlab"
	// ReasonEC2Spot covers spot-instance allocation and preemption
	ReasonEC2Spot FailureReason = "ec2_spot"
	// ReasonE2EInfra covers end-to-end test infrastructure failures
	ReasonE2EInfra FailureReason = "e2e_infra_failure"
	// ReasonFailedJobScript is the default: the job's own script failed
	ReasonFailedJobScript FailureReason = "failed_job_script"
	// ReasonFailedBridgeJob is the fixed reason for failed bridges
	ReasonFailedBridgeJob FailureReason = "failed_bridge_job"
)

// Classification pairs the failure type with its reason.
// Invariant: Type == BridgeFailure iff Reason == ReasonFailedBridgeJob.
type Classification struct {
	Type   FailureType   `json:"failure_type"`
	Reason FailureReason `json:"failure_reason"`
}

// infraReasonByCode maps the platform-native failure codes known to
// represent infrastructure problems. Codes absent from this table fall
// back to log inspection.
var infraReasonByCode = map[string]FailureReason{
	"runner_system_failure":    ReasonRunner,
	"runner_unsupported":       ReasonRunner,
	"stuck_or_timeout_failure": ReasonGitlab,
	"scheduler_failure":        ReasonGitlab,
	"data_integrity_failure":   ReasonGitlab,
	"unmet_prerequisites":      ReasonGitlab,
}

// ReasonForPlatformCode returns the infra reason mapped to a platform
// failure code, if the code is known to be an infrastructure problem.
func ReasonForPlatformCode(code string) (FailureReason, bool) {
	reason, ok := infraReasonByCode[code]
	return reason, ok
}
