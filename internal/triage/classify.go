package triage

import "github.com/lei/pipeline-triage/internal/models"

// Classify determines why a failed execution failed. The precedence is
// fixed: bridge kind, then the platform failure code, then the absence of
// a log, then the pattern table, then the script-failure default. A
// platform code that maps to an infra reason short-circuits log
// inspection entirely.
func Classify(exec models.JobExecution, logText string) Classification {
	if exec.Kind == models.KindBridge {
		return Classification{Type: BridgeFailure, Reason: ReasonFailedBridgeJob}
	}

	if reason, ok := ReasonForPlatformCode(exec.FailureReason); ok {
		return Classification{Type: InfraFailure, Reason: reason}
	}

	// No log at all means the platform never ran the job properly
	if logText == "" {
		return Classification{Type: InfraFailure, Reason: ReasonGitlab}
	}

	if reason, ok := matchInfraPattern(logText); ok {
		return Classification{Type: InfraFailure, Reason: reason}
	}

	return Classification{Type: JobFailure, Reason: ReasonFailedJobScript}
}
