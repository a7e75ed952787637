package api

import (
	"testing"

	"github.com/lei/pipeline-triage/internal/triage"
)

func TestFilterFailures(t *testing.T) {
	jobs := []triage.FinalJobStatus{
		{
			DisplayName: "unit_tests", FullName: "unit_tests:windows-x64", Stage: "test",
			Classification: triage.Classification{Type: triage.JobFailure, Reason: triage.ReasonFailedJobScript},
		},
		{
			DisplayName: "build_binary", FullName: "build_binary", Stage: "build",
			Classification: triage.Classification{Type: triage.InfraFailure, Reason: triage.ReasonRunner},
		},
		{
			DisplayName: "trigger_downstream", FullName: "trigger_downstream", Stage: "deploy",
			Classification: triage.Classification{Type: triage.BridgeFailure, Reason: triage.ReasonFailedBridgeJob},
		},
	}

	tests := []struct {
		name        string
		search      string
		failureType string
		stage       string
		want        int
	}{
		{"no filters", "", "", "", 3},
		{"search tests", "tests", "", "", 1},
		{"search matches full name", "windows", "", "", 1},
		{"infra only", "", "infra_failure", "", 1},
		{"bridge only", "", "bridge_failure", "", 1},
		{"stage build", "", "", "build", 1},
		{"search + type", "build", "infra_failure", "", 1},
		{"search + wrong type", "build", "job_failure", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterFailures(jobs, tt.search, tt.failureType, tt.stage)
			if len(got) != tt.want {
				t.Errorf("FilterFailures() = %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestParseBoolParam(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  *bool
	}{
		{"empty", "", nil},
		{"true", "true", boolPtr(true)},
		{"1", "1", boolPtr(true)},
		{"false", "false", boolPtr(false)},
		{"0", "0", boolPtr(false)},
		{"invalid", "invalid", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseBoolParam(tt.value)
			if (got == nil) != (tt.want == nil) {
				t.Errorf("parseBoolParam() = %v, want %v", got, tt.want)
				return
			}
			if got != nil && tt.want != nil && *got != *tt.want {
				t.Errorf("parseBoolParam() = %v, want %v", *got, *tt.want)
			}
		})
	}
}

func boolPtr(b bool) *bool {
	return &b
}
