package api

import (
	"strings"

	"github.com/lei/pipeline-triage/internal/triage"
)

// FilterFailures filters report entries based on query parameters
func FilterFailures(jobs []triage.FinalJobStatus, search, failureType, stage string) []triage.FinalJobStatus {
	if search == "" && failureType == "" && stage == "" {
		return jobs
	}

	filtered := make([]triage.FinalJobStatus, 0, len(jobs))
	searchLower := strings.ToLower(search)

	for _, j := range jobs {
		// Search filter matches the untruncated name
		if search != "" && !strings.Contains(strings.ToLower(j.FullName), searchLower) {
			continue
		}

		// Failure type filter
		if failureType != "" && string(j.Type) != failureType {
			continue
		}

		// Stage filter
		if stage != "" && j.Stage != stage {
			continue
		}

		filtered = append(filtered, j)
	}

	return filtered
}

// parseBoolParam parses boolean query parameters
func parseBoolParam(value string) *bool {
	if value == "" {
		return nil
	}

	if value == "true" || value == "1" {
		result := true
		return &result
	}

	if value == "false" || value == "0" {
		result := false
		return &result
	}

	return nil
}
