package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/lei/pipeline-triage/internal/triage"
)

// TriageConfig carries the consolidation policy from the config file.
// The allow-lists are deployment configuration, not code: new matrix job
// families or force-reported jobs are added here.
type TriageConfig struct {
	// PreserveFullNamePatterns lists job-name patterns kept verbatim
	// instead of truncated
	PreserveFullNamePatterns []string `yaml:"preserve_full_name_patterns"`

	// ForceReportPatterns lists job names reported despite allow_failure
	ForceReportPatterns []string `yaml:"force_report_patterns"`

	// MaxTruncatedLength caps display names after truncation
	MaxTruncatedLength int `yaml:"max_truncated_length"`

	// LogFetchConcurrency bounds parallel log fetches per inspection
	LogFetchConcurrency int `yaml:"log_fetch_concurrency"`

	// CacheTTL is how long a pipeline inspection is memoized
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

func (t *TriageConfig) setDefaults() {
	defaults := triage.DefaultConfig()
	if t.PreserveFullNamePatterns == nil {
		t.PreserveFullNamePatterns = append(t.PreserveFullNamePatterns, triage.DefaultPreserveFullNamePatterns...)
	}
	if t.MaxTruncatedLength == 0 {
		t.MaxTruncatedLength = defaults.MaxTruncatedLength
	}
	if t.LogFetchConcurrency == 0 {
		t.LogFetchConcurrency = defaults.LogFetchConcurrency
	}
	if t.CacheTTL == 0 {
		t.CacheTTL = 2 * time.Minute
	}
}

// Compile validates the pattern lists and builds the triage policy.
func (t *TriageConfig) Compile() (triage.Config, error) {
	preserve, err := compilePatterns(t.PreserveFullNamePatterns)
	if err != nil {
		return triage.Config{}, fmt.Errorf("preserve_full_name_patterns: %w", err)
	}
	force, err := compilePatterns(t.ForceReportPatterns)
	if err != nil {
		return triage.Config{}, fmt.Errorf("force_report_patterns: %w", err)
	}

	return triage.Config{
		PreserveFullNamePatterns: preserve,
		ForceReportPatterns:      force,
		MaxTruncatedLength:       t.MaxTruncatedLength,
		LogFetchConcurrency:      t.LogFetchConcurrency,
	}, nil
}

func compilePatterns(exprs []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := triage.CompileNamePattern(expr)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}
