package triage

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lei/pipeline-triage/internal/models"
	"github.com/lei/pipeline-triage/internal/provider"
	"github.com/lei/pipeline-triage/pkg/logger"
)

// Config holds the consolidation policy. The allow-lists are explicit
// configuration rather than package state so deployments can extend them
// without a code change.
type Config struct {
	// PreserveFullNamePatterns lists job-name patterns whose full name is
	// kept verbatim, typically matrix/parallel families where the suffix
	// carries meaning. Patterns must match the entire name.
	PreserveFullNamePatterns []*regexp.Regexp

	// ForceReportPatterns lists job-name patterns reported even when the
	// job is allowed to fail. Patterns must match the entire name.
	ForceReportPatterns []*regexp.Regexp

	// MaxTruncatedLength caps the display name length after the
	// first-colon split
	MaxTruncatedLength int

	// LogFetchConcurrency bounds the number of parallel log fetches
	LogFetchConcurrency int
}

// DefaultPreserveFullNamePatterns are the stock matrix/parallel job
// families whose name suffix carries meaning.
var DefaultPreserveFullNamePatterns = []string{
	`kmt_run_.+_tests_.*`,
}

// DefaultConfig returns the stock consolidation policy.
func DefaultConfig() Config {
	preserve := make([]*regexp.Regexp, 0, len(DefaultPreserveFullNamePatterns))
	for _, expr := range DefaultPreserveFullNamePatterns {
		preserve = append(preserve, MustCompileNamePattern(expr))
	}
	return Config{
		PreserveFullNamePatterns: preserve,
		ForceReportPatterns:      nil,
		MaxTruncatedLength:       48,
		LogFetchConcurrency:      4,
	}
}

// CompileNamePattern compiles a job-name allow-list pattern. Patterns are
// anchored so they must match the entire name, never a substring.
func CompileNamePattern(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`\A(?:` + expr + `)\z`)
	if err != nil {
		return nil, fmt.Errorf("compile name pattern %q: %w", expr, err)
	}
	return re, nil
}

// MustCompileNamePattern is CompileNamePattern for static patterns.
func MustCompileNamePattern(expr string) *regexp.Regexp {
	re, err := CompileNamePattern(expr)
	if err != nil {
		panic(err)
	}
	return re
}

// FinalJobStatus is the canonical reported view of one logical job name
// within a pipeline: the latest attempt's outcome plus the chronological
// status of every attempt.
type FinalJobStatus struct {
	DisplayName  string             `json:"name"`
	FullName     string             `json:"full_name"`
	ID           int                `json:"id"`
	Stage        string             `json:"stage"`
	Status       models.JobStatus   `json:"status"`
	Tags         []string           `json:"tag_list,omitempty"`
	AllowFailure bool               `json:"allow_failure"`
	WebURL       string             `json:"web_url"`
	RetrySummary []models.JobStatus `json:"retry_summary"`
	Classification
}

// Report holds a pipeline's failed jobs, keyed by full name and
// partitioned into the failures that must be surfaced and the ones
// suppressed by the allow-failure policy. Read-only once built.
type Report struct {
	Mandatory map[string]FinalJobStatus `json:"mandatory"`
	Excluded  map[string]FinalJobStatus `json:"excluded"`
}

// MandatoryFailures returns the mandatory entries ordered by full name.
func (r *Report) MandatoryFailures() []FinalJobStatus {
	return sortedValues(r.Mandatory)
}

// AllFailures returns every failed entry, mandatory and excluded,
// ordered by full name.
func (r *Report) AllFailures() []FinalJobStatus {
	all := make(map[string]FinalJobStatus, len(r.Mandatory)+len(r.Excluded))
	for name, job := range r.Mandatory {
		all[name] = job
	}
	for name, job := range r.Excluded {
		all[name] = job
	}
	return sortedValues(all)
}

func sortedValues(jobs map[string]FinalJobStatus) []FinalJobStatus {
	out := make([]FinalJobStatus, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out
}

// Consolidator groups raw job executions by name, resolves retries to the
// canonical latest attempt, classifies the failures and assembles the
// report.
type Consolidator struct {
	cfg    Config
	logger *logger.Logger
}

// NewConsolidator creates a consolidator with the given policy.
func NewConsolidator(cfg Config, log *logger.Logger) *Consolidator {
	if cfg.MaxTruncatedLength <= 0 {
		cfg.MaxTruncatedLength = 48
	}
	if cfg.LogFetchConcurrency <= 0 {
		cfg.LogFetchConcurrency = 4
	}
	return &Consolidator{cfg: cfg, logger: log}
}

// jobGroup is one logical job name with its attempts sorted by creation
// time, oldest first. The canonical execution is the last attempt.
type jobGroup struct {
	name     string
	attempts []models.JobExecution
}

func (g *jobGroup) canonical() models.JobExecution {
	return g.attempts[len(g.attempts)-1]
}

// BuildReport consolidates the executions of one pipeline into a failure
// report. Logs are fetched lazily, only for the canonical attempt of a
// failing standard-job group, with bounded parallelism. A log fetch
// error degrades that group to the empty-log classification instead of
// failing the report.
func (c *Consolidator) BuildReport(ctx context.Context, execs []models.JobExecution, logs provider.LogFetcher) (*Report, error) {
	failing := c.failingGroups(execs)

	results := make([]FinalJobStatus, len(failing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.LogFetchConcurrency)
	for i, group := range failing {
		i, group := i, group
		g.Go(func() error {
			results[i] = c.finalStatus(gctx, group, logs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Mandatory: make(map[string]FinalJobStatus),
		Excluded:  make(map[string]FinalJobStatus),
	}
	for _, job := range results {
		if c.shouldReport(job.DisplayName, job.AllowFailure) {
			report.Mandatory[job.FullName] = job
		} else {
			report.Excluded[job.FullName] = job
		}
	}
	return report, nil
}

// groupExecutions partitions the executions by name, preserving arrival
// order across groups, and sorts each group's attempts by creation time,
// oldest first.
func groupExecutions(execs []models.JobExecution) []*jobGroup {
	groups := make(map[string]*jobGroup)
	var order []string
	for _, exec := range execs {
		group, ok := groups[exec.Name]
		if !ok {
			group = &jobGroup{name: exec.Name}
			groups[exec.Name] = group
			order = append(order, exec.Name)
		}
		group.attempts = append(group.attempts, exec)
	}

	out := make([]*jobGroup, 0, len(order))
	for _, name := range order {
		group := groups[name]
		// Stable so attempts created in the same instant keep arrival order
		sort.SliceStable(group.attempts, func(i, j int) bool {
			return group.attempts[i].CreatedAt.Before(group.attempts[j].CreatedAt)
		})
		out = append(out, group)
	}
	return out
}

// failingGroups keeps only the groups whose canonical attempt failed.
func (c *Consolidator) failingGroups(execs []models.JobExecution) []*jobGroup {
	var failing []*jobGroup
	for _, group := range groupExecutions(execs) {
		if group.canonical().Status == models.StatusFailed {
			failing = append(failing, group)
		}
	}
	return failing
}

// finalStatus builds the reported view of one failing group.
func (c *Consolidator) finalStatus(ctx context.Context, group *jobGroup, logs provider.LogFetcher) FinalJobStatus {
	canonical := group.canonical()

	// Bridges have no log and contribute no tags
	var trace string
	var tags []string
	if canonical.Kind != models.KindBridge {
		tags = canonical.Tags
		text, err := logs.FetchLog(ctx, canonical.ID)
		if err != nil {
			c.logger.Warn("log fetch failed, treating as empty log",
				"job_name", group.name,
				"execution_id", canonical.ID,
				"error", err)
		} else {
			trace = text
		}
	}

	summary := make([]models.JobStatus, len(group.attempts))
	for i, attempt := range group.attempts {
		summary[i] = attempt.Status
	}

	return FinalJobStatus{
		DisplayName:    c.displayName(group.name),
		FullName:       group.name,
		ID:             canonical.ID,
		Stage:          canonical.Stage,
		Status:         canonical.Status,
		Tags:           tags,
		AllowFailure:   canonical.AllowFailure,
		WebURL:         canonical.WebURL,
		RetrySummary:   summary,
		Classification: Classify(canonical, trace),
	}
}

// displayName truncates a job name for readability. Names on the
// preserve allow-list are kept verbatim; otherwise the matrix/parallel
// suffix after the first colon is dropped and the rest hard-capped.
func (c *Consolidator) displayName(name string) string {
	for _, pattern := range c.cfg.PreserveFullNamePatterns {
		if pattern.MatchString(name) {
			return name
		}
	}

	// The job header sits before the colon; names without one are unchanged
	truncated, _, _ := strings.Cut(name, ":")
	if len(truncated) > c.cfg.MaxTruncatedLength {
		truncated = truncated[:c.cfg.MaxTruncatedLength]
	}
	return truncated
}

// shouldReport applies the allow-failure policy: jobs allowed to fail are
// suppressed unless their name is on the force-report list.
func (c *Consolidator) shouldReport(name string, allowFailure bool) bool {
	if !allowFailure {
		return true
	}
	for _, pattern := range c.cfg.ForceReportPatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}
