package triage

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lei/pipeline-triage/internal/models"
	"github.com/lei/pipeline-triage/pkg/logger"
)

// fakeLogs serves canned traces and records which executions were fetched.
// BuildReport fetches concurrently, so it is mutex-protected.
type fakeLogs struct {
	mu     sync.Mutex
	traces map[int]string
	errs   map[int]error
	calls  map[int]int
}

func newFakeLogs() *fakeLogs {
	return &fakeLogs{
		traces: make(map[int]string),
		errs:   make(map[int]error),
		calls:  make(map[int]int),
	}
}

func (f *fakeLogs) FetchLog(ctx context.Context, executionID int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[executionID]++
	if err, ok := f.errs[executionID]; ok {
		return "", err
	}
	return f.traces[executionID], nil
}

func (f *fakeLogs) callCount(executionID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[executionID]
}

func (f *fakeLogs) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func exec(id int, name string, status models.JobStatus, createdAt time.Time) models.JobExecution {
	return models.JobExecution{
		ID:        id,
		Name:      name,
		Stage:     "test",
		Status:    status,
		WebURL:    "https://gitlab.example.com/jobs/1",
		CreatedAt: createdAt,
		Kind:      models.KindStandard,
	}
}

func testConsolidator(t *testing.T) *Consolidator {
	t.Helper()
	return NewConsolidator(DefaultConfig(), logger.NewNop())
}

func TestBuildReportRetrySummary(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	execs := []models.JobExecution{
		exec(1, "unit_tests", models.StatusFailed, base),
		exec(2, "unit_tests", models.StatusFailed, base.Add(10*time.Minute)),
		exec(3, "unit_tests", models.StatusFailed, base.Add(20*time.Minute)),
	}

	logs := newFakeLogs()
	logs.traces[3] = "--- FAIL: TestX"

	// Any permutation of the input yields the same chronological summary
	for i := 0; i < 5; i++ {
		shuffled := append([]models.JobExecution(nil), execs...)
		rand.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		report, err := testConsolidator(t).BuildReport(context.Background(), shuffled, logs)
		require.NoError(t, err)
		require.Contains(t, report.Mandatory, "unit_tests")

		job := report.Mandatory["unit_tests"]
		assert.Equal(t, 3, job.ID, "canonical execution is the latest attempt")
		assert.Equal(t, []models.JobStatus{
			models.StatusFailed, models.StatusFailed, models.StatusFailed,
		}, job.RetrySummary)
		assert.Equal(t, job.Status, job.RetrySummary[len(job.RetrySummary)-1])
	}
}

func TestBuildReportRetriedAndSucceededExcluded(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	execs := []models.JobExecution{
		exec(1, "flaky_job", models.StatusFailed, base),
		exec(2, "flaky_job", models.StatusSuccess, base.Add(5*time.Minute)),
	}

	logs := newFakeLogs()
	report, err := testConsolidator(t).BuildReport(context.Background(), execs, logs)
	require.NoError(t, err)

	assert.Empty(t, report.Mandatory)
	assert.Empty(t, report.Excluded)
	assert.Equal(t, 0, logs.totalCalls(), "no log is fetched for a recovered job")
}

func TestBuildReportLazyLogFetch(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bridge := models.JobExecution{
		ID: 40, Name: "trigger_downstream", Status: models.StatusFailed,
		CreatedAt: base, Kind: models.KindBridge,
	}
	execs := []models.JobExecution{
		exec(10, "passing_job", models.StatusSuccess, base),
		exec(20, "failing_job", models.StatusFailed, base),
		exec(21, "failing_job", models.StatusFailed, base.Add(time.Minute)),
		bridge,
	}

	logs := newFakeLogs()
	logs.traces[21] = "--- FAIL: TestY"

	report, err := testConsolidator(t).BuildReport(context.Background(), execs, logs)
	require.NoError(t, err)

	// Exactly one fetch: the failing group's canonical attempt. Never the
	// earlier attempt, the success or the bridge.
	assert.Equal(t, 1, logs.totalCalls())
	assert.Equal(t, 1, logs.callCount(21))

	require.Contains(t, report.Mandatory, "trigger_downstream")
	assert.Equal(t, Classification{Type: BridgeFailure, Reason: ReasonFailedBridgeJob},
		report.Mandatory["trigger_downstream"].Classification)
	assert.Nil(t, report.Mandatory["trigger_downstream"].Tags)
}

func TestBuildReportFetchErrorDegradesToEmptyLog(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	execs := []models.JobExecution{
		exec(1, "job_a", models.StatusFailed, base),
		exec(2, "job_b", models.StatusFailed, base),
	}

	logs := newFakeLogs()
	logs.errs[1] = errors.New("connection reset")
	logs.traces[2] = "--- FAIL: TestZ"

	report, err := testConsolidator(t).BuildReport(context.Background(), execs, logs)
	require.NoError(t, err, "a single fetch failure must not abort the report")

	require.Contains(t, report.Mandatory, "job_a")
	require.Contains(t, report.Mandatory, "job_b")
	assert.Equal(t, Classification{Type: InfraFailure, Reason: ReasonGitlab},
		report.Mandatory["job_a"].Classification)
	assert.Equal(t, Classification{Type: JobFailure, Reason: ReasonFailedJobScript},
		report.Mandatory["job_b"].Classification)
}

func TestDisplayName(t *testing.T) {
	c := testConsolidator(t)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"matrix family preserved", "kmt_run_foo_tests_bar", "kmt_run_foo_tests_bar"},
		{"colon suffix dropped", "unit_tests:windows-x64", "unit_tests"},
		{"no colon unchanged", "unit_tests", "unit_tests"},
		{"long name capped", strings.Repeat("x", 60), strings.Repeat("x", 48)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.displayName(tt.in))
		})
	}
}

func TestBuildReportReportability(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	allowed := exec(1, "optional_lint", models.StatusFailed, base)
	allowed.AllowFailure = true
	forced := exec(2, "security_scan", models.StatusFailed, base)
	forced.AllowFailure = true
	mandatory := exec(3, "unit_tests", models.StatusFailed, base)

	cfg := DefaultConfig()
	cfg.ForceReportPatterns = []*regexp.Regexp{MustCompileNamePattern(`security_.*`)}

	c := NewConsolidator(cfg, logger.NewNop())
	report, err := c.BuildReport(context.Background(),
		[]models.JobExecution{allowed, forced, mandatory}, newFakeLogs())
	require.NoError(t, err)

	assert.Contains(t, report.Mandatory, "unit_tests")
	assert.Contains(t, report.Mandatory, "security_scan", "force-report list overrides allow_failure")
	assert.Contains(t, report.Excluded, "optional_lint")
	assert.NotContains(t, report.Mandatory, "optional_lint")

	names := make([]string, 0)
	for _, job := range report.AllFailures() {
		names = append(names, job.FullName)
	}
	assert.Equal(t, []string{"optional_lint", "security_scan", "unit_tests"}, names)
}
