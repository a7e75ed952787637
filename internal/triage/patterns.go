package triage

import "regexp"

// logPattern binds a log signature to the infra reason it indicates
type logPattern struct {
	re     *regexp.Regexp
	reason FailureReason
}

// infraLogPatterns is evaluated top to bottom; the first match wins.
// New signatures are added here, never in the classifier.
var infraLogPatterns = []logPattern{
	// Registry auth and TLS errors while pulling images on legacy runners
	{regexp.MustCompile(`no basic auth credentials \(.*\)`), ReasonRunner},
	{regexp.MustCompile(`net/http: TLS handshake timeout \(.*\)`), ReasonRunner},
	// docker / docker-arm runner init failures
	{regexp.MustCompile(`Docker runner job start script failed`), ReasonRunner},
	{regexp.MustCompile(`A disposable runner accepted this job, while it shouldn't have\. Runners are meant to run just one job and be terminated\.`), ReasonRunner},
	{regexp.MustCompile(`WARNING: Failed to pull image with policy "always":.*\(.*\)`), ReasonRunner},
	// k8s runner pod-startup failures
	{regexp.MustCompile(`Job failed \(system failure\): prepare environment: waiting for pod running: timed out waiting for pod to start`), ReasonRunner},
	{regexp.MustCompile(`Job failed \(system failure\): prepare environment: setting up build pod: Internal error occurred: failed calling webhook`), ReasonRunner},
	// GitLab 5xx during source checkout
	{regexp.MustCompile(`fatal: unable to access '.*': The requested URL returned error: 5..`), ReasonGitlab},
	// EC2 spot-instance allocation and preemption
	{regexp.MustCompile(`Failed to allocate end to end test EC2 Spot instance after [0-9]+ attempts`), ReasonEC2Spot},
	{regexp.MustCompile(`Connection to [0-9]+\.[0-9]+\.[0-9]+\.[0-9]+ closed by remote host\.`), ReasonEC2Spot},
	// end-to-end test internal infrastructure marker
	{regexp.MustCompile(`E2E INTERNAL ERROR`), ReasonE2EInfra},
}

// matchInfraPattern scans the pattern table against the log text and
// returns the reason of the first matching rule.
func matchInfraPattern(logText string) (FailureReason, bool) {
	for _, p := range infraLogPatterns {
		if p.re.MatchString(logText) {
			return p.reason, true
		}
	}
	return "", false
}
