package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for HTTP requests and backend
// interactions. This is intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	pollsTotal        = make(map[string]int64)
	pollErrorsTotal   int64
	jobIDScanFallback int64

	resolveAttemptsTotal  = make(map[string]int64)
	resolveExhaustedTotal = make(map[string]int64)

	syncRunsTotal = make(map[runKey]int64)

	retentionRunsDeleted  int64
	retentionAuditDeleted int64
	staleRunsReclaimed    int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type runKey struct {
	Kind   string
	Status string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordPoll counts one backend job status observation by normalized status.
func RecordPoll(status string) {
	mu.Lock()
	defer mu.Unlock()
	pollsTotal[status]++
}

// RecordPollError counts a transient status-check failure that the
// poll loop swallowed.
func RecordPollError() {
	mu.Lock()
	defer mu.Unlock()
	pollErrorsTotal++
}

// RecordJobIDScanFallback counts job ids recovered by the raw-body
// token scan rather than headers or JSON fields.
func RecordJobIDScanFallback() {
	mu.Lock()
	defer mu.Unlock()
	jobIDScanFallback++
}

// RecordResolveAttempt counts one candidate probe of the endpoint resolver.
func RecordResolveAttempt(success bool) {
	mu.Lock()
	defer mu.Unlock()
	outcome := "failure"
	if success {
		outcome = "success"
	}
	resolveAttemptsTotal[outcome]++
}

// RecordResolveExhausted counts a resolution where every candidate failed.
func RecordResolveExhausted(method string) {
	mu.Lock()
	defer mu.Unlock()
	resolveExhaustedTotal[method]++
}

// RecordSyncRun counts a sync run reaching a terminal status.
func RecordSyncRun(kind, status string) {
	mu.Lock()
	defer mu.Unlock()
	syncRunsTotal[runKey{Kind: kind, Status: status}]++
}

// RecordStaleRuns increments the counter of stuck running runs
// reclaimed as failed.
func RecordStaleRuns(reclaimed int64) {
	if reclaimed <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	staleRunsReclaimed += reclaimed
}

// RecordRetentionRuns increments the counter of sync runs deleted by TTL.
func RecordRetentionRuns(deleted int64) {
	if deleted <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionRunsDeleted += deleted
}

// RecordRetentionAudit increments the counter of audit events deleted by TTL.
func RecordRetentionAudit(deleted int64) {
	if deleted <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionAuditDeleted += deleted
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP woosync_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE woosync_http_requests_total counter\n")

	// Sort keys for stable output
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		v := requestsTotal[k]
		fmt.Fprintf(&b, "woosync_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, v)
	}

	b.WriteString("# HELP woosync_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE woosync_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP woosync_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE woosync_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		fmt.Fprintf(&b, "woosync_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "woosync_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsCount[k])
	}

	// Backend poll metrics
	b.WriteString("# HELP woosync_backend_polls_total Total backend job status polls by status\n")
	b.WriteString("# TYPE woosync_backend_polls_total counter\n")

	var pollStatuses []string
	for s := range pollsTotal {
		pollStatuses = append(pollStatuses, s)
	}
	sort.Strings(pollStatuses)
	for _, s := range pollStatuses {
		fmt.Fprintf(&b, "woosync_backend_polls_total{status=\"%s\"} %d\n", s, pollsTotal[s])
	}

	b.WriteString("# HELP woosync_backend_poll_errors_total Transient status-check failures swallowed by the poll loop\n")
	b.WriteString("# TYPE woosync_backend_poll_errors_total counter\n")
	fmt.Fprintf(&b, "woosync_backend_poll_errors_total %d\n", pollErrorsTotal)

	b.WriteString("# HELP woosync_backend_job_id_scan_fallback_total Job ids recovered by raw-body token scan\n")
	b.WriteString("# TYPE woosync_backend_job_id_scan_fallback_total counter\n")
	fmt.Fprintf(&b, "woosync_backend_job_id_scan_fallback_total %d\n", jobIDScanFallback)

	// Resolver metrics
	b.WriteString("# HELP woosync_resolver_attempts_total Endpoint resolver candidate probes by outcome\n")
	b.WriteString("# TYPE woosync_resolver_attempts_total counter\n")

	var outcomes []string
	for o := range resolveAttemptsTotal {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(&b, "woosync_resolver_attempts_total{outcome=\"%s\"} %d\n", o, resolveAttemptsTotal[o])
	}

	b.WriteString("# HELP woosync_resolver_exhausted_total Resolutions where every candidate failed\n")
	b.WriteString("# TYPE woosync_resolver_exhausted_total counter\n")

	var methods []string
	for m := range resolveExhaustedTotal {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	for _, m := range methods {
		fmt.Fprintf(&b, "woosync_resolver_exhausted_total{method=\"%s\"} %d\n", m, resolveExhaustedTotal[m])
	}

	// Sync run metrics
	b.WriteString("# HELP woosync_sync_runs_total Sync runs reaching a terminal status\n")
	b.WriteString("# TYPE woosync_sync_runs_total counter\n")

	var runKeys []runKey
	for k := range syncRunsTotal {
		runKeys = append(runKeys, k)
	}
	sort.Slice(runKeys, func(i, j int) bool {
		if runKeys[i].Kind != runKeys[j].Kind {
			return runKeys[i].Kind < runKeys[j].Kind
		}
		return runKeys[i].Status < runKeys[j].Status
	})
	for _, k := range runKeys {
		fmt.Fprintf(&b, "woosync_sync_runs_total{kind=\"%s\",status=\"%s\"} %d\n",
			k.Kind, k.Status, syncRunsTotal[k])
	}

	// Retention metrics
	b.WriteString("# HELP woosync_retention_runs_deleted_total Total sync runs deleted by TTL\n")
	b.WriteString("# TYPE woosync_retention_runs_deleted_total counter\n")
	fmt.Fprintf(&b, "woosync_retention_runs_deleted_total %d\n", retentionRunsDeleted)

	b.WriteString("# HELP woosync_retention_audit_deleted_total Total audit events deleted by TTL\n")
	b.WriteString("# TYPE woosync_retention_audit_deleted_total counter\n")
	fmt.Fprintf(&b, "woosync_retention_audit_deleted_total %d\n", retentionAuditDeleted)

	b.WriteString("# HELP woosync_stale_runs_reclaimed_total Stuck running runs reclaimed as failed\n")
	b.WriteString("# TYPE woosync_stale_runs_reclaimed_total counter\n")
	fmt.Fprintf(&b, "woosync_stale_runs_reclaimed_total %d\n", staleRunsReclaimed)

	return b.String()
}
