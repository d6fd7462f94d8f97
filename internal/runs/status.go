package runs

// Status represents the lifecycle state of a sync run in the
// sync_runs table. These values must match the text values stored in
// the database (sync_runs.status).
//
// Centralizing these here avoids scattering string literals like
// "pending" or "completed" across packages. Note that run status is
// the dashboard's own bookkeeping; the backend job polled underneath
// has its own queued/running/done/error lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run kinds accepted by the trigger endpoints.
const (
	KindFull    = "full"
	KindPartial = "partial"
)
