package backend

// Status represents the lifecycle state of an asynchronous backend
// job as seen by the dashboard. Backends report free-text status
// strings that vary by version; Normalize folds them into this
// four-value enum so the poll loop never sees an unknown state.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Normalize maps a backend-reported status string onto the enum.
// Unrecognized values become running rather than a terminal or zero
// state, so a newer backend with extra intermediate states keeps the
// poll loop alive instead of wedging it.
func Normalize(raw string) Status {
	switch raw {
	case "queued", "pending", "enqueued":
		return StatusQueued
	case "running", "started", "in_progress":
		return StatusRunning
	case "done", "completed", "success", "finished":
		return StatusDone
	case "error", "failed", "fatal":
		return StatusError
	default:
		return StatusRunning
	}
}
