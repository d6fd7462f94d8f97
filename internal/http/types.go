package http

import (
	"encoding/json"
	"time"

	"woosync/internal/backend"
)

// ErrorResponse is the shared error envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// ProxyResponse wraps a JSON document fetched from (or written to)
// the integration backend. Attempts carries the resolver's diagnostic
// trail when the route had to be probed and everything failed.
type ProxyResponse struct {
	Success  bool              `json:"success"`
	Code     string            `json:"code,omitempty"`
	Error    string            `json:"error,omitempty"`
	Data     json.RawMessage   `json:"data,omitempty"`
	Attempts []backend.Attempt `json:"attempts,omitempty"`
}

// TriggerSyncRequest is the body of the full-sync trigger.
type TriggerSyncRequest struct {
	DryRun   bool `json:"dryRun"`
	PurgeBin bool `json:"purgeBin"`
}

// TriggerPartialSyncRequest is the body of the partial-sync trigger.
type TriggerPartialSyncRequest struct {
	DryRun bool     `json:"dryRun"`
	SKUs   []string `json:"skus"`
}

// TriggerSyncResponse acknowledges an accepted sync run.
type TriggerSyncResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
	RunID   string `json:"runId,omitempty"`
}

// RunItem is the list view of a sync run.
type RunItem struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	DryRun       bool       `json:"dryRun"`
	BackendJobID string     `json:"backendJobId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// RunDetailItem adds the payloads to the list view.
type RunDetailItem struct {
	RunItem
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ListRunsResponse wraps the run list.
type ListRunsResponse struct {
	Success bool      `json:"success"`
	Code    string    `json:"code,omitempty"`
	Error   string    `json:"error,omitempty"`
	Runs    []RunItem `json:"runs,omitempty"`
}

// RunDetailResponse wraps one run.
type RunDetailResponse struct {
	Success bool           `json:"success"`
	Code    string         `json:"code,omitempty"`
	Error   string         `json:"error,omitempty"`
	Run     *RunDetailItem `json:"run,omitempty"`
}

// PreviewResponse wraps a sync preview snapshot.
type PreviewResponse struct {
	Success bool            `json:"success"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
	Cached  bool            `json:"cached"`
	Preview json.RawMessage `json:"preview,omitempty"`
}

// AuditItem is one audit trail entry.
type AuditItem struct {
	ID           int64           `json:"id"`
	Action       string          `json:"action"`
	Actor        string          `json:"actor"`
	ResourceType string          `json:"resourceType,omitempty"`
	ResourceID   string          `json:"resourceId,omitempty"`
	IP           string          `json:"ip,omitempty"`
	UserAgent    string          `json:"userAgent,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// ListAuditResponse wraps the audit trail.
type ListAuditResponse struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
	Events  []AuditItem `json:"events,omitempty"`
}
