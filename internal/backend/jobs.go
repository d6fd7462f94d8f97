package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"woosync/internal/metrics"
)

// SyncParams are the knobs for a full product sync. The backend
// expects snake_case field names.
type SyncParams struct {
	DryRun   bool `json:"dry_run"`
	PurgeBin bool `json:"purge_bin"`
}

// PartialSyncParams restricts a sync to specific SKUs.
type PartialSyncParams struct {
	DryRun bool     `json:"dry_run"`
	SKUs   []string `json:"skus"`
}

// StartKind discriminates how the backend chose to execute a trigger.
type StartKind string

const (
	// StartSync means the backend executed the operation inline and the
	// response body is the final result. No job exists to poll.
	StartSync StartKind = "sync"
	// StartAsync means the backend accepted the operation as a job that
	// must be polled to completion.
	StartAsync StartKind = "async"
)

// StartResult is the discriminated outcome of a job trigger.
type StartResult struct {
	Kind   StartKind
	Result json.RawMessage // set when Kind == StartSync
	JobID  string          // set when Kind == StartAsync
}

// StartError is a non-2xx response to a job trigger. The body is kept
// raw so operators see exactly what the backend said.
type StartError struct {
	StatusCode int
	Body       string
}

func (e *StartError) Error() string {
	return fmt.Sprintf("backend sync trigger failed: status %d: %s", e.StatusCode, e.Body)
}

// Job is one observation of an asynchronous backend operation.
type Job struct {
	ID       string          `json:"id"`
	Status   Status          `json:"status"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    json.RawMessage `json:"error,omitempty"`
	Progress float64         `json:"progress,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// jobStatusBody is the wire shape of the status endpoint. The status
// field is free text and normalized on the way in.
type jobStatusBody struct {
	Status   string          `json:"status"`
	Result   json.RawMessage `json:"result"`
	Error    json.RawMessage `json:"error"`
	Progress float64         `json:"progress"`
	Message  string          `json:"message"`
}

// StartJob issues a sync trigger to the given backend path and
// classifies the response. 200 means the backend ran the operation
// inline; 202 means it was queued and a job id must be extractable
// per the documented priority order. A 202 without any id is a
// contract violation and is never retried.
func (c *Client) StartJob(ctx context.Context, path string, params any) (*StartResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.syncTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPost, c.url(path), params)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend sync trigger: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend sync trigger: read body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var result json.RawMessage
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("backend sync trigger: non-JSON 200 body: %w", err)
		}
		return &StartResult{Kind: StartSync, Result: result}, nil

	case http.StatusAccepted:
		id, src, ok := extractJobID(resp.Header, body)
		if !ok {
			return nil, fmt.Errorf("backend accepted sync job but no job id was present in headers, Location, or body")
		}
		if src == idFromScan {
			// Last-resort branch; worth a warning so operators notice
			// when the backend stops sending ids properly.
			c.logWarn("job id recovered by body scan", "path", path, "job_id", id)
			metrics.RecordJobIDScanFallback()
		}
		return &StartResult{Kind: StartAsync, JobID: id}, nil

	default:
		return nil, &StartError{StatusCode: resp.StatusCode, Body: previewBody(body)}
	}
}

// JobStatus fetches and normalizes one status snapshot for a job.
// Callers poll this; a transient failure here is expected to be
// swallowed by the poll loop, not to abort the operation.
func (c *Client) JobStatus(ctx context.Context, path, id string) (*Job, error) {
	ctx, cancel := context.WithTimeout(ctx, c.reqTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, c.url(path+"/"+id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("job status %s: %w", id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("job status %s: read body: %w", id, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("job status %s: status %d", id, resp.StatusCode)
	}

	var wire jobStatusBody
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("job status %s: decode: %w", id, err)
	}

	return &Job{
		ID:       id,
		Status:   Normalize(wire.Status),
		Result:   wire.Result,
		Error:    wire.Error,
		Progress: wire.Progress,
		Message:  wire.Message,
	}, nil
}
