package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Relative backend routes. The resolver expands these against the
// configured prefixes because deployments disagree on where the
// integration API is mounted.
const (
	fullSyncPath    = "/full-sync"
	partialSyncPath = "/partial-sync"
	jobStatusPath   = "/sync/status"
	previewPath     = "/preview-sync"
	mappingPath     = "/mapping"
	shippingPath    = "/shipping/params"
	inboxListPath   = "/webhooks/inbox/list"
	inboxItemPath   = "/webhooks/inbox/get"
	inboxReplayPath = "/webhooks/inbox/replay"
	configPath      = "/config"
)

// primary returns the first-prefix form of a relative path. Sync
// triggers and status polls go to one known endpoint rather than
// through the resolver: a trigger must not be retried against
// multiple routes, and the status route always lives next to it.
func (c *Client) primary(path string) string {
	return c.candidates(path)[0]
}

// StartFullSync triggers a full product sync.
func (c *Client) StartFullSync(ctx context.Context, params SyncParams) (*StartResult, error) {
	return c.StartJob(ctx, c.primary(fullSyncPath), params)
}

// StartPartialSync triggers a sync restricted to the given SKUs.
func (c *Client) StartPartialSync(ctx context.Context, params PartialSyncParams) (*StartResult, error) {
	return c.StartJob(ctx, c.primary(partialSyncPath), params)
}

// StatusPath is the job-status route matching the sync triggers; the
// poller appends "/{id}".
func (c *Client) StatusPath() string {
	return c.primary(jobStatusPath)
}

// resolveBounded resolves a document route under the short request
// timeout. The preview fetch does not use this: its budget is minutes,
// not seconds.
func (c *Client) resolveBounded(ctx context.Context, method string, candidateURLs []string, body any) (json.RawMessage, []Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.reqTimeout)
	defer cancel()
	return c.Resolve(ctx, method, candidateURLs, body)
}

// FetchPreview loads a fresh sync preview from the backend. Previews
// walk both catalogs on the backend side, hence the generous timeout.
func (c *Client) FetchPreview(ctx context.Context) (json.RawMessage, []Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.previewTimeout)
	defer cancel()
	return c.Resolve(ctx, http.MethodGet, c.candidates(previewPath), nil)
}

// FetchMapping reads the field-mapping store document.
func (c *Client) FetchMapping(ctx context.Context) (json.RawMessage, []Attempt, error) {
	return c.resolveBounded(ctx, http.MethodGet, c.mappingCandidates(), nil)
}

// SaveMapping writes the field-mapping store document.
func (c *Client) SaveMapping(ctx context.Context, doc json.RawMessage) (json.RawMessage, []Attempt, error) {
	return c.resolveBounded(ctx, http.MethodPost, c.mappingCandidates(), doc)
}

func (c *Client) mappingCandidates() []string {
	// Older backends expose the store under a dedicated /store suffix.
	return c.candidates(mappingPath, "/api/integration/mapping/store")
}

// FetchShippingParams reads the shipping parameter document.
func (c *Client) FetchShippingParams(ctx context.Context) (json.RawMessage, []Attempt, error) {
	return c.resolveBounded(ctx, http.MethodGet, c.shippingCandidates(), nil)
}

// SaveShippingParams writes the shipping parameter document.
func (c *Client) SaveShippingParams(ctx context.Context, doc json.RawMessage) (json.RawMessage, []Attempt, error) {
	return c.resolveBounded(ctx, http.MethodPost, c.shippingCandidates(), doc)
}

func (c *Client) shippingCandidates() []string {
	// The shipping API predates the prefix scheme; the bare variant is
	// covered by the empty prefix in the candidate expansion.
	return c.candidates(shippingPath)
}

// ListInbox lists stored webhook deliveries. kind is raw, orders, or all.
func (c *Client) ListInbox(ctx context.Context, kind string) (json.RawMessage, []Attempt, error) {
	query := url.Values{}
	if kind != "" {
		query.Set("kind", kind)
	}
	return c.resolveBounded(ctx, http.MethodGet, withQuery(c.candidates(inboxListPath), query), nil)
}

// GetInboxItem fetches one stored webhook delivery by its inbox path.
func (c *Client) GetInboxItem(ctx context.Context, path string) (json.RawMessage, []Attempt, error) {
	query := url.Values{}
	query.Set("path", path)
	return c.resolveBounded(ctx, http.MethodGet, withQuery(c.candidates(inboxItemPath), query), nil)
}

// ReplayInbox re-enqueues a stored webhook delivery for processing.
func (c *Client) ReplayInbox(ctx context.Context, path string) (json.RawMessage, []Attempt, error) {
	body := map[string]string{"path": path}
	return c.resolveBounded(ctx, http.MethodPost, c.candidates(inboxReplayPath), body)
}

// ConfigSnapshot returns the backend's sanitized config check document.
func (c *Client) ConfigSnapshot(ctx context.Context) (json.RawMessage, []Attempt, error) {
	return c.resolveBounded(ctx, http.MethodGet, c.candidates(configPath), nil)
}

// Health performs a shallow backend liveness probe.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.reqTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, c.url("/"), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &StartError{StatusCode: resp.StatusCode, Body: "backend health probe failed"}
	}
	return nil
}

func withQuery(urls []string, query url.Values) []string {
	if len(query) == 0 {
		return urls
	}
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = u + "?" + query.Encode()
	}
	return out
}
