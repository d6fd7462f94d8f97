package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"woosync/internal/config"
)

// Client talks to the ERPNext/WooCommerce integration backend. All
// calls carry HTTP Basic credentials when configured and exchange
// JSON bodies. The zero value is not usable; construct via NewClient.
type Client struct {
	baseURL  string
	user     string
	pass     string
	prefixes []string

	syncTimeout    time.Duration
	previewTimeout time.Duration
	reqTimeout     time.Duration

	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates the backend configuration and returns a client.
// A missing base URL is a configuration error surfaced before any
// network call is attempted.
func NewClient(cfg *config.BackendConfig, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil backend config")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("backend.baseURL is required")
	}

	syncTimeout := msOrDefault(cfg.SyncTimeoutMs, 60*time.Minute)
	previewTimeout := msOrDefault(cfg.PreviewTimeoutMs, 15*time.Minute)
	reqTimeout := msOrDefault(cfg.RequestTimeoutMs, 30*time.Second)

	prefixes := cfg.RoutePrefixes
	if len(prefixes) == 0 {
		// Known deployment variants: routes mounted under the admin
		// panel, under the integration API, or unprefixed.
		prefixes = []string{"/admin/api", "/api/integration", ""}
	}

	return &Client{
		baseURL:        base,
		user:           cfg.AdminUser,
		pass:           cfg.AdminPass,
		prefixes:       prefixes,
		syncTimeout:    syncTimeout,
		previewTimeout: previewTimeout,
		reqTimeout:     reqTimeout,
		// No client-level timeout; each call bounds itself via context
		// so the long sync trigger and the short config fetch can share
		// one transport.
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

func msOrDefault(ms int, def time.Duration) time.Duration {
	if ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

// BaseURL returns the configured backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// url joins a path onto the backend base URL. Already-absolute URLs,
// such as the expanded candidates, pass through untouched.
func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// candidates expands a relative path against every configured route
// prefix, preserving prefix order. Extra fully-formed variants may be
// appended by callers for routes that moved between backend versions.
func (c *Client) candidates(path string, extra ...string) []string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	urls := make([]string, 0, len(c.prefixes)+len(extra))
	for _, prefix := range c.prefixes {
		urls = append(urls, c.baseURL+strings.TrimRight(prefix, "/")+path)
	}
	for _, p := range extra {
		urls = append(urls, c.url(p))
	}
	return urls
}

func (c *Client) newRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" || c.pass != "" {
		token := base64.StdEncoding.EncodeToString([]byte(c.user + ":" + c.pass))
		req.Header.Set("Authorization", "Basic "+token)
	}

	return req, nil
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Client) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}
