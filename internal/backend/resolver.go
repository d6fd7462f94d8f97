package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"woosync/internal/metrics"
)

const bodyPreviewLimit = 200

// Attempt is the diagnostic record of one candidate probe during
// endpoint resolution.
type Attempt struct {
	URL         string `json:"url"`
	Status      int    `json:"status,omitempty"`
	OK          bool   `json:"ok"`
	ContentType string `json:"contentType,omitempty"`
	BodyPreview string `json:"bodyPreview,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ResolveError is returned when every candidate URL failed. It keeps
// the full ordered attempt list so operators can tell a wrong path
// from a dead backend from an auth failure.
type ResolveError struct {
	Method   string
	Attempts []Attempt
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("no backend route answered %s: %d candidates failed", e.Method, len(e.Attempts))
}

// Resolve tries each candidate URL in order and returns the first 2xx
// response body that parses as JSON, together with the attempts that
// failed before it. A 2xx with an unparseable body does not count as
// success. Candidates are probed strictly sequentially; ordering of
// the attempt list is part of the contract.
//
// The caller owns the deadline: previews carry a much larger budget
// than document reads, so each resource method bounds ctx before
// resolving.
func (c *Client) Resolve(ctx context.Context, method string, candidateURLs []string, body any) (json.RawMessage, []Attempt, error) {
	if len(candidateURLs) == 0 {
		return nil, nil, fmt.Errorf("resolve %s: empty candidate list", method)
	}

	attempts := make([]Attempt, 0, len(candidateURLs))

	for _, candidate := range candidateURLs {
		attempt := Attempt{URL: candidate}

		req, err := c.newRequest(ctx, method, candidate, body)
		if err != nil {
			attempt.Error = err.Error()
			attempts = append(attempts, attempt)
			continue
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			attempt.Error = err.Error()
			attempts = append(attempts, attempt)
			metrics.RecordResolveAttempt(false)
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		attempt.Status = resp.StatusCode
		attempt.OK = resp.StatusCode >= 200 && resp.StatusCode <= 299
		attempt.ContentType = resp.Header.Get("Content-Type")
		attempt.BodyPreview = previewBody(raw)

		if readErr != nil {
			attempt.OK = false
			attempt.Error = readErr.Error()
			attempts = append(attempts, attempt)
			metrics.RecordResolveAttempt(false)
			continue
		}

		if attempt.OK {
			var parsed json.RawMessage
			if err := json.Unmarshal(raw, &parsed); err == nil {
				metrics.RecordResolveAttempt(true)
				return parsed, attempts, nil
			}
			// An HTML error page behind a reverse proxy also arrives as
			// 200; only parseable JSON counts.
			attempt.OK = false
			attempt.Error = "Non-JSON response despite 2xx"
		}

		attempts = append(attempts, attempt)
		metrics.RecordResolveAttempt(false)
	}

	metrics.RecordResolveExhausted(method)
	c.logWarn("all backend route candidates failed",
		"method", method,
		"candidates", len(candidateURLs),
	)
	return nil, attempts, &ResolveError{Method: method, Attempts: attempts}
}

// previewBody collapses whitespace and truncates a response body for
// diagnostics. Truncation lands on a rune boundary so the preview
// stays valid UTF-8 through JSON encoding.
func previewBody(raw []byte) string {
	s := strings.Join(strings.Fields(string(raw)), " ")
	if len(s) > bodyPreviewLimit {
		cut := bodyPreviewLimit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}
