package backend

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// idSource records which extraction branch produced a job id. The
// regex scan is a last-resort heuristic and callers surface its use
// to operators.
type idSource string

const (
	idFromHeader   idSource = "header"
	idFromLocation idSource = "location"
	idFromBody     idSource = "body"
	idFromScan     idSource = "scan"
)

// Response headers checked for a job id, in priority order.
var jobIDHeaders = []string{"x-job-id", "x-jobid", "job-id"}

// Opaque tokens of at least 10 url-safe characters, matched against
// the raw body as a final fallback.
var jobTokenPattern = regexp.MustCompile(`[A-Za-z0-9_-]{10,}`)

// extractJobID locates a job identifier in a 202 response. Priority:
// dedicated headers, then the trailing path segment of Location, then
// the job_id/id fields of a JSON body, then a heuristic token scan of
// the raw body text. Returns ok=false when nothing matched, which the
// caller treats as a backend contract violation.
func extractJobID(header http.Header, body []byte) (id string, src idSource, ok bool) {
	for _, name := range jobIDHeaders {
		if v := strings.TrimSpace(header.Get(name)); v != "" {
			return v, idFromHeader, true
		}
	}

	if loc := strings.TrimSpace(header.Get("Location")); loc != "" {
		trimmed := strings.TrimRight(loc, "/")
		if idx := strings.LastIndex(trimmed, "/"); idx >= 0 && idx < len(trimmed)-1 {
			return trimmed[idx+1:], idFromLocation, true
		}
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err == nil {
		for _, key := range []string{"job_id", "id"} {
			if v := stringifyID(fields[key]); v != "" {
				return v, idFromBody, true
			}
		}
	}

	if token := jobTokenPattern.FindString(string(body)); token != "" {
		return token, idFromScan, true
	}

	return "", "", false
}

// stringifyID renders a JSON id value as a token. Older backends use
// integer autoincrement ids, newer ones opaque strings.
func stringifyID(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
