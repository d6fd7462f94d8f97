package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"woosync/internal/config"
)

func slowBackend(t *testing.T, path string, delay time.Duration, payload string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		_, _ = w.Write([]byte(payload))
	})
	return httptest.NewServer(mux)
}

func TestFetchPreview_OutlivesRequestTimeout(t *testing.T) {
	srv := slowBackend(t, "/admin/api/preview-sync", 300*time.Millisecond, `{"products":{"create":1}}`)
	defer srv.Close()

	client, err := NewClient(&config.BackendConfig{
		BaseURL:          srv.URL,
		PreviewTimeoutMs: 60000,
		RequestTimeoutMs: 100,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	doc, _, err := client.FetchPreview(context.Background())
	if err != nil {
		t.Fatalf("preview within its own budget failed: %v", err)
	}
	if string(doc) != `{"products":{"create":1}}` {
		t.Fatalf("unexpected document: %s", doc)
	}
}

func TestConfigSnapshot_BoundedByRequestTimeout(t *testing.T) {
	srv := slowBackend(t, "/", 300*time.Millisecond, `{"ok":true}`)
	defer srv.Close()

	client, err := NewClient(&config.BackendConfig{
		BaseURL:          srv.URL,
		RequestTimeoutMs: 100,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, _, err := client.ConfigSnapshot(context.Background()); err == nil {
		t.Fatalf("document read slower than the request timeout must fail")
	}
}
