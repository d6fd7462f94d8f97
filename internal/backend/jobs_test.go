package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"woosync/internal/config"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(&config.BackendConfig{
		BaseURL:   baseURL,
		AdminUser: "admin",
		AdminPass: "secret",
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient(&config.BackendConfig{}, nil); err == nil {
		t.Fatalf("expected configuration error for missing baseURL")
	}
	if _, err := NewClient(nil, nil); err == nil {
		t.Fatalf("expected configuration error for nil config")
	}
}

func TestStartJob_SynchronousCompletion(t *testing.T) {
	var statusCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/full-sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "admin" || pass != "secret" {
			t.Errorf("missing or wrong basic auth")
		}
		var params SyncParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Errorf("decode params: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"summary":{"updated":3}}`))
	})
	mux.HandleFunc("/sync/status/", func(w http.ResponseWriter, r *http.Request) {
		statusCalls.Add(1)
		_, _ = w.Write([]byte(`{"status":"done"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	res, err := client.StartJob(context.Background(), "/full-sync", SyncParams{DryRun: true})
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if res.Kind != StartSync {
		t.Fatalf("expected sync kind, got %q", res.Kind)
	}
	if res.JobID != "" {
		t.Fatalf("sync result must not carry a job id")
	}

	var body map[string]any
	if err := json.Unmarshal(res.Result, &body); err != nil {
		t.Fatalf("result not JSON: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("unexpected result: %v", body)
	}

	// A 200 must never trigger status polling.
	if n := statusCalls.Load(); n != 0 {
		t.Fatalf("expected 0 status calls, got %d", n)
	}
}

func TestStartJob_AsyncAccepted(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/full-sync", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-job-id", "job-0042-abcdef")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"IGNORED-BY-PRIORITY"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	res, err := client.StartJob(context.Background(), "/full-sync", SyncParams{})
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if res.Kind != StartAsync {
		t.Fatalf("expected async kind, got %q", res.Kind)
	}
	if res.JobID != "job-0042-abcdef" {
		t.Fatalf("expected header id, got %q", res.JobID)
	}
}

func TestStartJob_AcceptedWithoutID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/full-sync", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	if _, err := client.StartJob(context.Background(), "/full-sync", SyncParams{}); err == nil {
		t.Fatalf("expected protocol violation error for 202 without id")
	}
}

func TestStartJob_Failure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/full-sync", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream exploded`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.StartJob(context.Background(), "/full-sync", SyncParams{})
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("expected StartError, got %v", err)
	}
	if startErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", startErr.StatusCode)
	}
	if startErr.Body != "upstream exploded" {
		t.Fatalf("expected raw body preview, got %q", startErr.Body)
	}
}

func TestJobStatus_Normalizes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sync/status/abc123xyz9", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"weird-value","message":"reticulating"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	job, err := client.JobStatus(context.Background(), "/sync/status", "abc123xyz9")
	if err != nil {
		t.Fatalf("JobStatus: %v", err)
	}
	if job.Status != StatusRunning {
		t.Fatalf("unknown status must normalize to running, got %q", job.Status)
	}
	if job.Message != "reticulating" {
		t.Fatalf("message lost: %q", job.Message)
	}
}

func TestJobStatus_Non2xxIsError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	if _, err := client.JobStatus(context.Background(), "/sync/status", "abc123xyz9"); err == nil {
		t.Fatalf("expected error on 503")
	}
}
