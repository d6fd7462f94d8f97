package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"woosync/internal/config"
)

func TestBackoff_LinearRampWithCap(t *testing.T) {
	b := NewBackoff(nil)

	want := []time.Duration{
		800 * time.Millisecond,
		1200 * time.Millisecond,
		1600 * time.Millisecond,
		2000 * time.Millisecond,
		2400 * time.Millisecond,
		2800 * time.Millisecond,
		3200 * time.Millisecond,
		3600 * time.Millisecond,
		4000 * time.Millisecond,
		4000 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Fatalf("poll %d: expected %v, got %v", i+1, w, got)
		}
	}
}

func TestBackoff_ConfigOverrides(t *testing.T) {
	b := NewBackoff(&config.PollerConfig{
		InitialIntervalMs: 100,
		IntervalStepMs:    50,
		MaxIntervalMs:     200,
	})

	want := []time.Duration{
		100 * time.Millisecond,
		150 * time.Millisecond,
		200 * time.Millisecond,
		200 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Fatalf("poll %d: expected %v, got %v", i+1, w, got)
		}
	}
}

// fastPoller swaps the sleep out so tests record the ramp instead of
// waiting it out.
func fastPoller(client *Client, cfg config.PollerConfig, waits *[]time.Duration) *Poller {
	p := NewPoller(client, cfg)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		if waits != nil {
			*waits = append(*waits, d)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	return p
}

func TestAwait_PollsUntilDone(t *testing.T) {
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/sync/status/job-abcdef123", func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			_, _ = w.Write([]byte(`{"status":"queued"}`))
		case 2:
			_, _ = w.Write([]byte(`{"status":"running","progress":0.5}`))
		default:
			_, _ = w.Write([]byte(`{"status":"done","result":{"updated":7}}`))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	var waits []time.Duration
	p := fastPoller(client, config.PollerConfig{}, &waits)

	job, err := p.Await(context.Background(), "/sync/status", "job-abcdef123")
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if job.Status != StatusDone {
		t.Fatalf("expected done, got %q", job.Status)
	}
	if string(job.Result) != `{"updated":7}` {
		t.Fatalf("result lost: %s", job.Result)
	}

	// Terminal state stops the loop: exactly three status calls, no more.
	if n := calls.Load(); n != 3 {
		t.Fatalf("expected 3 status calls, got %d", n)
	}

	// One wait precedes each poll and the ramp is non-decreasing.
	if len(waits) != 3 {
		t.Fatalf("expected 3 waits, got %d", len(waits))
	}
	if waits[0] != 800*time.Millisecond || waits[1] != 1200*time.Millisecond || waits[2] != 1600*time.Millisecond {
		t.Fatalf("unexpected ramp: %v", waits)
	}
}

func TestAwait_SwallowsTransientFailures(t *testing.T) {
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/sync/status/job-abcdef123", func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			// Non-JSON body on a 200 is also a transient poll failure.
			_, _ = w.Write([]byte(`<html>proxy error</html>`))
		default:
			_, _ = w.Write([]byte(`{"status":"done"}`))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	p := fastPoller(client, config.PollerConfig{}, nil)

	job, err := p.Await(context.Background(), "/sync/status", "job-abcdef123")
	if err != nil {
		t.Fatalf("Await should survive transient failures: %v", err)
	}
	if job.Status != StatusDone {
		t.Fatalf("expected done, got %q", job.Status)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("expected 3 status calls, got %d", n)
	}
}

func TestAwait_TerminalError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sync/status/job-abcdef123", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","error":{"detail":"sku collision"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	p := fastPoller(client, config.PollerConfig{}, nil)

	job, err := p.Await(context.Background(), "/sync/status", "job-abcdef123")
	var failed *JobFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected JobFailedError, got %v", err)
	}
	if job == nil || job.Status != StatusError {
		t.Fatalf("terminal job snapshot missing or wrong: %+v", job)
	}
	if failed.Job != job {
		t.Fatalf("error must carry the terminal snapshot")
	}
}

func TestAwait_Cancellation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"running"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	p := NewPoller(client, config.PollerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Await(ctx, "/sync/status", "job-abcdef123"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAwait_MaxDuration(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"running"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	p := NewPoller(client, config.PollerConfig{
		InitialIntervalMs: 1,
		IntervalStepMs:    1,
		MaxIntervalMs:     5,
		MaxDurationMs:     40,
	})

	_, err := p.Await(context.Background(), "/sync/status", "job-abcdef123")
	if !errors.Is(err, ErrPollDeadline) {
		t.Fatalf("expected ErrPollDeadline, got %v", err)
	}
}
