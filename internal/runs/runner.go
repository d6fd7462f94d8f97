package runs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"woosync/internal/backend"
	"woosync/internal/cache"
	"woosync/internal/config"
	"woosync/internal/metrics"
	"woosync/internal/store"
)

// SyncClient is the slice of the backend client the runner needs.
// Narrowed to an interface so tests can drive the runner without a
// live backend.
type SyncClient interface {
	StartFullSync(ctx context.Context, params backend.SyncParams) (*backend.StartResult, error)
	StartPartialSync(ctx context.Context, params backend.PartialSyncParams) (*backend.StartResult, error)
	StatusPath() string
}

// JobAwaiter polls one backend job to completion.
type JobAwaiter interface {
	Await(ctx context.Context, statusPath, id string) (*backend.Job, error)
}

// RunStore is the slice of the store the runner writes through.
type RunStore interface {
	ClaimPendingRuns(ctx context.Context, limit int32) ([]store.SyncRun, error)
	SetRunBackendJob(ctx context.Context, id uuid.UUID, jobID string) error
	CompleteRun(ctx context.Context, id uuid.UUID, status string, result json.RawMessage, errMsg *string) error
	FailStaleRuns(ctx context.Context, cutoff time.Time, reason string) (int64, error)
	DeleteExpiredRuns(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteExpiredAuditEvents(ctx context.Context, cutoff time.Time) (int64, error)
}

// Runner polls the sync_runs table and executes claimed runs against
// the backend: trigger, then poll to completion when the backend
// deferred the work. It encapsulates concurrency limits, polling
// intervals, and periodic retention cleanup.
type Runner struct {
	cfg     *config.Config
	store   RunStore
	client  SyncClient
	poller  JobAwaiter
	preview *cache.PreviewStore
	logger  *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(cfg *config.Config, st RunStore, client SyncClient, poller JobAwaiter, preview *cache.PreviewStore, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		store:   st,
		client:  client,
		poller:  poller,
		preview: preview,
		logger:  logger,
	}
}

// Start launches the worker loop in the current goroutine. Callers
// typically run this in its own goroutine and keep the process alive.
func (r *Runner) Start(ctx context.Context) {
	pollInterval := time.Duration(r.cfg.Worker.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	maxRuns := r.cfg.Worker.MaxConcurrentRuns
	if maxRuns <= 0 {
		// Concurrent full syncs fight over the same catalogs on the
		// backend, so the default is strictly serial.
		maxRuns = 1
	}

	sem := make(chan struct{}, maxRuns)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastCleanup time.Time
	cleanupInterval := time.Duration(r.cfg.Retention.CleanupIntervalMinutes) * time.Minute
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}

	staleAfter := time.Duration(r.cfg.Backend.SyncTimeoutMs) * time.Millisecond
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}

	// A crash mid-run leaves rows stuck in running; reclaim them before
	// the first tick so the full-sync trigger is not refused forever.
	r.reclaimStaleRuns(ctx, staleAfter)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := time.Now().UTC()
		if lastCleanup.IsZero() || now.Sub(lastCleanup) >= cleanupInterval {
			r.reclaimStaleRuns(ctx, staleAfter)
			if r.cfg.Retention.Enabled {
				_ = CleanupExpiredData(ctx, r.cfg, r.store)
			}
			lastCleanup = now
		}

		capacity := maxRuns - len(sem)
		if capacity <= 0 {
			continue
		}

		runs, err := r.store.ClaimPendingRuns(ctx, int32(capacity))
		if err != nil {
			r.logWarn("claim pending runs failed", "error", err)
			continue
		}

		for _, run := range runs {
			run := run
			sem <- struct{}{}
			go func() {
				defer func() { <-sem }()
				r.execute(ctx, run)
			}()
		}
	}
}

// execute drives one claimed run to a terminal state. Exactly one
// backend job is ever triggered per run row.
func (r *Runner) execute(ctx context.Context, run store.SyncRun) {
	r.logInfo("sync run started", "run_id", run.ID.String(), "kind", run.Kind, "dry_run", run.DryRun)

	start, err := r.trigger(ctx, run)
	if err != nil {
		r.fail(ctx, run, err)
		return
	}

	result := start.Result
	if start.Kind == backend.StartAsync {
		if err := r.store.SetRunBackendJob(ctx, run.ID, start.JobID); err != nil {
			r.logWarn("record backend job id failed", "run_id", run.ID.String(), "error", err)
		}

		job, err := r.poller.Await(ctx, r.client.StatusPath(), start.JobID)
		if err != nil {
			var failed *backend.JobFailedError
			if errors.As(err, &failed) && failed.Job != nil && len(failed.Job.Error) > 0 {
				r.failWithDetail(ctx, run, err.Error())
			} else {
				r.fail(ctx, run, err)
			}
			return
		}
		result = job.Result
	}

	if err := r.store.CompleteRun(ctx, run.ID, string(StatusCompleted), result, nil); err != nil {
		r.logWarn("complete run failed", "run_id", run.ID.String(), "error", err)
	}
	metrics.RecordSyncRun(run.Kind, string(StatusCompleted))
	r.logInfo("sync run completed", "run_id", run.ID.String(), "kind", run.Kind)

	// A dry run never wrote anything, so the cached preview is still
	// an accurate diff.
	if !run.DryRun && r.preview != nil {
		r.preview.Invalidate(ctx)
	}
}

// reclaimStaleRuns fails runs stuck in running past the sync timeout.
// A legitimately long run that outlives the cutoff is failed here and
// then overwritten by its executor's CompleteRun if that executor is
// in fact still alive.
func (r *Runner) reclaimStaleRuns(ctx context.Context, staleAfter time.Duration) {
	cutoff := time.Now().UTC().Add(-staleAfter)
	n, err := r.store.FailStaleRuns(ctx, cutoff, "abandoned: run made no progress within the sync timeout")
	if err != nil {
		r.logWarn("reclaim stale runs failed", "error", err)
		return
	}
	if n > 0 {
		metrics.RecordStaleRuns(n)
		r.logWarn("stale running runs marked failed", "count", n)
	}
}

func (r *Runner) trigger(ctx context.Context, run store.SyncRun) (*backend.StartResult, error) {
	switch run.Kind {
	case KindFull:
		var params backend.SyncParams
		if len(run.Params) > 0 {
			if err := json.Unmarshal(run.Params, &params); err != nil {
				return nil, err
			}
		}
		return r.client.StartFullSync(ctx, params)
	case KindPartial:
		var params backend.PartialSyncParams
		if len(run.Params) > 0 {
			if err := json.Unmarshal(run.Params, &params); err != nil {
				return nil, err
			}
		}
		return r.client.StartPartialSync(ctx, params)
	default:
		return nil, errors.New("unknown sync run kind: " + run.Kind)
	}
}

func (r *Runner) fail(ctx context.Context, run store.SyncRun, cause error) {
	r.failWithDetail(ctx, run, cause.Error())
}

func (r *Runner) failWithDetail(ctx context.Context, run store.SyncRun, detail string) {
	if err := r.store.CompleteRun(ctx, run.ID, string(StatusFailed), nil, &detail); err != nil {
		r.logWarn("mark run failed errored", "run_id", run.ID.String(), "error", err)
	}
	metrics.RecordSyncRun(run.Kind, string(StatusFailed))
	r.logWarn("sync run failed", "run_id", run.ID.String(), "kind", run.Kind, "error", detail)
}

func (r *Runner) logInfo(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

func (r *Runner) logWarn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
