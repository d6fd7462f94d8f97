package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"woosync/internal/config"
	"woosync/internal/metrics"
)

const (
	defaultInitialInterval = 800 * time.Millisecond
	defaultIntervalStep    = 400 * time.Millisecond
	defaultMaxInterval     = 4 * time.Second
)

// ErrPollDeadline is returned when a configured max poll duration
// elapses before the job reaches a terminal state.
var ErrPollDeadline = errors.New("poll deadline exceeded before job completion")

// Backoff produces the linear-ramp wait intervals between status
// polls: start at the initial interval, add a fixed step after every
// poll, never exceed the cap. Not safe for concurrent use; each
// polling session owns its own Backoff.
type Backoff struct {
	next time.Duration
	step time.Duration
	max  time.Duration
}

// NewBackoff builds a Backoff from poller configuration, falling back
// to the 800ms/+400ms/4s ramp when fields are unset.
func NewBackoff(cfg *config.PollerConfig) *Backoff {
	initial := defaultInitialInterval
	step := defaultIntervalStep
	max := defaultMaxInterval
	if cfg != nil {
		if cfg.InitialIntervalMs > 0 {
			initial = time.Duration(cfg.InitialIntervalMs) * time.Millisecond
		}
		if cfg.IntervalStepMs > 0 {
			step = time.Duration(cfg.IntervalStepMs) * time.Millisecond
		}
		if cfg.MaxIntervalMs > 0 {
			max = time.Duration(cfg.MaxIntervalMs) * time.Millisecond
		}
	}
	if initial > max {
		initial = max
	}
	return &Backoff{next: initial, step: step, max: max}
}

// Next returns the wait before the upcoming poll and advances the ramp.
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next += b.step
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

// Poller drives a job to completion by polling its status endpoint.
type Poller struct {
	client *Client
	cfg    config.PollerConfig

	// sleep is swapped out in tests to record the backoff ramp without
	// waiting it out.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller builds a Poller over the given client.
func NewPoller(client *Client, cfg config.PollerConfig) *Poller {
	return &Poller{
		client: client,
		cfg:    cfg,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Await polls the status endpoint for the job until it reaches done
// or error, waiting the backoff ramp between polls. A single failed
// status check is tolerated and retried on the next tick; only
// cancellation or the optional configured max duration stop the loop
// early. The reference deployment runs with no max duration, so very
// long syncs are expected to poll indefinitely.
//
// Exactly one status request is in flight at any time, and no request
// is issued for a job after its terminal state has been observed.
func (p *Poller) Await(ctx context.Context, statusPath, id string) (*Job, error) {
	if p.cfg.MaxDurationMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx,
			time.Duration(p.cfg.MaxDurationMs)*time.Millisecond, ErrPollDeadline)
		defer cancel()
	}

	backoff := NewBackoff(&p.cfg)

	for {
		if err := p.sleep(ctx, backoff.Next()); err != nil {
			return nil, pollCtxErr(ctx, err)
		}

		job, err := p.client.JobStatus(ctx, statusPath, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, pollCtxErr(ctx, ctx.Err())
			}
			// Transient: a single failed status check does not abort the
			// operation.
			p.client.logWarn("job status check failed", "job_id", id, "error", err)
			metrics.RecordPollError()
			continue
		}

		metrics.RecordPoll(string(job.Status))

		if job.Status.Terminal() {
			if job.Status == StatusError {
				return job, &JobFailedError{Job: job}
			}
			return job, nil
		}
	}
}

func pollCtxErr(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, err) {
		return cause
	}
	return err
}

// JobFailedError carries the terminal error snapshot of a failed job.
type JobFailedError struct {
	Job *Job
}

func (e *JobFailedError) Error() string {
	detail := e.Job.Message
	if detail == "" && len(e.Job.Error) > 0 {
		detail = string(e.Job.Error)
	}
	if detail == "" {
		detail = "no error detail supplied"
	}
	return fmt.Sprintf("sync job %s failed: %s", e.Job.ID, detail)
}
