package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sqlc-dev/pqtype"
)

// Store wraps access to the dashboard's own database: sync run
// bookkeeping and the audit trail. The backend owns everything else.
type Store struct {
	DB *sql.DB
}

// New creates a new Store that uses a shared *sql.DB with pooling.
func New(database *sql.DB) *Store {
	return &Store{DB: database}
}

// SyncRun is one dashboard-triggered sync operation. BackendJobID is
// set once the backend accepts the operation asynchronously; runs the
// backend completed inline never get one.
type SyncRun struct {
	ID           uuid.UUID
	Kind         string
	Status       string
	DryRun       bool
	Params       json.RawMessage
	BackendJobID sql.NullString
	Result       pqtype.NullRawMessage
	Error        sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  sql.NullTime
}

const syncRunColumns = `id, kind, status, dry_run, params, backend_job_id, result, error, created_at, updated_at, completed_at`

func scanSyncRun(row interface{ Scan(...any) error }) (SyncRun, error) {
	var r SyncRun
	err := row.Scan(&r.ID, &r.Kind, &r.Status, &r.DryRun, &r.Params,
		&r.BackendJobID, &r.Result, &r.Error, &r.CreatedAt, &r.UpdatedAt, &r.CompletedAt)
	return r, err
}

// CreateSyncRun inserts a new pending run row.
func (s *Store) CreateSyncRun(ctx context.Context, id uuid.UUID, kind string, dryRun bool, params any) (SyncRun, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return SyncRun{}, err
	}

	row := s.DB.QueryRowContext(ctx, `
		INSERT INTO sync_runs (id, kind, status, dry_run, params)
		VALUES ($1, $2, 'pending', $3, $4)
		RETURNING `+syncRunColumns,
		id, kind, dryRun, payload)
	return scanSyncRun(row)
}

// ClaimPendingRuns atomically flips up to limit pending runs to
// running and returns them, oldest first. The claim is what keeps two
// worker ticks from triggering the same backend job twice.
func (s *Store) ClaimPendingRuns(ctx context.Context, limit int32) ([]SyncRun, error) {
	rows, err := s.DB.QueryContext(ctx, `
		UPDATE sync_runs SET status = 'running', updated_at = now()
		WHERE id IN (
			SELECT id FROM sync_runs
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+syncRunColumns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		r, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SetRunBackendJob records the backend job id once a trigger is accepted.
func (s *Store) SetRunBackendJob(ctx context.Context, id uuid.UUID, jobID string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE sync_runs SET backend_job_id = $2, updated_at = now()
		WHERE id = $1`, id, jobID)
	return err
}

// CompleteRun marks a run terminal with its result or error payload.
func (s *Store) CompleteRun(ctx context.Context, id uuid.UUID, status string, result json.RawMessage, errMsg *string) error {
	res := pqtype.NullRawMessage{}
	if len(result) > 0 {
		res = pqtype.NullRawMessage{RawMessage: result, Valid: true}
	}
	sqlErr := sql.NullString{}
	if errMsg != nil {
		sqlErr = sql.NullString{String: *errMsg, Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		UPDATE sync_runs
		SET status = $2, result = $3, error = $4, updated_at = now(), completed_at = now()
		WHERE id = $1`, id, status, res, sqlErr)
	return err
}

// GetRunByID fetches one run.
func (s *Store) GetRunByID(ctx context.Context, id uuid.UUID) (SyncRun, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+syncRunColumns+` FROM sync_runs WHERE id = $1`, id)
	return scanSyncRun(row)
}

// RunListFilter narrows ListRuns. Empty fields match everything.
type RunListFilter struct {
	Kind   string
	Status string
	Limit  int32
	Offset int32
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, filter RunListFilter) ([]SyncRun, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+syncRunColumns+` FROM sync_runs
		WHERE ($1 = '' OR kind = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		filter.Kind, filter.Status, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		r, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CountActiveRuns reports pending plus running runs, used to refuse
// stacking a second full sync on top of one already in flight.
func (s *Store) CountActiveRuns(ctx context.Context, kind string) (int64, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx, `
		SELECT count(*) FROM sync_runs
		WHERE kind = $1 AND status IN ('pending', 'running')`, kind).Scan(&n)
	return n, err
}

// FailStaleRuns fails running runs that have not been touched since
// the cutoff. A crash mid-run leaves the row in running with nothing
// ever completing it, which would block the full-sync trigger forever.
func (s *Store) FailStaleRuns(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE sync_runs
		SET status = 'failed', error = $2, updated_at = now(), completed_at = now()
		WHERE status = 'running' AND updated_at < $1`, cutoff, reason)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// IsUniqueViolation reports whether err is a postgres unique
// constraint violation, such as the single-active-full-sync index.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// DeleteExpiredRuns removes terminal runs older than the cutoff.
func (s *Store) DeleteExpiredRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM sync_runs
		WHERE status IN ('completed', 'failed') AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AuditEventParams captures one admin action for the audit trail.
type AuditEventParams struct {
	Action       string
	Actor        string
	ResourceType string
	ResourceID   string
	IP           string
	UserAgent    string
	Metadata     json.RawMessage
}

// InsertAuditEvent records an admin action. Failures are the caller's
// to ignore; auditing never blocks the action itself.
func (s *Store) InsertAuditEvent(ctx context.Context, p AuditEventParams) error {
	meta := json.RawMessage(`{}`)
	if len(p.Metadata) > 0 {
		meta = p.Metadata
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO audit_events (action, actor, resource_type, resource_id, ip, user_agent, metadata)
		VALUES ($1, $2, nullif($3, ''), nullif($4, ''), nullif($5, ''), nullif($6, ''), $7)`,
		p.Action, p.Actor, p.ResourceType, p.ResourceID, p.IP, p.UserAgent, meta)
	return err
}

// AuditEvent is one recorded admin action.
type AuditEvent struct {
	ID           int64
	Action       string
	Actor        string
	ResourceType sql.NullString
	ResourceID   sql.NullString
	IP           sql.NullString
	UserAgent    sql.NullString
	Metadata     json.RawMessage
	CreatedAt    time.Time
}

// ListAuditEvents returns audit events newest first.
func (s *Store) ListAuditEvents(ctx context.Context, limit, offset int32) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, action, actor, resource_type, resource_id, ip, user_agent, metadata, created_at
		FROM audit_events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.ID, &e.Action, &e.Actor, &e.ResourceType, &e.ResourceID,
			&e.IP, &e.UserAgent, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteExpiredAuditEvents removes audit events older than the cutoff.
func (s *Store) DeleteExpiredAuditEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM audit_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
