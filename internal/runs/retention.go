package runs

import (
	"context"
	"time"

	"woosync/internal/config"
	"woosync/internal/metrics"
)

// RetentionStats captures the number of records deleted by TTL cleanup.
type RetentionStats struct {
	RunsDeleted  int64 `json:"runsDeleted"`
	AuditDeleted int64 `json:"auditDeleted"`
}

// CleanupExpiredData deletes old sync runs and audit events based on
// retention settings so that the database does not grow without bound.
func CleanupExpiredData(ctx context.Context, cfg *config.Config, st RunStore) RetentionStats {
	now := time.Now().UTC()
	var stats RetentionStats

	if cfg.Retention.RunDays > 0 {
		cutoff := now.AddDate(0, 0, -cfg.Retention.RunDays)
		if n, err := st.DeleteExpiredRuns(ctx, cutoff); err == nil && n > 0 {
			stats.RunsDeleted += n
			metrics.RecordRetentionRuns(n)
		}
	}

	if cfg.Retention.AuditDays > 0 {
		cutoff := now.AddDate(0, 0, -cfg.Retention.AuditDays)
		if n, err := st.DeleteExpiredAuditEvents(ctx, cutoff); err == nil && n > 0 {
			stats.AuditDeleted += n
			metrics.RecordRetentionAudit(n)
		}
	}

	return stats
}
