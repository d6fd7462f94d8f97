package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"woosync/internal/store"
)

type auditEventOptions struct {
	ResourceType string
	ResourceID   string
	Metadata     any
}

// recordAuditEvent writes one admin action to the audit trail.
// Best-effort: a failed insert never blocks the action it describes.
func recordAuditEvent(c *fiber.Ctx, st *store.Store, action string, opts auditEventOptions) {
	if st == nil || st.DB == nil {
		return
	}

	var meta json.RawMessage
	if opts.Metadata != nil {
		if b, err := json.Marshal(opts.Metadata); err == nil {
			meta = b
		}
	}

	_ = st.InsertAuditEvent(c.Context(), store.AuditEventParams{
		Action:       action,
		Actor:        actorName(c),
		ResourceType: opts.ResourceType,
		ResourceID:   opts.ResourceID,
		IP:           c.IP(),
		UserAgent:    c.Get("User-Agent"),
		Metadata:     meta,
	})
}
