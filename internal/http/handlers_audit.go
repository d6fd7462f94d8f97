package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// auditListHandler exposes the dashboard's own audit trail.
func auditListHandler(c *fiber.Ctx) error {
	st := storeFromCtx(c)

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ListAuditResponse{
				Success: false,
				Code:    "BAD_REQUEST",
				Error:   "invalid limit value",
			})
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	offset := 0
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ListAuditResponse{
				Success: false,
				Code:    "BAD_REQUEST",
				Error:   "invalid offset value",
			})
		}
		offset = n
	}

	events, err := st.ListAuditEvents(c.Context(), int32(limit), int32(offset))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ListAuditResponse{
			Success: false,
			Code:    "AUDIT_LIST_FAILED",
			Error:   err.Error(),
		})
	}

	items := make([]AuditItem, 0, len(events))
	for _, e := range events {
		item := AuditItem{
			ID:        e.ID,
			Action:    e.Action,
			Actor:     e.Actor,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		}
		if e.ResourceType.Valid {
			item.ResourceType = e.ResourceType.String
		}
		if e.ResourceID.Valid {
			item.ResourceID = e.ResourceID.String
		}
		if e.IP.Valid {
			item.IP = e.IP.String
		}
		if e.UserAgent.Valid {
			item.UserAgent = e.UserAgent.String
		}
		items = append(items, item)
	}

	return c.JSON(ListAuditResponse{Success: true, Events: items})
}
