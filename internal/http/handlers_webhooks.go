package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// inboxListHandler lists webhook deliveries stored in the backend's
// inbox. kind filters to raw payloads or normalized orders.
func inboxListHandler(c *fiber.Ctx) error {
	client := backendFromCtx(c)

	kind := strings.ToLower(c.Query("kind"))
	switch kind {
	case "", "raw", "orders", "all":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "kind must be raw, orders, or all",
		})
	}

	list, attempts, err := client.ListInbox(c.Context(), kind)
	if err != nil {
		return resolveFailure(c, "INBOX_LIST_FAILED", err, attempts)
	}
	return c.JSON(ProxyResponse{Success: true, Data: list})
}

// inboxItemHandler fetches one stored delivery by its inbox path.
func inboxItemHandler(c *fiber.Ctx) error {
	client := backendFromCtx(c)

	path := c.Query("path")
	if strings.TrimSpace(path) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "path query parameter is required",
		})
	}

	item, attempts, err := client.GetInboxItem(c.Context(), path)
	if err != nil {
		return resolveFailure(c, "INBOX_GET_FAILED", err, attempts)
	}
	return c.JSON(ProxyResponse{Success: true, Data: item})
}

type replayRequest struct {
	Path string `json:"path"`
}

// inboxReplayHandler re-enqueues a stored delivery on the backend,
// typically after a processing bug has been fixed.
func inboxReplayHandler(c *fiber.Ctx) error {
	client := backendFromCtx(c)
	st := storeFromCtx(c)

	var req replayRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "body must include a non-empty path",
		})
	}

	result, attempts, err := client.ReplayInbox(c.Context(), req.Path)
	if err != nil {
		return resolveFailure(c, "INBOX_REPLAY_FAILED", err, attempts)
	}

	recordAuditEvent(c, st, "webhook.replay", auditEventOptions{
		ResourceType: "webhook_delivery",
		ResourceID:   req.Path,
	})

	return c.JSON(ProxyResponse{Success: true, Data: result})
}
