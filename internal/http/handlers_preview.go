package http

import (
	"github.com/gofiber/fiber/v2"

	"woosync/internal/backend"
	"woosync/internal/cache"
)

func backendFromCtx(c *fiber.Ctx) *backend.Client {
	client, _ := c.Locals("backend").(*backend.Client)
	return client
}

func previewFromCtx(c *fiber.Ctx) *cache.PreviewStore {
	p, _ := c.Locals("preview").(*cache.PreviewStore)
	return p
}

// previewHandler serves the sync preview snapshot. The cached copy is
// returned unless the caller forces a refresh or nothing usable is
// cached; a fresh fetch goes through the endpoint resolver and is
// re-cached for the next reader.
func previewHandler(c *fiber.Ctx) error {
	client := backendFromCtx(c)
	previewStore := previewFromCtx(c)

	refresh := c.Query("refresh") == "true"

	if !refresh && previewStore != nil {
		if snapshot, ok := previewStore.Get(c.Context()); ok {
			return c.JSON(PreviewResponse{
				Success: true,
				Cached:  true,
				Preview: snapshot,
			})
		}
	}

	snapshot, attempts, err := client.FetchPreview(c.Context())
	if err != nil {
		return resolveFailure(c, "PREVIEW_FAILED", err, attempts)
	}

	if previewStore != nil {
		previewStore.Set(c.Context(), snapshot)
	}

	return c.JSON(PreviewResponse{
		Success: true,
		Cached:  false,
		Preview: snapshot,
	})
}

// resolveFailure renders a backend resolution failure, carrying the
// per-candidate attempt list when the resolver exhausted its routes.
func resolveFailure(c *fiber.Ctx, code string, err error, attempts []backend.Attempt) error {
	return c.Status(fiber.StatusBadGateway).JSON(ProxyResponse{
		Success:  false,
		Code:     code,
		Error:    err.Error(),
		Attempts: attempts,
	})
}
