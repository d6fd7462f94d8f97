package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
)

// Handlers for the two backend-owned config documents the dashboard
// edits: the ERP↔Woo field mapping store and the shipping parameter
// store. Their exact routes vary across backend deployments, so every
// access goes through the endpoint resolver.

func mappingGetHandler(c *fiber.Ctx) error {
	client := backendFromCtx(c)

	doc, attempts, err := client.FetchMapping(c.Context())
	if err != nil {
		return resolveFailure(c, "MAPPING_FETCH_FAILED", err, attempts)
	}
	return c.JSON(ProxyResponse{Success: true, Data: doc})
}

func mappingSaveHandler(c *fiber.Ctx) error {
	client := backendFromCtx(c)
	st := storeFromCtx(c)

	doc, ok := rawJSONBody(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "body must be a JSON document",
		})
	}

	result, attempts, err := client.SaveMapping(c.Context(), doc)
	if err != nil {
		return resolveFailure(c, "MAPPING_SAVE_FAILED", err, attempts)
	}

	recordAuditEvent(c, st, "mapping.save", auditEventOptions{
		ResourceType: "mapping_store",
	})

	return c.JSON(ProxyResponse{Success: true, Data: result})
}

func shippingGetHandler(c *fiber.Ctx) error {
	client := backendFromCtx(c)

	doc, attempts, err := client.FetchShippingParams(c.Context())
	if err != nil {
		return resolveFailure(c, "SHIPPING_FETCH_FAILED", err, attempts)
	}
	return c.JSON(ProxyResponse{Success: true, Data: doc})
}

func shippingSaveHandler(c *fiber.Ctx) error {
	client := backendFromCtx(c)
	st := storeFromCtx(c)

	doc, ok := rawJSONBody(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "body must be a JSON document",
		})
	}

	result, attempts, err := client.SaveShippingParams(c.Context(), doc)
	if err != nil {
		return resolveFailure(c, "SHIPPING_SAVE_FAILED", err, attempts)
	}

	recordAuditEvent(c, st, "shipping.save", auditEventOptions{
		ResourceType: "shipping_params",
	})

	return c.JSON(ProxyResponse{Success: true, Data: result})
}

// backendConfigHandler proxies the backend's sanitized config check.
func backendConfigHandler(c *fiber.Ctx) error {
	client := backendFromCtx(c)

	doc, attempts, err := client.ConfigSnapshot(c.Context())
	if err != nil {
		return resolveFailure(c, "BACKEND_CONFIG_FAILED", err, attempts)
	}
	return c.JSON(ProxyResponse{Success: true, Data: doc})
}

// rawJSONBody validates the request body parses as JSON and returns
// it raw. Shape validation belongs to the backend that owns the
// document; the dashboard only refuses bodies it could not forward.
func rawJSONBody(c *fiber.Ctx) (json.RawMessage, bool) {
	body := c.Body()
	if len(body) == 0 {
		return nil, false
	}
	var probe json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, false
	}
	return probe, true
}
