package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"woosync/internal/backend"
	"woosync/internal/runs"
	"woosync/internal/store"
)

func storeFromCtx(c *fiber.Ctx) *store.Store {
	st, _ := c.Locals("store").(*store.Store)
	return st
}

func newRunID() uuid.UUID {
	if id, err := uuid.NewV7(); err == nil {
		return id
	}
	return uuid.New()
}

// syncFullHandler enqueues a full sync run. The run worker triggers
// the backend job and polls it; the UI tracks progress through
// /api/sync/runs/:id. Refused while another full sync is pending or
// running, since the backend serializes on the same catalogs anyway.
func syncFullHandler(c *fiber.Ctx) error {
	st := storeFromCtx(c)

	var req TriggerSyncRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(TriggerSyncResponse{
				Success: false,
				Code:    "BAD_REQUEST",
				Error:   "invalid JSON body",
			})
		}
	}

	active, err := st.CountActiveRuns(c.Context(), runs.KindFull)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(TriggerSyncResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}
	if active > 0 {
		return c.Status(fiber.StatusConflict).JSON(TriggerSyncResponse{
			Success: false,
			Code:    "SYNC_IN_PROGRESS",
			Error:   "a full sync is already pending or running",
		})
	}

	params := backend.SyncParams{DryRun: req.DryRun, PurgeBin: req.PurgeBin}
	run, err := st.CreateSyncRun(c.Context(), newRunID(), runs.KindFull, req.DryRun, params)
	if err != nil {
		// Two concurrent triggers can both pass the count check; the
		// partial unique index on active full runs catches the loser.
		if store.IsUniqueViolation(err) {
			return c.Status(fiber.StatusConflict).JSON(TriggerSyncResponse{
				Success: false,
				Code:    "SYNC_IN_PROGRESS",
				Error:   "a full sync is already pending or running",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(TriggerSyncResponse{
			Success: false,
			Code:    "RUN_CREATE_FAILED",
			Error:   err.Error(),
		})
	}

	recordAuditEvent(c, st, "sync.full.trigger", auditEventOptions{
		ResourceType: "sync_run",
		ResourceID:   run.ID.String(),
		Metadata:     params,
	})

	return c.Status(fiber.StatusAccepted).JSON(TriggerSyncResponse{
		Success: true,
		RunID:   run.ID.String(),
	})
}

// syncPartialHandler enqueues a sync restricted to specific SKUs.
func syncPartialHandler(c *fiber.Ctx) error {
	st := storeFromCtx(c)

	var req TriggerPartialSyncRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(TriggerSyncResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "invalid JSON body",
		})
	}

	skus := make([]string, 0, len(req.SKUs))
	for _, s := range req.SKUs {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			skus = append(skus, trimmed)
		}
	}
	if len(skus) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(TriggerSyncResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "at least one SKU is required",
		})
	}

	params := backend.PartialSyncParams{DryRun: req.DryRun, SKUs: skus}
	run, err := st.CreateSyncRun(c.Context(), newRunID(), runs.KindPartial, req.DryRun, params)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(TriggerSyncResponse{
			Success: false,
			Code:    "RUN_CREATE_FAILED",
			Error:   err.Error(),
		})
	}

	recordAuditEvent(c, st, "sync.partial.trigger", auditEventOptions{
		ResourceType: "sync_run",
		ResourceID:   run.ID.String(),
		Metadata:     params,
	})

	return c.Status(fiber.StatusAccepted).JSON(TriggerSyncResponse{
		Success: true,
		RunID:   run.ID.String(),
	})
}

func runToItem(r store.SyncRun) RunItem {
	item := RunItem{
		ID:        r.ID.String(),
		Kind:      r.Kind,
		Status:    r.Status,
		DryRun:    r.DryRun,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.BackendJobID.Valid {
		item.BackendJobID = r.BackendJobID.String
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		item.CompletedAt = &t
	}
	return item
}

// runsListHandler lists sync runs, newest first.
func runsListHandler(c *fiber.Ctx) error {
	st := storeFromCtx(c)

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ListRunsResponse{
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
			return c.Status(fiber.StatusBadRequest).JSON(ListRunsResponse{
				Success: false,
				Code:    "BAD_REQUEST",
				Error:   "invalid offset value",
			})
		}
		offset = n
	}

	list, err := st.ListRuns(c.Context(), store.RunListFilter{
		Kind:   c.Query("kind"),
		Status: c.Query("status"),
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ListRunsResponse{
			Success: false,
			Code:    "RUN_LIST_FAILED",
			Error:   err.Error(),
		})
	}

	items := make([]RunItem, 0, len(list))
	for _, r := range list {
		items = append(items, runToItem(r))
	}

	return c.JSON(ListRunsResponse{Success: true, Runs: items})
}

// runDetailHandler returns one run including its result or error.
func runDetailHandler(c *fiber.Ctx) error {
	st := storeFromCtx(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(RunDetailResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "invalid run id",
		})
	}

	run, err := st.GetRunByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(RunDetailResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "run not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(RunDetailResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}

	detail := RunDetailItem{RunItem: runToItem(run)}
	if len(run.Params) > 0 {
		detail.Params = json.RawMessage(run.Params)
	}
	if run.Result.Valid {
		detail.Result = json.RawMessage(run.Result.RawMessage)
	}
	if run.Error.Valid {
		detail.Error = run.Error.String
	}

	return c.JSON(RunDetailResponse{Success: true, Run: &detail})
}
