package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/moisesblank/people-flow-desk-sub004/internal/controller/restapi/v1/response"
	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

type processQueueRequest struct {
	QueueID string `json:"queue_id"`
}

// @Summary 	Process queue
// @Description Processes one item by id, or claims and processes a batch of pending items
// @Tags 		queue
// @Accept 		json
// @Produce 	json
// @Param 		request body processQueueRequest false "Optional target item"
// @Success 	200 {object} dto.SweepResult
// @Failure 	400 {object} response.Error "Invalid queue_id"
// @Router 		/v1/queue/process [post]
func (r *V1) processQueue(ctx *fiber.Ctx) error {
	var req processQueueRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
		}
	}

	if req.QueueID != "" {
		id, err := uuid.Parse(req.QueueID)
		if err != nil {
			return errorResponse(ctx, http.StatusBadRequest, "invalid queue_id")
		}

		result := r.queue.ProcessOne(ctx.UserContext(), id)

		return ctx.Status(http.StatusOK).JSON(result)
	}

	sweep := r.queue.Sweep(ctx.UserContext())

	return ctx.Status(http.StatusOK).JSON(sweep)
}

// @Summary 	Get queue item
// @Tags 		queue
// @Produce 	json
// @Param 		id path string true "Queue item ID(uuid)"
// @Success 	200 {object} response.QueueItem
// @Failure 	400 {object} response.Error "Invalid ID"
// @Failure 	404 {object} response.Error "Item not found"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/queue/{id} [get]
func (r *V1) getQueueItem(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	item, err := r.queue.GetItem(ctx.UserContext(), id)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "queue item not found")
		}
		r.logger.Error(err, "restapi - v1 - getQueueItem")

		return errorResponse(ctx, http.StatusInternalServerError, "storage problems")
	}

	return ctx.Status(http.StatusOK).JSON(toQueueItemResponse(item))
}

func toQueueItemResponse(item *entity.QueueItem) response.QueueItem {
	resp := response.QueueItem{
		ID:         item.ID.String(),
		Source:     item.Source,
		Event:      item.Event,
		Status:     string(item.Status),
		RetryCount: item.RetryCount,
		MaxRetries: item.MaxRetries,
		Payload:    item.Payload,
		CreatedAt:  item.CreatedAt.Format(time.RFC3339),
	}
	if item.ErrorMessage != nil {
		resp.Error = *item.ErrorMessage
	}
	if item.ProcessedAt != nil {
		resp.ProcessedAt = item.ProcessedAt.Format(time.RFC3339)
	}

	return resp
}
