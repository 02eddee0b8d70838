package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/moisesblank/people-flow-desk-sub004/internal/controller/restapi/v1/response"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

type updateFlagRequest struct {
	Enabled   bool   `json:"enabled"`
	UpdatedBy string `json:"updated_by"`
}

// @Summary 	Get feature flag
// @Description Returns the resolved value; an absent flag resolves to its permissive default
// @Tags 		flags
// @Produce 	json
// @Param 		key path string true "Flag key"
// @Success 	200 {object} response.Flag
// @Router 		/v1/flags/{key} [get]
func (r *V1) getFlag(ctx *fiber.Ctx) error {
	key := ctx.Params("key")

	flag, err := r.flags.Get(ctx.UserContext(), key)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return ctx.Status(http.StatusOK).JSON(response.Flag{
				Key:     key,
				Enabled: r.flags.Resolve(ctx.UserContext(), key),
			})
		}
		r.logger.Error(err, "restapi - v1 - getFlag")

		return errorResponse(ctx, http.StatusInternalServerError, "storage problems")
	}

	return ctx.Status(http.StatusOK).JSON(response.Flag{
		Key:       flag.Key,
		Enabled:   flag.Value,
		UpdatedBy: flag.UpdatedBy,
		UpdatedAt: flag.UpdatedAt.Format(time.RFC3339),
	})
}

// @Summary 	Update feature flag
// @Tags 		flags
// @Accept 		json
// @Produce 	json
// @Param 		key 	path string 		  true "Flag key"
// @Param 		request body updateFlagRequest true "New value"
// @Success 	200 {object} response.Flag
// @Failure 	400 {object} response.Error "Invalid body"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/flags/{key} [put]
func (r *V1) updateFlag(ctx *fiber.Ctx) error {
	key := ctx.Params("key")

	var req updateFlagRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	if err := r.flags.Update(ctx.UserContext(), key, req.Enabled, req.UpdatedBy); err != nil {
		r.logger.Error(err, "restapi - v1 - updateFlag")

		return errorResponse(ctx, http.StatusInternalServerError, "storage problems")
	}

	return ctx.Status(http.StatusOK).JSON(response.Flag{
		Key:       key,
		Enabled:   req.Enabled,
		UpdatedBy: req.UpdatedBy,
		UpdatedAt: time.Now().Format(time.RFC3339),
	})
}
