package v1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/moisesblank/people-flow-desk-sub004/internal/controller/restapi/v1/response"
)

func errorResponse(ctx *fiber.Ctx, code int, msg string) error {
	return ctx.Status(code).JSON(response.Error{Status: "error", Message: msg})
}
