package restapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"

	"github.com/moisesblank/people-flow-desk-sub004/config"
	v1 "github.com/moisesblank/people-flow-desk-sub004/internal/controller/restapi/v1"
	"github.com/moisesblank/people-flow-desk-sub004/internal/controller/restapi/v1/recognize"
	"github.com/moisesblank/people-flow-desk-sub004/internal/exam"
	"github.com/moisesblank/people-flow-desk-sub004/internal/usecase"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
)

// @title People Flow Desk
// @version 1.0.0
// @host localhost:8080
// @BasePath /v1
func NewRouter(
	app *fiber.App,
	cfg *config.Config,
	queue usecase.QueueUseCase,
	flags usecase.FlagUseCase,
	exams *exam.Registry,
	l logger.Interface,
) {
	// Swagger
	if cfg.Swagger.Enabled {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	verifier := recognize.NewVerifier(map[string]string{
		"hotmart":   cfg.Webhook.HotmartSecret,
		"cms":       cfg.Webhook.CMSSecret,
		"messaging": cfg.Webhook.MessagingSecret,
	})

	// Routers
	apiV1Group := app.Group("/v1")
	{
		v1.NewWebhookRoutes(apiV1Group, queue, flags, exams, verifier, cfg.Webhook.VerifyToken, l)
	}
}
