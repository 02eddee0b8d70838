package v1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/moisesblank/people-flow-desk-sub004/internal/controller/restapi/v1/recognize"
	"github.com/moisesblank/people-flow-desk-sub004/internal/exam"
	"github.com/moisesblank/people-flow-desk-sub004/internal/usecase"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
)

func NewWebhookRoutes(
	apiV1Group fiber.Router,
	queue usecase.QueueUseCase,
	flags usecase.FlagUseCase,
	exams *exam.Registry,
	verifier *recognize.Verifier,
	verifyToken string,
	l logger.Interface,
) {
	r := &V1{
		queue:       queue,
		flags:       flags,
		exams:       exams,
		chain:       recognize.Default(),
		verifier:    verifier,
		verifyToken: verifyToken,
		logger:      l,
	}

	{
		// Ingress
		apiV1Group.Post("/webhooks", r.handleWebhook)
		apiV1Group.Get("/webhooks", r.verifySubscription)

		// Queue
		apiV1Group.Post("/queue/process", r.processQueue)
		apiV1Group.Get("/queue/:id", r.getQueueItem)

		// Flags
		apiV1Group.Get("/flags/:key", r.getFlag)
		apiV1Group.Put("/flags/:key", r.updateFlag)

		// Attempts
		apiV1Group.Post("/attempts", r.createAttempt)
		apiV1Group.Get("/attempts/:id", r.getAttempt)
		apiV1Group.Post("/attempts/:id/heartbeat", r.heartbeatAttempt)
		apiV1Group.Post("/attempts/:id/consent", r.registerConsent)
		apiV1Group.Post("/attempts/:id/start", r.startAttempt)
		apiV1Group.Post("/attempts/:id/finish", r.finishAttempt)
		apiV1Group.Post("/attempts/:id/disqualify", r.disqualifyAttempt)
		apiV1Group.Post("/attempts/:id/exit", r.requestExit)
		apiV1Group.Post("/attempts/:id/exit/confirm", r.confirmExit)
		apiV1Group.Post("/attempts/:id/exit/cancel", r.cancelExit)
	}
}
