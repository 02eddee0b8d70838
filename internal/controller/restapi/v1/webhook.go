package v1

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/moisesblank/people-flow-desk-sub004/internal/controller/restapi/v1/recognize"
	"github.com/moisesblank/people-flow-desk-sub004/internal/controller/restapi/v1/response"
	"github.com/moisesblank/people-flow-desk-sub004/internal/dto"
)

// inlineProcessTimeout bounds the opportunistic first attempt kicked off
// right after enqueue. The item is already durable; if this attempt loses
// the race or times out, the sweep worker picks it up.
const inlineProcessTimeout = 30 * time.Second

// @Summary 	Ingest webhook
// @Description Classifies, verifies and durably enqueues an inbound event, then kicks off a best-effort first processing attempt
// @Tags 		webhooks
// @Accept 		json
// @Produce 	json
// @Success 	202 {object} response.Queued
// @Failure 	401 {object} response.Error "Invalid credentials"
// @Failure 	500 {object} response.Error "Enqueue failed"
// @Router 		/v1/webhooks [post]
func (r *V1) handleWebhook(ctx *fiber.Ctx) error {
	started := time.Now()

	// Fiber reuses the request buffer after the handler returns.
	body := append([]byte(nil), ctx.Body()...)
	in := recognize.Input{
		Header: func(key string) string { return ctx.Get(key) },
		Body:   body,
	}

	source, event := r.chain.Classify(in)

	open, err := r.verifier.Verify(source, in)
	if err != nil {
		r.logger.Warn("verification failed: source=%s", source)

		return errorResponse(ctx, http.StatusUnauthorized, "invalid credentials")
	}
	if bool(open) {
		r.logger.Warn("no secret configured, accepting without verification: source=%s", source)
	}

	item, err := r.queue.Enqueue(ctx.UserContext(), dto.InboundEvent{
		Source:  source,
		Event:   event,
		Payload: recognize.NormalizeBody(ctx.Get(fiber.HeaderContentType), body),
	})
	if err != nil {
		r.logger.Error(err, "restapi - v1 - handleWebhook")

		return errorResponse(ctx, http.StatusInternalServerError, "failed to enqueue event")
	}

	// Best-effort inline attempt. The 202 never waits on it.
	go func() {
		pctx, cancel := context.WithTimeout(context.Background(), inlineProcessTimeout)
		defer cancel()

		result := r.queue.ProcessOne(pctx, item.ID)
		if result.Error != "" {
			r.logger.Warn("inline processing attempt failed: id=%s error=%s", item.ID, result.Error)
		}
	}()

	return ctx.Status(http.StatusAccepted).JSON(response.Queued{
		Status:           "queued",
		QueueID:          item.ID.String(),
		Source:           source,
		Event:            event,
		ProcessingTimeMS: time.Since(started).Milliseconds(),
	})
}

// @Summary 	Subscription handshake
// @Description Echoes the challenge when the verify token matches, messaging-platform style
// @Tags 		webhooks
// @Produce 	plain
// @Param 		hub.mode 		  query string true "Must be subscribe"
// @Param 		hub.verify_token  query string true "Configured verify token"
// @Param 		hub.challenge 	  query string true "Opaque challenge to echo"
// @Success 	200 {string} string
// @Failure 	403 {object} response.Error "Token mismatch"
// @Router 		/v1/webhooks [get]
func (r *V1) verifySubscription(ctx *fiber.Ctx) error {
	mode := ctx.Query("hub.mode")
	token := ctx.Query("hub.verify_token")
	challenge := ctx.Query("hub.challenge")

	if mode != "subscribe" || r.verifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(r.verifyToken)) != 1 {
		return errorResponse(ctx, http.StatusForbidden, "verification failed")
	}

	return ctx.Status(http.StatusOK).SendString(challenge)
}
