package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/moisesblank/people-flow-desk-sub004/internal/controller/restapi/v1/response"
	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/internal/exam"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

type createAttemptRequest struct {
	SimuladoID      string `json:"simulado_id"`
	Proctored       bool   `json:"proctored"`
	DurationMinutes int    `json:"duration_minutes"`
}

type exitRequest struct {
	Target string `json:"target"`
}

type intentRequest struct {
	IntentID string `json:"intent_id"`
}

type disqualifyRequest struct {
	Reason string `json:"reason"`
}

type heartbeatRequest struct {
	SessionID string `json:"session_id"`
}

type consentRequest struct {
	SessionID string `json:"session_id"`
}

// @Summary 	Create attempt
// @Description Registers a new attempt in NOT_STARTED state
// @Tags 		attempts
// @Accept 		json
// @Produce 	json
// @Param 		request body createAttemptRequest true "Attempt parameters"
// @Success 	201 {object} response.Attempt
// @Failure 	400 {object} response.Error "Invalid body"
// @Router 		/v1/attempts [post]
func (r *V1) createAttempt(ctx *fiber.Ctx) error {
	var req createAttemptRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	simuladoID, err := uuid.Parse(req.SimuladoID)
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid simulado_id")
	}

	sup := r.exams.GetOrCreate(&entity.Attempt{
		ID:         uuid.New(),
		SimuladoID: simuladoID,
		State:      entity.AttemptNotStarted,
		Proctored:  req.Proctored,
		Duration:   time.Duration(req.DurationMinutes) * time.Minute,
	})

	return ctx.Status(http.StatusCreated).JSON(toAttemptResponse(sup.Attempt()))
}

// @Summary 	Get attempt
// @Tags 		attempts
// @Produce 	json
// @Param 		id path string true "Attempt ID(uuid)"
// @Success 	200 {object} response.Attempt
// @Failure 	404 {object} response.Error "Unknown attempt"
// @Router 		/v1/attempts/{id} [get]
func (r *V1) getAttempt(ctx *fiber.Ctx) error {
	sup, err := r.supervisor(ctx)
	if err != nil {
		return err
	}

	return ctx.Status(http.StatusOK).JSON(toAttemptResponse(sup.Attempt()))
}

// @Summary 	Start attempt
// @Description Transitions NOT_STARTED to RUNNING; a concurrent start in flight yields 409
// @Tags 		attempts
// @Produce 	json
// @Param 		id path string true "Attempt ID(uuid)"
// @Success 	200 {object} response.Attempt
// @Failure 	404 {object} response.Error "Unknown attempt"
// @Failure 	409 {object} response.Error "Already in progress or wrong state"
// @Router 		/v1/attempts/{id}/start [post]
func (r *V1) startAttempt(ctx *fiber.Ctx) error {
	sup, err := r.supervisor(ctx)
	if err != nil {
		return err
	}

	if err := sup.Start(ctx.UserContext()); err != nil {
		return r.attemptError(ctx, err, "startAttempt")
	}

	return ctx.Status(http.StatusOK).JSON(toAttemptResponse(sup.Attempt()))
}

// @Summary 	Finish attempt
// @Tags 		attempts
// @Produce 	json
// @Param 		id path string true "Attempt ID(uuid)"
// @Success 	200 {object} response.Attempt
// @Failure 	404 {object} response.Error "Unknown attempt"
// @Failure 	409 {object} response.Error "Already in progress or wrong state"
// @Router 		/v1/attempts/{id}/finish [post]
func (r *V1) finishAttempt(ctx *fiber.Ctx) error {
	sup, err := r.supervisor(ctx)
	if err != nil {
		return err
	}

	if err := sup.Finish(ctx.UserContext()); err != nil {
		return r.attemptError(ctx, err, "finishAttempt")
	}

	return ctx.Status(http.StatusOK).JSON(toAttemptResponse(sup.Attempt()))
}

// @Summary 	Disqualify attempt
// @Description Operator action; captures an evidence snapshot
// @Tags 		attempts
// @Accept 		json
// @Produce 	json
// @Param 		id 		path string 			true "Attempt ID(uuid)"
// @Param 		request body disqualifyRequest true "Reason"
// @Success 	200 {object} response.Attempt
// @Failure 	404 {object} response.Error "Unknown attempt"
// @Failure 	409 {object} response.Error "Wrong state"
// @Router 		/v1/attempts/{id}/disqualify [post]
func (r *V1) disqualifyAttempt(ctx *fiber.Ctx) error {
	sup, err := r.supervisor(ctx)
	if err != nil {
		return err
	}

	var req disqualifyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	if err := sup.Disqualify(ctx.UserContext(), req.Reason); err != nil {
		return r.attemptError(ctx, err, "disqualifyAttempt")
	}

	return ctx.Status(http.StatusOK).JSON(toAttemptResponse(sup.Attempt()))
}

// @Summary 	Session heartbeat
// @Description Registers or refreshes one browser session of the attempt and reports whether it holds primary
// @Tags 		attempts
// @Accept 		json
// @Produce 	json
// @Param 		id 		path string 		  true "Attempt ID(uuid)"
// @Param 		request body heartbeatRequest true "Session identity"
// @Success 	200 {object} response.Heartbeat
// @Failure 	404 {object} response.Error "Unknown attempt"
// @Failure 	409 {object} response.Error "Attempt already finalized"
// @Router 		/v1/attempts/{id}/heartbeat [post]
func (r *V1) heartbeatAttempt(ctx *fiber.Ctx) error {
	sup, err := r.supervisor(ctx)
	if err != nil {
		return err
	}

	var req heartbeatRequest
	if err := ctx.BodyParser(&req); err != nil || req.SessionID == "" {
		return errorResponse(ctx, http.StatusBadRequest, "invalid session_id")
	}

	primary, err := sup.Heartbeat(req.SessionID)
	if err != nil {
		return r.attemptError(ctx, err, "heartbeatAttempt")
	}

	role := "secondary"
	if primary {
		role = "primary"
	}

	return ctx.Status(http.StatusOK).JSON(response.Heartbeat{
		Status:    "ok",
		SessionID: req.SessionID,
		Role:      role,
	})
}

// @Summary 	Register consent
// @Description Records the student's proctoring consent in the audit trail
// @Tags 		attempts
// @Accept 		json
// @Produce 	json
// @Param 		id 		path string 		true "Attempt ID(uuid)"
// @Param 		request body consentRequest true "Consenting session"
// @Success 	200 {object} response.Ack
// @Failure 	404 {object} response.Error "Unknown attempt"
// @Router 		/v1/attempts/{id}/consent [post]
func (r *V1) registerConsent(ctx *fiber.Ctx) error {
	sup, err := r.supervisor(ctx)
	if err != nil {
		return err
	}

	var req consentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	details := map[string]any{"consented": true}
	if req.SessionID != "" {
		details["session_id"] = req.SessionID
	}
	sup.RegisterConsent(details)

	return ctx.Status(http.StatusOK).JSON(response.Ack{Status: "ok"})
}

// @Summary 	Request exit
// @Description Asks to navigate away from a running attempt; while guarded, the navigation is withheld and an intent comes back for confirmation
// @Tags 		attempts
// @Accept 		json
// @Produce 	json
// @Param 		id 		path string 	 true "Attempt ID(uuid)"
// @Param 		request body exitRequest true "Navigation target"
// @Success 	200 {object} response.ExitIntent
// @Failure 	404 {object} response.Error "Unknown attempt"
// @Router 		/v1/attempts/{id}/exit [post]
func (r *V1) requestExit(ctx *fiber.Ctx) error {
	sup, err := r.supervisor(ctx)
	if err != nil {
		return err
	}

	var req exitRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	intent, blocked := sup.Guard().Request(req.Target)
	if !blocked {
		return ctx.Status(http.StatusOK).JSON(response.ExitIntent{Target: req.Target, Blocked: false})
	}

	return ctx.Status(http.StatusOK).JSON(response.ExitIntent{
		IntentID: intent.ID.String(),
		Target:   intent.Target,
		Blocked:  true,
	})
}

// @Summary 	Confirm exit
// @Description Lets the parked navigation through and abandons the attempt
// @Tags 		attempts
// @Accept 		json
// @Produce 	json
// @Param 		id 		path string 	   true "Attempt ID(uuid)"
// @Param 		request body intentRequest true "Intent to confirm"
// @Success 	200 {object} response.ExitIntent
// @Failure 	404 {object} response.Error "Unknown attempt or intent"
// @Router 		/v1/attempts/{id}/exit/confirm [post]
func (r *V1) confirmExit(ctx *fiber.Ctx) error {
	sup, err := r.supervisor(ctx)
	if err != nil {
		return err
	}

	id, err := r.parseIntentID(ctx)
	if err != nil {
		return err
	}

	target, err := sup.Guard().Confirm(ctx.UserContext(), id)
	if err != nil {
		return errorResponse(ctx, http.StatusNotFound, "no such pending exit")
	}

	return ctx.Status(http.StatusOK).JSON(response.ExitIntent{Target: target, Blocked: false})
}

// @Summary 	Cancel exit
// @Description Discards the pending intent; the guard stays armed
// @Tags 		attempts
// @Accept 		json
// @Produce 	json
// @Param 		id 		path string 	   true "Attempt ID(uuid)"
// @Param 		request body intentRequest true "Intent to cancel"
// @Success 	204
// @Failure 	404 {object} response.Error "Unknown attempt or intent"
// @Router 		/v1/attempts/{id}/exit/cancel [post]
func (r *V1) cancelExit(ctx *fiber.Ctx) error {
	sup, err := r.supervisor(ctx)
	if err != nil {
		return err
	}

	id, err := r.parseIntentID(ctx)
	if err != nil {
		return err
	}

	if err := sup.Guard().Cancel(id); err != nil {
		return errorResponse(ctx, http.StatusNotFound, "no such pending exit")
	}

	return ctx.SendStatus(http.StatusNoContent)
}

func (r *V1) supervisor(ctx *fiber.Ctx) (*exam.Supervisor, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return nil, errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	sup, ok := r.exams.Get(id)
	if !ok {
		return nil, errorResponse(ctx, http.StatusNotFound, "attempt not found")
	}

	return sup, nil
}

func (r *V1) parseIntentID(ctx *fiber.Ctx) (uuid.UUID, error) {
	var req intentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return uuid.Nil, errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	id, err := uuid.Parse(req.IntentID)
	if err != nil {
		return uuid.Nil, errorResponse(ctx, http.StatusBadRequest, "invalid intent_id")
	}

	return id, nil
}

func (r *V1) attemptError(ctx *fiber.Ctx, err error, op string) error {
	switch {
	case errors.Is(err, errs.ErrLocked):
		return errorResponse(ctx, http.StatusConflict, "action already in progress")
	case errors.Is(err, errs.ErrInvalidTransition):
		return errorResponse(ctx, http.StatusConflict, "invalid attempt state")
	default:
		r.logger.Error(err, "restapi - v1 - "+op)

		return errorResponse(ctx, http.StatusInternalServerError, "attempt operation failed")
	}
}

func toAttemptResponse(a entity.Attempt) response.Attempt {
	resp := response.Attempt{
		ID:         a.ID.String(),
		SimuladoID: a.SimuladoID.String(),
		State:      string(a.State),
		Proctored:  a.Proctored,
	}
	if a.StartedAt != nil {
		resp.StartedAt = a.StartedAt.Format(time.RFC3339)
	}
	if a.FinishedAt != nil {
		resp.FinishedAt = a.FinishedAt.Format(time.RFC3339)
	}

	return resp
}
