package v1

import (
	"github.com/moisesblank/people-flow-desk-sub004/internal/controller/restapi/v1/recognize"
	"github.com/moisesblank/people-flow-desk-sub004/internal/exam"
	"github.com/moisesblank/people-flow-desk-sub004/internal/usecase"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
)

type V1 struct {
	queue usecase.QueueUseCase
	flags usecase.FlagUseCase
	exams *exam.Registry

	chain    *recognize.Chain
	verifier *recognize.Verifier

	// verifyToken answers the subscription handshake on GET /webhooks.
	verifyToken string

	logger logger.Interface
}
