package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/moisesblank/people-flow-desk-sub004/internal/dto"
	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/internal/repo"
	"github.com/moisesblank/people-flow-desk-sub004/internal/usecase"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

type UseCase struct {
	queueRepo    repo.QueueRepo
	logRepo      repo.ProcessingLogRepo
	orchestrator usecase.Orchestrator
	tracer       trace.Tracer
	logger       logger.Interface

	batchSize     int
	maxRetries    int
	staleClaimAge time.Duration
	retentionAge  time.Duration
}

func New(
	queueRepo repo.QueueRepo,
	logRepo repo.ProcessingLogRepo,
	orchestrator usecase.Orchestrator,
	l logger.Interface,
	batchSize int,
	maxRetries int,
	staleClaimAge time.Duration,
	retentionAge time.Duration,
) *UseCase {
	return &UseCase{
		queueRepo:     queueRepo,
		logRepo:       logRepo,
		orchestrator:  orchestrator,
		tracer:        otel.Tracer("webhook-queue"),
		logger:        l,
		batchSize:     batchSize,
		maxRetries:    maxRetries,
		staleClaimAge: staleClaimAge,
		retentionAge:  retentionAge,
	}
}

// Enqueue durably persists an inbound event as a pending item. This is the
// only suspension point on the ingress path — dispatch happens out of band.
func (uc *UseCase) Enqueue(ctx context.Context, event dto.InboundEvent) (*entity.QueueItem, error) {
	item := &entity.QueueItem{
		ID:         uuid.New(),
		Source:     event.Source,
		Event:      event.Event,
		Payload:    event.Payload,
		Status:     entity.Pending,
		MaxRetries: uc.maxRetries,
		CreatedAt:  time.Now(),
	}

	err := uc.queueRepo.Create(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("QueueUseCase - Enqueue - uc.queueRepo.Create: %w", err)
	}

	return item, nil
}

func (uc *UseCase) GetItem(ctx context.Context, id uuid.UUID) (*entity.QueueItem, error) {
	item, err := uc.queueRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("QueueUseCase - GetItem - uc.queueRepo.GetByID: %w", err)
	}

	return item, nil
}

// ProcessOne claims and resolves exactly one item. A claim that finds the
// item already processing or terminal reports the current status instead of
// touching the row.
func (uc *UseCase) ProcessOne(ctx context.Context, id uuid.UUID) dto.ItemResult {
	item, err := uc.queueRepo.ClaimByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return uc.skippedResult(ctx, id)
		}

		uc.logger.Error(err, "QueueUseCase - ProcessOne - uc.queueRepo.ClaimByID")

		return dto.ItemResult{ID: id, Status: "error", Error: err.Error()}
	}

	return uc.resolve(ctx, item)
}

// Sweep claims up to batchSize oldest pending items and resolves each one.
// One item's failure never aborts the batch.
func (uc *UseCase) Sweep(ctx context.Context) dto.SweepResult {
	start := time.Now()

	items, err := uc.queueRepo.ClaimPending(ctx, uc.batchSize)
	if err != nil {
		uc.logger.Error(err, "QueueUseCase - Sweep - uc.queueRepo.ClaimPending")

		return dto.SweepResult{
			Status:      "error",
			Results:     []dto.ItemResult{},
			TotalTimeMS: time.Since(start).Milliseconds(),
		}
	}

	results := make([]dto.ItemResult, 0, len(items))
	for _, item := range items {
		results = append(results, uc.resolve(ctx, item))
	}

	return dto.SweepResult{
		Status:      "ok",
		Processed:   len(results),
		Results:     results,
		TotalTimeMS: time.Since(start).Milliseconds(),
	}
}

// resolve invokes the orchestrator for one claimed item and settles its
// terminal or retry state. The item is already in processing status.
func (uc *UseCase) resolve(ctx context.Context, item *entity.QueueItem) dto.ItemResult {
	ctx, span := uc.tracer.Start(ctx, "ProcessQueueItem", trace.WithAttributes(
		attribute.String("queue.id", item.ID.String()),
		attribute.String("queue.source", item.Source),
		attribute.String("queue.event", item.Event),
		attribute.Int("queue.retry_count", item.RetryCount),
	))
	defer span.End()

	start := time.Now()

	logRow := &entity.ProcessingLog{
		ID:        uuid.New(),
		QueueID:   item.ID,
		Source:    item.Source,
		Event:     item.Event,
		Status:    entity.Processing,
		StartedAt: start,
	}

	err := uc.logRepo.Create(ctx, logRow)
	if err != nil {
		// Processing continues without its log row rather than blocking
		// the item on bookkeeping.
		uc.logger.Error(err, "QueueUseCase - resolve - uc.logRepo.Create")
	}

	result, dispatchErr := uc.orchestrator.Dispatch(ctx, dto.Job{
		QueueID: item.ID,
		LogID:   logRow.ID,
		Source:  item.Source,
		Event:   item.Event,
		Payload: item.Payload,
	})

	elapsed := time.Since(start).Milliseconds()

	if dispatchErr == nil {
		if err := uc.queueRepo.MarkCompleted(ctx, item.ID, result); err != nil {
			uc.logger.Error(err, "QueueUseCase - resolve - uc.queueRepo.MarkCompleted")
		}
		uc.finishLog(ctx, logRow.ID, entity.Completed, nil, elapsed)

		return dto.ItemResult{ID: item.ID, Status: string(entity.Completed), ProcessingTimeMS: elapsed}
	}

	span.RecordError(dispatchErr)
	span.SetStatus(codes.Error, dispatchErr.Error())

	errMsg := dispatchErr.Error()

	// Unknown (source, event) pairs are terminal on the first attempt.
	// Retrying cannot make a handler appear.
	if errors.Is(dispatchErr, errs.ErrUnroutable) {
		if err := uc.queueRepo.MarkUnroutable(ctx, item.ID, errMsg); err != nil {
			uc.logger.Error(err, "QueueUseCase - resolve - uc.queueRepo.MarkUnroutable")
		}
		uc.finishLog(ctx, logRow.ID, entity.Unroutable, &errMsg, elapsed)

		return dto.ItemResult{
			ID:               item.ID,
			Status:           string(entity.Unroutable),
			ProcessingTimeMS: elapsed,
			Error:            errMsg,
			RetryCount:       item.RetryCount,
		}
	}

	// Retry budget check uses the pre-failure count: an item fails
	// terminally exactly when another retry would exceed max_retries.
	if item.RetryCount >= item.MaxRetries {
		if err := uc.queueRepo.MarkFailed(ctx, item.ID, errMsg); err != nil {
			uc.logger.Error(err, "QueueUseCase - resolve - uc.queueRepo.MarkFailed")
		}
		uc.finishLog(ctx, logRow.ID, entity.Failed, &errMsg, elapsed)

		return dto.ItemResult{
			ID:               item.ID,
			Status:           string(entity.Failed),
			ProcessingTimeMS: elapsed,
			Error:            errMsg,
			RetryCount:       item.RetryCount,
		}
	}

	if err := uc.queueRepo.ScheduleRetry(ctx, item.ID, errMsg); err != nil {
		uc.logger.Error(err, "QueueUseCase - resolve - uc.queueRepo.ScheduleRetry")
	}
	uc.finishLog(ctx, logRow.ID, entity.Pending, &errMsg, elapsed)

	return dto.ItemResult{
		ID:               item.ID,
		Status:           string(entity.Pending),
		ProcessingTimeMS: elapsed,
		Error:            errMsg,
		RetryCount:       item.RetryCount + 1,
	}
}

func (uc *UseCase) skippedResult(ctx context.Context, id uuid.UUID) dto.ItemResult {
	item, err := uc.queueRepo.GetByID(ctx, id)
	if err != nil {
		return dto.ItemResult{ID: id, Status: "error", Error: "item not found"}
	}

	return dto.ItemResult{
		ID:         id,
		Status:     string(item.Status),
		Error:      "item is not pending",
		RetryCount: item.RetryCount,
	}
}

func (uc *UseCase) finishLog(ctx context.Context, id uuid.UUID, status entity.Status, errMsg *string, elapsedMS int64) {
	err := uc.logRepo.Finish(ctx, id, status, errMsg, elapsedMS)
	if err != nil {
		uc.logger.Error(err, "QueueUseCase - finishLog - uc.logRepo.Finish")
	}
}

// RequeueStale reverts items abandoned mid-processing back to pending.
func (uc *UseCase) RequeueStale(ctx context.Context) (int64, error) {
	count, err := uc.queueRepo.RequeueStaleProcessing(ctx, uc.staleClaimAge)
	if err != nil {
		return 0, fmt.Errorf("QueueUseCase - RequeueStale - uc.queueRepo.RequeueStaleProcessing: %w", err)
	}

	if count > 0 {
		uc.logger.Warn("requeued stale processing items, count = %d", count)
	}

	return count, nil
}

// SweepExhausted is a safety net for pending rows whose retry budget is
// already spent; it moves them to failed so they stop matching claim queries.
func (uc *UseCase) SweepExhausted(ctx context.Context) error {
	err := uc.queueRepo.MarkExhaustedAsFailed(ctx)
	if err != nil {
		return fmt.Errorf("QueueUseCase - SweepExhausted - uc.queueRepo.MarkExhaustedAsFailed: %w", err)
	}

	return nil
}

func (uc *UseCase) Cleanup(ctx context.Context) error {
	count, err := uc.queueRepo.DeleteOldTerminal(ctx, uc.retentionAge)
	if err != nil {
		return fmt.Errorf("QueueUseCase - Cleanup - uc.queueRepo.DeleteOldTerminal: %w", err)
	}

	if count > 0 {
		uc.logger.Info("deleted old terminal items, count = %d", count)
	}

	return nil
}
