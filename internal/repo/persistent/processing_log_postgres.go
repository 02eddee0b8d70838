package persistent

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/postgres"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

const (
	// Table
	processingLogTable = "webhooks_processing_log"

	// Columns
	plogIDColumn           = "id"
	plogQueueIDColumn      = "queue_id"
	plogSourceColumn       = "source"
	plogEventColumn        = "event"
	plogStatusColumn       = "status"
	plogErrorMessageColumn = "error_message"
	plogStartedAtColumn    = "started_at"
	plogFinishedAtColumn   = "finished_at"
	plogElapsedMSColumn    = "elapsed_ms"
)

type ProcessingLogRepo struct {
	*postgres.Postgres
}

func NewProcessingLogRepo(pg *postgres.Postgres) *ProcessingLogRepo {
	return &ProcessingLogRepo{pg}
}

func (r *ProcessingLogRepo) Create(ctx context.Context, log *entity.ProcessingLog) error {
	sql, args, err := r.Builder.
		Insert(processingLogTable).
		Columns(
			plogIDColumn,
			plogQueueIDColumn,
			plogSourceColumn,
			plogEventColumn,
			plogStatusColumn,
			plogStartedAtColumn,
		).
		Values(
			log.ID,
			log.QueueID,
			log.Source,
			log.Event,
			log.Status,
			log.StartedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("ProcessingLogRepo - Create - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ProcessingLogRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *ProcessingLogRepo) Finish(ctx context.Context, id uuid.UUID, status entity.Status, errMsg *string, elapsedMS int64) error {
	now := time.Now()

	sql, args, err := r.Builder.
		Update(processingLogTable).
		Set(plogStatusColumn, status).
		Set(plogErrorMessageColumn, errMsg).
		Set(plogFinishedAtColumn, now).
		Set(plogElapsedMSColumn, elapsedMS).
		Where(squirrel.Eq{plogIDColumn: id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ProcessingLogRepo - Finish - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ProcessingLogRepo - Finish - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ProcessingLogRepo - Finish: %w", errs.ErrRecordNotFound)
	}

	return nil
}
