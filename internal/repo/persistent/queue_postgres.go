package persistent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/postgres"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

const (
	// Table
	queueTable = "webhooks_queue"

	// Columns
	queueIDColumn                  = "id"
	queueSourceColumn              = "source"
	queueEventColumn               = "event"
	queuePayloadColumn             = "payload"
	queueStatusColumn              = "status"
	queueRetryCountColumn          = "retry_count"
	queueMaxRetriesColumn          = "max_retries"
	queueErrorMessageColumn        = "error_message"
	queueResultColumn              = "result"
	queueCreatedAtColumn           = "created_at"
	queueProcessingStartedAtColumn = "processing_started_at"
	queueProcessedAtColumn         = "processed_at"
)

var queueColumns = []string{
	queueIDColumn,
	queueSourceColumn,
	queueEventColumn,
	queuePayloadColumn,
	queueStatusColumn,
	queueRetryCountColumn,
	queueMaxRetriesColumn,
	queueErrorMessageColumn,
	queueResultColumn,
	queueCreatedAtColumn,
	queueProcessingStartedAtColumn,
	queueProcessedAtColumn,
}

type QueueRepo struct {
	*postgres.Postgres
}

func NewQueueRepo(pg *postgres.Postgres) *QueueRepo {
	return &QueueRepo{pg}
}

func (r *QueueRepo) Create(ctx context.Context, item *entity.QueueItem) error {
	sql, args, err := r.Builder.
		Insert(queueTable).
		Columns(
			queueIDColumn,
			queueSourceColumn,
			queueEventColumn,
			queuePayloadColumn,
			queueStatusColumn,
			queueRetryCountColumn,
			queueMaxRetriesColumn,
			queueCreatedAtColumn,
		).
		Values(
			item.ID,
			item.Source,
			item.Event,
			item.Payload,
			item.Status,
			item.RetryCount,
			item.MaxRetries,
			item.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("QueueRepo - Create - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("QueueRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *QueueRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.QueueItem, error) {
	sql, args, err := r.Builder.
		Select(queueColumns...).
		From(queueTable).
		Where(squirrel.Eq{queueIDColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("QueueRepo - GetByID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	item, err := scanQueueItem(executor.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("QueueRepo - GetByID: %w", errs.ErrRecordNotFound)
		}

		return nil, fmt.Errorf("QueueRepo - GetByID - scanQueueItem: %w", err)
	}

	return item, nil
}

// ClaimByID transitions a single item from pending to processing. The status
// predicate makes the claim conditional: a second invocation racing for the
// same item sees zero rows and gets ErrRecordNotFound instead of a double
// claim. The claim records its own start time; staleness is judged against
// that, never against enqueue time.
func (r *QueueRepo) ClaimByID(ctx context.Context, id uuid.UUID) (*entity.QueueItem, error) {
	sql, args, err := r.claimByIDStmt(id, time.Now())
	if err != nil {
		return nil, fmt.Errorf("QueueRepo - ClaimByID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	item, err := scanQueueItem(executor.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("QueueRepo - ClaimByID: %w", errs.ErrRecordNotFound)
		}

		return nil, fmt.Errorf("QueueRepo - ClaimByID - scanQueueItem: %w", err)
	}

	return item, nil
}

func (r *QueueRepo) claimByIDStmt(id uuid.UUID, now time.Time) (string, []any, error) {
	return r.Builder.
		Update(queueTable).
		Set(queueStatusColumn, entity.Processing).
		Set(queueProcessingStartedAtColumn, now).
		Where(squirrel.And{
			squirrel.Eq{queueIDColumn: id},
			squirrel.Eq{queueStatusColumn: entity.Pending},
		}).
		Suffix("RETURNING " + joinColumns(queueColumns)).
		ToSql()
}

// ClaimPending atomically claims up to limit oldest pending items in one
// statement. FOR UPDATE SKIP LOCKED guarantees at-most-one claimant per item
// across concurrent sweeps; ordering by created_at keeps FIFO fairness within
// a batch.
func (r *QueueRepo) ClaimPending(ctx context.Context, limit int) ([]*entity.QueueItem, error) {
	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, claimPendingSQL(), entity.Processing, time.Now(), entity.Pending, limit)
	if err != nil {
		return nil, fmt.Errorf("QueueRepo - ClaimPending - executor.Query: %w", err)
	}
	defer rows.Close()

	items := make([]*entity.QueueItem, 0, limit)
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("QueueRepo - ClaimPending - scanQueueItem: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("QueueRepo - ClaimPending - rows.Err: %w", err)
	}

	// The claiming statement returns rows in claim order, not creation
	// order. Re-sort so the caller processes oldest first.
	sortByCreatedAt(items)

	return items, nil
}

func claimPendingSQL() string {
	return fmt.Sprintf(`
		UPDATE %[1]s SET %[2]s = $1, %[6]s = $2
		WHERE %[3]s IN (
			SELECT %[3]s FROM %[1]s
			WHERE %[2]s = $3
			ORDER BY %[4]s ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %[5]s`,
		queueTable, queueStatusColumn, queueIDColumn, queueCreatedAtColumn,
		joinColumns(queueColumns), queueProcessingStartedAtColumn)
}

func (r *QueueRepo) MarkCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	now := time.Now()

	sql, args, err := r.Builder.
		Update(queueTable).
		Set(queueStatusColumn, entity.Completed).
		Set(queueResultColumn, result).
		Set(queueProcessedAtColumn, now).
		Where(squirrel.And{
			squirrel.Eq{queueIDColumn: id},
			squirrel.Eq{queueStatusColumn: entity.Processing},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("QueueRepo - MarkCompleted - r.Builder.ToSql: %w", err)
	}

	return r.execExpectingRows(ctx, "MarkCompleted", sql, args)
}

// ScheduleRetry puts a processing item back to pending with an incremented
// retry count. Eligibility for the next sweep is all it grants; the worker
// decides terminal vs retriable before calling this.
func (r *QueueRepo) ScheduleRetry(ctx context.Context, id uuid.UUID, errMsg string) error {
	sql, args, err := r.Builder.
		Update(queueTable).
		Set(queueStatusColumn, entity.Pending).
		Set(queueProcessingStartedAtColumn, nil).
		Set(queueRetryCountColumn, squirrel.Expr(queueRetryCountColumn+" + 1")).
		Set(queueErrorMessageColumn, errMsg).
		Where(squirrel.And{
			squirrel.Eq{queueIDColumn: id},
			squirrel.Eq{queueStatusColumn: entity.Processing},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("QueueRepo - ScheduleRetry - r.Builder.ToSql: %w", err)
	}

	return r.execExpectingRows(ctx, "ScheduleRetry", sql, args)
}

func (r *QueueRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.markTerminal(ctx, "MarkFailed", id, entity.Failed, errMsg)
}

func (r *QueueRepo) MarkUnroutable(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.markTerminal(ctx, "MarkUnroutable", id, entity.Unroutable, errMsg)
}

func (r *QueueRepo) markTerminal(ctx context.Context, op string, id uuid.UUID, status entity.Status, errMsg string) error {
	now := time.Now()

	sql, args, err := r.Builder.
		Update(queueTable).
		Set(queueStatusColumn, status).
		Set(queueErrorMessageColumn, errMsg).
		Set(queueProcessedAtColumn, now).
		Where(squirrel.And{
			squirrel.Eq{queueIDColumn: id},
			squirrel.Eq{queueStatusColumn: entity.Processing},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("QueueRepo - %s - r.Builder.ToSql: %w", op, err)
	}

	return r.execExpectingRows(ctx, op, sql, args)
}

// MarkExhaustedAsFailed settles pending items whose retry budget is already
// spent. The status predicate keeps it from touching in-flight rows.
func (r *QueueRepo) MarkExhaustedAsFailed(ctx context.Context) error {
	now := time.Now()

	sql, args, err := r.Builder.
		Update(queueTable).
		Set(queueStatusColumn, entity.Failed).
		Set(queueErrorMessageColumn, "retry budget exhausted").
		Set(queueProcessedAtColumn, now).
		Where(squirrel.And{
			squirrel.Eq{queueStatusColumn: string(entity.Pending)},
			squirrel.Expr(queueRetryCountColumn + " >= " + queueMaxRetriesColumn),
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("QueueRepo - MarkExhaustedAsFailed - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("QueueRepo - MarkExhaustedAsFailed - executor.Exec: %w", err)
	}

	return nil
}

// RequeueStaleProcessing reverts items stuck in processing (claimer crashed
// before resolving) back to pending so a later sweep can pick them up.
// Staleness is measured from the claim's own start time; filtering on
// enqueue age would steal freshly claimed old items from their live claimer
// and double-dispatch them.
func (r *QueueRepo) RequeueStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	sql, args, err := r.requeueStaleStmt(time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("QueueRepo - RequeueStaleProcessing - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("QueueRepo - RequeueStaleProcessing - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *QueueRepo) requeueStaleStmt(cutoff time.Time) (string, []any, error) {
	return r.Builder.
		Update(queueTable).
		Set(queueStatusColumn, entity.Pending).
		Set(queueProcessingStartedAtColumn, nil).
		Where(squirrel.And{
			squirrel.Eq{queueStatusColumn: entity.Processing},
			squirrel.Lt{queueProcessingStartedAtColumn: cutoff},
		}).
		ToSql()
}

func (r *QueueRepo) DeleteOldTerminal(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)

	sql, args, err := r.Builder.
		Delete(queueTable).
		Where(squirrel.And{
			squirrel.Or{
				squirrel.Eq{queueStatusColumn: string(entity.Completed)},
				squirrel.Eq{queueStatusColumn: string(entity.Failed)},
				squirrel.Eq{queueStatusColumn: string(entity.Unroutable)},
			},
			squirrel.Lt{queueCreatedAtColumn: cutoff},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("QueueRepo - DeleteOldTerminal - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("QueueRepo - DeleteOldTerminal - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *QueueRepo) execExpectingRows(ctx context.Context, op, sql string, args []any) error {
	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("QueueRepo - %s - executor.Exec: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("QueueRepo - %s: %w", op, errs.ErrRecordNotFound)
	}

	return nil
}

func scanQueueItem(row pgx.Row) (*entity.QueueItem, error) {
	var item entity.QueueItem

	err := row.Scan(
		&item.ID,
		&item.Source,
		&item.Event,
		&item.Payload,
		&item.Status,
		&item.RetryCount,
		&item.MaxRetries,
		&item.ErrorMessage,
		&item.Result,
		&item.CreatedAt,
		&item.ProcessingStartedAt,
		&item.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	return &item, nil
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}

func sortByCreatedAt(items []*entity.QueueItem) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}
