package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
)

type (
	// QueueRepo is the durable queue store. Claim operations are
	// conditional on status so that two concurrent worker invocations can
	// never both own the same item.
	QueueRepo interface {
		Create(ctx context.Context, item *entity.QueueItem) error
		GetByID(ctx context.Context, id uuid.UUID) (*entity.QueueItem, error)
		ClaimByID(ctx context.Context, id uuid.UUID) (*entity.QueueItem, error)
		ClaimPending(ctx context.Context, limit int) ([]*entity.QueueItem, error)
		MarkCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage) error
		ScheduleRetry(ctx context.Context, id uuid.UUID, errMsg string) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		MarkUnroutable(ctx context.Context, id uuid.UUID, errMsg string) error
		MarkExhaustedAsFailed(ctx context.Context) error
		RequeueStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error)
		DeleteOldTerminal(ctx context.Context, retention time.Duration) (int64, error)
	}

	// ProcessingLogRepo records one row per worker claim.
	ProcessingLogRepo interface {
		Create(ctx context.Context, log *entity.ProcessingLog) error
		Finish(ctx context.Context, id uuid.UUID, status entity.Status, errMsg *string, elapsedMS int64) error
	}

	// AuditRepo is append-only; entries are never mutated or deleted.
	AuditRepo interface {
		Create(ctx context.Context, entry *entity.AuditEntry) error
	}

	// FlagRepo -.
	FlagRepo interface {
		Get(ctx context.Context, key string) (*entity.FeatureFlag, error)
		Upsert(ctx context.Context, flag *entity.FeatureFlag) error
	}

	// EnrollmentRepo -.
	EnrollmentRepo interface {
		Grant(ctx context.Context, e *entity.Enrollment) error
		Revoke(ctx context.Context, email, productID string) error
		GetByEmail(ctx context.Context, email string) ([]*entity.Enrollment, error)
	}

	// SnapshotRepo stores exam evidence blobs.
	SnapshotRepo interface {
		Put(ctx context.Context, key string, data []byte, contentType string) error
		Get(ctx context.Context, key string) ([]byte, error)
	}
)
