package usecase

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/moisesblank/people-flow-desk-sub004/internal/dto"
	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
)

type (
	// QueueUseCase owns the queue item lifecycle: durable enqueue at the
	// ingress edge, claim-and-dispatch on the worker side, maintenance
	// sweeps.
	QueueUseCase interface {
		Enqueue(ctx context.Context, event dto.InboundEvent) (*entity.QueueItem, error)
		GetItem(ctx context.Context, id uuid.UUID) (*entity.QueueItem, error)
		ProcessOne(ctx context.Context, id uuid.UUID) dto.ItemResult
		Sweep(ctx context.Context) dto.SweepResult
		RequeueStale(ctx context.Context) (int64, error)
		SweepExhausted(ctx context.Context) error
		Cleanup(ctx context.Context) error
	}

	// Orchestrator performs the business side effect for one claimed item
	// and returns an opaque success payload. errs.ErrUnroutable signals a
	// permanently unhandleable (source, event) pair.
	Orchestrator interface {
		Dispatch(ctx context.Context, job dto.Job) (json.RawMessage, error)
	}

	// FlagUseCase resolves global feature flags, defaulting to permissive
	// when no row exists.
	FlagUseCase interface {
		Resolve(ctx context.Context, key string) bool
		Get(ctx context.Context, key string) (*entity.FeatureFlag, error)
		Update(ctx context.Context, key string, value bool, updatedBy string) error
	}
)
