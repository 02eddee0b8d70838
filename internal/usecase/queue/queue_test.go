package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moisesblank/people-flow-desk-sub004/internal/dto"
	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/internal/usecase/queue"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

type fakeQueueRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*entity.QueueItem

	claimErr error
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{items: map[uuid.UUID]*entity.QueueItem{}}
}

func (r *fakeQueueRepo) Create(_ context.Context, item *entity.QueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *item
	r.items[item.ID] = &cp

	return nil
}

func (r *fakeQueueRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}
	cp := *item

	return &cp, nil
}

func (r *fakeQueueRepo) ClaimByID(_ context.Context, id uuid.UUID) (*entity.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.claimErr != nil {
		return nil, r.claimErr
	}

	item, ok := r.items[id]
	if !ok || item.Status != entity.Pending {
		return nil, errs.ErrRecordNotFound
	}

	item.Status = entity.Processing
	cp := *item

	return &cp, nil
}

func (r *fakeQueueRepo) ClaimPending(_ context.Context, limit int) ([]*entity.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var claimed []*entity.QueueItem
	for _, item := range r.items {
		if len(claimed) == limit {
			break
		}
		if item.Status != entity.Pending {
			continue
		}
		item.Status = entity.Processing
		cp := *item
		claimed = append(claimed, &cp)
	}

	return claimed, nil
}

func (r *fakeQueueRepo) MarkCompleted(_ context.Context, id uuid.UUID, result json.RawMessage) error {
	return r.settle(id, entity.Completed, nil, result)
}

func (r *fakeQueueRepo) ScheduleRetry(_ context.Context, id uuid.UUID, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item := r.items[id]
	item.Status = entity.Pending
	item.RetryCount++
	item.ErrorMessage = &errMsg

	return nil
}

func (r *fakeQueueRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	return r.settle(id, entity.Failed, &errMsg, nil)
}

func (r *fakeQueueRepo) MarkUnroutable(_ context.Context, id uuid.UUID, errMsg string) error {
	return r.settle(id, entity.Unroutable, &errMsg, nil)
}

func (r *fakeQueueRepo) settle(id uuid.UUID, status entity.Status, errMsg *string, result json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item := r.items[id]
	item.Status = status
	item.ErrorMessage = errMsg
	item.Result = result
	now := time.Now()
	item.ProcessedAt = &now

	return nil
}

func (r *fakeQueueRepo) MarkExhaustedAsFailed(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range r.items {
		if item.Status == entity.Pending && item.RetryCount >= item.MaxRetries {
			item.Status = entity.Failed
		}
	}

	return nil
}

func (r *fakeQueueRepo) RequeueStaleProcessing(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

func (r *fakeQueueRepo) DeleteOldTerminal(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

type fakeLogRepo struct {
	mu        sync.Mutex
	created   []*entity.ProcessingLog
	finished  map[uuid.UUID]entity.Status
	createErr error
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{finished: map[uuid.UUID]entity.Status{}}
}

func (r *fakeLogRepo) Create(_ context.Context, log *entity.ProcessingLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	cp := *log
	r.created = append(r.created, &cp)

	return nil
}

func (r *fakeLogRepo) Finish(_ context.Context, id uuid.UUID, status entity.Status, _ *string, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finished[id] = status

	return nil
}

type stubOrchestrator struct {
	dispatch func(ctx context.Context, job dto.Job) (json.RawMessage, error)
}

func (o *stubOrchestrator) Dispatch(ctx context.Context, job dto.Job) (json.RawMessage, error) {
	return o.dispatch(ctx, job)
}

func newUseCase(qr *fakeQueueRepo, lr *fakeLogRepo, o *stubOrchestrator) *queue.UseCase {
	return queue.New(qr, lr, o, logger.New("error"), 10, 3, 10*time.Minute, 30*24*time.Hour)
}

func enqueue(t *testing.T, uc *queue.UseCase) *entity.QueueItem {
	t.Helper()

	item, err := uc.Enqueue(context.Background(), dto.InboundEvent{
		Source:  "hotmart",
		Event:   "purchase.approved",
		Payload: json.RawMessage(`{"event":"PURCHASE_APPROVED"}`),
	})
	require.NoError(t, err)
	require.Equal(t, entity.Pending, item.Status)
	require.Equal(t, 3, item.MaxRetries)

	return item
}

func TestProcessOneCompletes(t *testing.T) {
	qr := newFakeQueueRepo()
	lr := newFakeLogRepo()
	uc := newUseCase(qr, lr, &stubOrchestrator{
		dispatch: func(_ context.Context, _ dto.Job) (json.RawMessage, error) {
			return json.RawMessage(`{"granted":true}`), nil
		},
	})

	item := enqueue(t, uc)

	result := uc.ProcessOne(context.Background(), item.ID)
	assert.Equal(t, string(entity.Completed), result.Status)
	assert.Empty(t, result.Error)

	stored, err := qr.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.Completed, stored.Status)
	assert.JSONEq(t, `{"granted":true}`, string(stored.Result))
	assert.NotNil(t, stored.ProcessedAt)
	assert.Zero(t, stored.RetryCount)
}

func TestProcessOneSchedulesRetryWithinBudget(t *testing.T) {
	qr := newFakeQueueRepo()
	lr := newFakeLogRepo()
	uc := newUseCase(qr, lr, &stubOrchestrator{
		dispatch: func(_ context.Context, _ dto.Job) (json.RawMessage, error) {
			return nil, errors.New("smtp timeout")
		},
	})

	item := enqueue(t, uc)

	result := uc.ProcessOne(context.Background(), item.ID)
	assert.Equal(t, string(entity.Pending), result.Status)
	assert.Equal(t, 1, result.RetryCount)
	assert.Contains(t, result.Error, "smtp timeout")

	stored, err := qr.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.Pending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Nil(t, stored.ProcessedAt)
}

func TestProcessOneFailsTerminallyWhenBudgetSpent(t *testing.T) {
	qr := newFakeQueueRepo()
	lr := newFakeLogRepo()

	attempts := 0
	uc := newUseCase(qr, lr, &stubOrchestrator{
		dispatch: func(_ context.Context, _ dto.Job) (json.RawMessage, error) {
			attempts++

			return nil, errors.New("smtp timeout")
		},
	})

	item := enqueue(t, uc)

	// Three failures spend the budget, the fourth attempt is terminal.
	for i := 1; i <= 3; i++ {
		result := uc.ProcessOne(context.Background(), item.ID)
		require.Equal(t, string(entity.Pending), result.Status)
		require.Equal(t, i, result.RetryCount)
	}

	result := uc.ProcessOne(context.Background(), item.ID)
	assert.Equal(t, string(entity.Failed), result.Status)
	assert.Equal(t, 3, result.RetryCount)
	assert.Equal(t, 4, attempts)

	stored, err := qr.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.Failed, stored.Status)
	assert.Equal(t, 3, stored.RetryCount)
	assert.LessOrEqual(t, stored.RetryCount, stored.MaxRetries)
}

func TestProcessOneUnroutableIsTerminalOnFirstAttempt(t *testing.T) {
	qr := newFakeQueueRepo()
	lr := newFakeLogRepo()
	uc := newUseCase(qr, lr, &stubOrchestrator{
		dispatch: func(_ context.Context, _ dto.Job) (json.RawMessage, error) {
			return nil, errs.ErrUnroutable
		},
	})

	item := enqueue(t, uc)

	result := uc.ProcessOne(context.Background(), item.ID)
	assert.Equal(t, string(entity.Unroutable), result.Status)
	assert.Zero(t, result.RetryCount)

	stored, err := qr.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.Unroutable, stored.Status)
	assert.Zero(t, stored.RetryCount)
}

func TestProcessOneSkipsNonPendingItem(t *testing.T) {
	qr := newFakeQueueRepo()
	lr := newFakeLogRepo()

	dispatched := 0
	uc := newUseCase(qr, lr, &stubOrchestrator{
		dispatch: func(_ context.Context, _ dto.Job) (json.RawMessage, error) {
			dispatched++

			return json.RawMessage(`{}`), nil
		},
	})

	item := enqueue(t, uc)
	require.Equal(t, string(entity.Completed), uc.ProcessOne(context.Background(), item.ID).Status)

	// Second invocation loses the claim and reports the current status.
	result := uc.ProcessOne(context.Background(), item.ID)
	assert.Equal(t, string(entity.Completed), result.Status)
	assert.Equal(t, "item is not pending", result.Error)
	assert.Equal(t, 1, dispatched)
}

func TestSweepContinuesPastIndividualFailures(t *testing.T) {
	qr := newFakeQueueRepo()
	lr := newFakeLogRepo()

	uc := newUseCase(qr, lr, &stubOrchestrator{
		dispatch: func(_ context.Context, job dto.Job) (json.RawMessage, error) {
			if job.Event == "purchase.approved" {
				return json.RawMessage(`{}`), nil
			}

			return nil, errors.New("boom")
		},
	})

	good := enqueue(t, uc)

	bad, err := uc.Enqueue(context.Background(), dto.InboundEvent{
		Source:  "cms",
		Event:   "content.published",
		Payload: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	sweep := uc.Sweep(context.Background())
	assert.Equal(t, "ok", sweep.Status)
	assert.Equal(t, 2, sweep.Processed)
	assert.Len(t, sweep.Results, 2)
	assert.GreaterOrEqual(t, sweep.TotalTimeMS, int64(0))

	byID := map[uuid.UUID]dto.ItemResult{}
	for _, r := range sweep.Results {
		byID[r.ID] = r
	}
	assert.Equal(t, string(entity.Completed), byID[good.ID].Status)
	assert.Equal(t, string(entity.Pending), byID[bad.ID].Status)
}

// The sweep body is the worker's wire response: status is always present and
// an empty batch still serializes results as [], not null.
func TestSweepEmptyBatchKeepsResponseShape(t *testing.T) {
	uc := newUseCase(newFakeQueueRepo(), newFakeLogRepo(), &stubOrchestrator{})

	sweep := uc.Sweep(context.Background())
	assert.Equal(t, "ok", sweep.Status)
	assert.Zero(t, sweep.Processed)
	require.NotNil(t, sweep.Results)
	assert.Empty(t, sweep.Results)

	raw, err := json.Marshal(sweep)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","processed":0,"results":[],"total_time_ms":0}`, string(raw))
}

func TestResolveSurvivesLogCreateFailure(t *testing.T) {
	qr := newFakeQueueRepo()
	lr := newFakeLogRepo()
	lr.createErr = errors.New("log table unavailable")

	uc := newUseCase(qr, lr, &stubOrchestrator{
		dispatch: func(_ context.Context, _ dto.Job) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	})

	item := enqueue(t, uc)

	result := uc.ProcessOne(context.Background(), item.ID)
	assert.Equal(t, string(entity.Completed), result.Status)
}

func TestSweepExhaustedMarksSpentPendingItems(t *testing.T) {
	qr := newFakeQueueRepo()
	lr := newFakeLogRepo()
	uc := newUseCase(qr, lr, &stubOrchestrator{
		dispatch: func(_ context.Context, _ dto.Job) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	})

	item := enqueue(t, uc)

	qr.mu.Lock()
	qr.items[item.ID].RetryCount = 3
	qr.mu.Unlock()

	require.NoError(t, uc.SweepExhausted(context.Background()))

	stored, err := qr.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.Failed, stored.Status)
}
