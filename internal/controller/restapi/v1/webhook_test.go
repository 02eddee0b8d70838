package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moisesblank/people-flow-desk-sub004/internal/audit"
	v1 "github.com/moisesblank/people-flow-desk-sub004/internal/controller/restapi/v1"
	"github.com/moisesblank/people-flow-desk-sub004/internal/controller/restapi/v1/recognize"
	"github.com/moisesblank/people-flow-desk-sub004/internal/dto"
	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/internal/exam"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

type fakeQueueUC struct {
	mu        sync.Mutex
	enqueued  []dto.InboundEvent
	processed []uuid.UUID
	items     map[uuid.UUID]*entity.QueueItem
}

func newFakeQueueUC() *fakeQueueUC {
	return &fakeQueueUC{items: map[uuid.UUID]*entity.QueueItem{}}
}

func (f *fakeQueueUC) Enqueue(_ context.Context, event dto.InboundEvent) (*entity.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.enqueued = append(f.enqueued, event)
	item := &entity.QueueItem{
		ID:         uuid.New(),
		Source:     event.Source,
		Event:      event.Event,
		Payload:    event.Payload,
		Status:     entity.Pending,
		MaxRetries: 3,
		CreatedAt:  time.Now(),
	}
	f.items[item.ID] = item

	return item, nil
}

func (f *fakeQueueUC) GetItem(_ context.Context, id uuid.UUID) (*entity.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.items[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}

	return item, nil
}

func (f *fakeQueueUC) ProcessOne(_ context.Context, id uuid.UUID) dto.ItemResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.processed = append(f.processed, id)

	return dto.ItemResult{ID: id, Status: string(entity.Completed)}
}

func (f *fakeQueueUC) Sweep(_ context.Context) dto.SweepResult {
	return dto.SweepResult{Status: "ok", Results: []dto.ItemResult{}}
}

func (f *fakeQueueUC) RequeueStale(_ context.Context) (int64, error) { return 0, nil }

func (f *fakeQueueUC) SweepExhausted(_ context.Context) error { return nil }

func (f *fakeQueueUC) Cleanup(_ context.Context) error { return nil }

type fakeFlagUC struct{}

func (f *fakeFlagUC) Resolve(_ context.Context, _ string) bool { return true }

func (f *fakeFlagUC) Get(_ context.Context, _ string) (*entity.FeatureFlag, error) {
	return nil, errs.ErrRecordNotFound
}

func (f *fakeFlagUC) Update(_ context.Context, _ string, _ bool, _ string) error { return nil }

type nullAuditRepo struct{}

func (nullAuditRepo) Create(_ context.Context, _ *entity.AuditEntry) error { return nil }

type nullSnapshotRepo struct{}

func (nullSnapshotRepo) Put(_ context.Context, _ string, _ []byte, _ string) error { return nil }

func (nullSnapshotRepo) Get(_ context.Context, _ string) ([]byte, error) {
	return nil, errs.ErrRecordNotFound
}

type fixture struct {
	app   *fiber.App
	queue *fakeQueueUC
}

func newFixture(t *testing.T, secrets map[string]string) fixture {
	t.Helper()

	l := logger.New("error")

	sink := audit.New(nullAuditRepo{}, nullSnapshotRepo{}, l)
	require.NoError(t, sink.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sink.Shutdown(ctx)
	})

	registry := exam.NewRegistry(exam.NewMemoryBus(), sink, &fakeFlagUC{}, exam.SystemClock, l)

	queue := newFakeQueueUC()

	app := fiber.New()
	v1.NewWebhookRoutes(app.Group("/v1"), queue, &fakeFlagUC{}, registry, recognize.NewVerifier(secrets), "verify-token", l)

	return fixture{app: app, queue: queue}
}

func postJSON(t *testing.T, app *fiber.App, path string, body string, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set(fiber.HeaderContentType, "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out T
	require.NoError(t, json.Unmarshal(raw, &out))

	return out
}

func TestHandleWebhookQueuesHotmartEvent(t *testing.T) {
	f := newFixture(t, map[string]string{"hotmart": "s3cret"})

	resp := postJSON(t, f.app, "/v1/webhooks",
		`{"event":"PURCHASE_APPROVED","data":{"buyer":{"email":"a@b.c"}}}`,
		map[string]string{recognize.HeaderHotmartHottok: "s3cret"})

	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, "hotmart", body["source"])
	assert.Equal(t, "purchase.approved", body["event"])
	assert.NotEmpty(t, body["queue_id"])

	f.queue.mu.Lock()
	require.Len(t, f.queue.enqueued, 1)
	assert.Equal(t, "hotmart", f.queue.enqueued[0].Source)
	f.queue.mu.Unlock()

	// The inline first attempt is fire-and-forget.
	require.Eventually(t, func() bool {
		f.queue.mu.Lock()
		defer f.queue.mu.Unlock()

		return len(f.queue.processed) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHandleWebhookRejectsInvalidToken(t *testing.T) {
	f := newFixture(t, map[string]string{"hotmart": "s3cret"})

	resp := postJSON(t, f.app, "/v1/webhooks",
		`{"event":"PURCHASE_APPROVED","data":{"buyer":{}}}`,
		map[string]string{recognize.HeaderHotmartHottok: "wrong"})

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "error", body["status"])
	assert.NotEmpty(t, body["message"])

	f.queue.mu.Lock()
	defer f.queue.mu.Unlock()
	assert.Empty(t, f.queue.enqueued)
}

func TestHandleWebhookAcceptsWhenSecretUnconfigured(t *testing.T) {
	f := newFixture(t, map[string]string{})

	resp := postJSON(t, f.app, "/v1/webhooks",
		`{"event":"PURCHASE_APPROVED","data":{"buyer":{}}}`, nil)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestHandleWebhookQueuesUnrecognizedPayload(t *testing.T) {
	f := newFixture(t, map[string]string{})

	resp := postJSON(t, f.app, "/v1/webhooks", `{"foo":"bar"}`, nil)

	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "unknown", body["source"])
}

func TestVerifySubscriptionEchoesChallenge(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/v1/webhooks?hub.mode=subscribe&hub.verify_token=verify-token&hub.challenge=12345", nil)

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(raw))
}

func TestVerifySubscriptionRejectsWrongToken(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/v1/webhooks?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGetQueueItemNotFound(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/queue/"+uuid.NewString(), nil)

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAttemptLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t, nil)

	resp := postJSON(t, f.app, "/v1/attempts",
		`{"simulado_id":"`+uuid.NewString()+`","proctored":true,"duration_minutes":0}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[map[string]any](t, resp)
	id := created["id"].(string)
	require.Equal(t, "NOT_STARTED", created["state"])

	resp = postJSON(t, f.app, "/v1/attempts/"+id+"/start", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "RUNNING", decode[map[string]any](t, resp)["state"])

	// Exit request is parked while the attempt runs.
	resp = postJSON(t, f.app, "/v1/attempts/"+id+"/exit", `{"target":"/dashboard"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	intent := decode[map[string]any](t, resp)
	require.Equal(t, true, intent["blocked"])
	intentID := intent["intent_id"].(string)

	// Confirming the exit abandons the attempt.
	resp = postJSON(t, f.app, "/v1/attempts/"+id+"/exit/confirm", `{"intent_id":"`+intentID+`"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/v1/attempts/"+id, nil)
	getResp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "ABANDONED", decode[map[string]any](t, getResp)["state"])
}

func TestStartAttemptTwiceConflicts(t *testing.T) {
	f := newFixture(t, nil)

	resp := postJSON(t, f.app, "/v1/attempts",
		`{"simulado_id":"`+uuid.NewString()+`","proctored":false,"duration_minutes":0}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[map[string]any](t, resp)["id"].(string)

	resp = postJSON(t, f.app, "/v1/attempts/"+id+"/start", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, f.app, "/v1/attempts/"+id+"/start", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestProcessQueueSweepResponseShape(t *testing.T) {
	f := newFixture(t, nil)

	resp := postJSON(t, f.app, "/v1/queue/process", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","processed":0,"results":[],"total_time_ms":0}`, string(raw))
}

func createRunningAttempt(t *testing.T, f fixture) string {
	t.Helper()

	resp := postJSON(t, f.app, "/v1/attempts",
		`{"simulado_id":"`+uuid.NewString()+`","proctored":true,"duration_minutes":0}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[map[string]any](t, resp)["id"].(string)

	resp = postJSON(t, f.app, "/v1/attempts/"+id+"/start", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	return id
}

func TestAttemptHeartbeatReportsRole(t *testing.T) {
	f := newFixture(t, nil)
	id := createRunningAttempt(t, f)

	resp := postJSON(t, f.app, "/v1/attempts/"+id+"/heartbeat", `{"session_id":"tab-1"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "tab-1", body["session_id"])
	assert.Equal(t, "primary", body["role"])

	// Finalizing stops the session's peer.
	resp = postJSON(t, f.app, "/v1/attempts/"+id+"/finish", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAttemptHeartbeatRequiresSessionID(t *testing.T) {
	f := newFixture(t, nil)
	id := createRunningAttempt(t, f)

	resp := postJSON(t, f.app, "/v1/attempts/"+id+"/heartbeat", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAttemptConsentIsAcknowledged(t *testing.T) {
	f := newFixture(t, nil)
	id := createRunningAttempt(t, f)

	resp := postJSON(t, f.app, "/v1/attempts/"+id+"/consent", `{"session_id":"tab-1"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]any](t, resp)["status"])
}
