package exam

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moisesblank/people-flow-desk-sub004/internal/audit"
	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*entity.AuditEntry
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *entity.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *entry
	r.entries = append(r.entries, &cp)

	return nil
}

func (r *fakeAuditRepo) actions() []entity.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()

	actions := make([]entity.AuditAction, 0, len(r.entries))
	for _, e := range r.entries {
		actions = append(actions, e.Action)
	}

	return actions
}

type fakeSnapshotRepo struct {
	mu   sync.Mutex
	keys []string
}

func (r *fakeSnapshotRepo) Put(_ context.Context, key string, _ []byte, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.keys = append(r.keys, key)

	return nil
}

func (r *fakeSnapshotRepo) Get(_ context.Context, _ string) ([]byte, error) {
	return nil, errs.ErrRecordNotFound
}

type stubFlags struct {
	enabled bool
}

func (f *stubFlags) Resolve(_ context.Context, _ string) bool { return f.enabled }

func (f *stubFlags) Get(_ context.Context, _ string) (*entity.FeatureFlag, error) {
	return nil, errs.ErrRecordNotFound
}

func (f *stubFlags) Update(_ context.Context, _ string, _ bool, _ string) error { return nil }

type supervisorFixture struct {
	sup       *Supervisor
	auditRepo *fakeAuditRepo
	snapshots *fakeSnapshotRepo
}

func newSupervisorFixture(t *testing.T, proctored, flagEnabled bool, duration time.Duration) supervisorFixture {
	t.Helper()

	l := logger.New("error")

	auditRepo := &fakeAuditRepo{}
	snapshots := &fakeSnapshotRepo{}
	sink := audit.New(auditRepo, snapshots, l)
	require.NoError(t, sink.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sink.Shutdown(ctx)
	})

	attempt := &entity.Attempt{
		ID:         uuid.New(),
		SimuladoID: uuid.New(),
		State:      entity.AttemptNotStarted,
		Proctored:  proctored,
		Duration:   duration,
	}

	sup := NewSupervisor(attempt, NewMemoryBus(), sink, &stubFlags{enabled: flagEnabled}, SystemClock, l)

	return supervisorFixture{sup: sup, auditRepo: auditRepo, snapshots: snapshots}
}

func TestSupervisorStartTransitionsToRunning(t *testing.T) {
	f := newSupervisorFixture(t, false, true, 0)

	require.NoError(t, f.sup.Start(context.Background()))

	attempt := f.sup.Attempt()
	assert.Equal(t, entity.AttemptRunning, attempt.State)
	assert.NotNil(t, attempt.StartedAt)
	assert.True(t, f.sup.Guard().Armed())

	primary, err := f.sup.Heartbeat("tab-1")
	require.NoError(t, err)
	assert.True(t, primary)

	require.NoError(t, f.sup.Finish(context.Background()))
}

func TestSupervisorStartRejectedWhenSimuladosDisabled(t *testing.T) {
	f := newSupervisorFixture(t, true, false, 0)

	err := f.sup.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, entity.AttemptNotStarted, f.sup.Attempt().State)
}

func TestSupervisorTreinoIgnoresSimuladoFlag(t *testing.T) {
	f := newSupervisorFixture(t, false, false, 0)

	require.NoError(t, f.sup.Start(context.Background()))
	require.NoError(t, f.sup.Finish(context.Background()))
}

func TestSupervisorStartTwiceIsInvalid(t *testing.T) {
	f := newSupervisorFixture(t, false, true, 0)

	require.NoError(t, f.sup.Start(context.Background()))

	err := f.sup.Start(context.Background())
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)

	require.NoError(t, f.sup.Finish(context.Background()))
}

func TestSupervisorFinishBeforeStartIsInvalid(t *testing.T) {
	f := newSupervisorFixture(t, false, true, 0)

	err := f.sup.Finish(context.Background())
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestSupervisorFinishDisarmsGuard(t *testing.T) {
	f := newSupervisorFixture(t, false, true, 0)

	require.NoError(t, f.sup.Start(context.Background()))
	require.NoError(t, f.sup.Finish(context.Background()))

	attempt := f.sup.Attempt()
	assert.Equal(t, entity.AttemptFinished, attempt.State)
	assert.NotNil(t, attempt.FinishedAt)
	assert.False(t, f.sup.Guard().Armed())

	err := f.sup.Finish(context.Background())
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestSupervisorConfirmedExitAbandonsAttempt(t *testing.T) {
	f := newSupervisorFixture(t, false, true, 0)

	require.NoError(t, f.sup.Start(context.Background()))

	intent, blocked := f.sup.Guard().Request("/dashboard")
	require.True(t, blocked)

	target, err := f.sup.Guard().Confirm(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", target)
	assert.Equal(t, entity.AttemptAbandoned, f.sup.Attempt().State)
}

func TestSupervisorDisqualifyCapturesSnapshot(t *testing.T) {
	f := newSupervisorFixture(t, true, true, 0)

	require.NoError(t, f.sup.Start(context.Background()))
	require.NoError(t, f.sup.Disqualify(context.Background(), "multiple faces detected"))

	assert.Equal(t, entity.AttemptDisqualified, f.sup.Attempt().State)

	f.snapshots.mu.Lock()
	defer f.snapshots.mu.Unlock()
	require.Len(t, f.snapshots.keys, 1)
	assert.Contains(t, f.snapshots.keys[0], f.sup.Attempt().ID.String())
}

func TestSupervisorTimesOutWhenDurationElapses(t *testing.T) {
	f := newSupervisorFixture(t, false, true, 20*time.Millisecond)

	require.NoError(t, f.sup.Start(context.Background()))

	require.Eventually(t, func() bool {
		return f.sup.Attempt().State == entity.AttemptTimedOut
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSupervisorAuditsLifecycle(t *testing.T) {
	f := newSupervisorFixture(t, true, true, 0)

	require.NoError(t, f.sup.Start(context.Background()))
	require.NoError(t, f.sup.Finish(context.Background()))

	require.Eventually(t, func() bool {
		actions := f.auditRepo.actions()

		return len(actions) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	actions := f.auditRepo.actions()
	assert.Contains(t, actions, entity.ActionStart)
	assert.Contains(t, actions, entity.ActionFinish)

	f.auditRepo.mu.Lock()
	defer f.auditRepo.mu.Unlock()
	for _, e := range f.auditRepo.entries {
		assert.Equal(t, entity.CategorySimulado, e.Category)
		assert.NotEmpty(t, e.SessionID)
		assert.Contains(t, e.Details, "fingerprint")
		assert.Contains(t, e.Details, "timestamp")
	}
}

func newClockedSupervisor(t *testing.T) (*Supervisor, *fakeClock, *MemoryBus, *fakeAuditRepo) {
	t.Helper()

	l := logger.New("error")

	auditRepo := &fakeAuditRepo{}
	sink := audit.New(auditRepo, &fakeSnapshotRepo{}, l)
	require.NoError(t, sink.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sink.Shutdown(ctx)
	})

	clock := newFakeClock()
	bus := NewMemoryBus()
	attempt := &entity.Attempt{
		ID:         uuid.New(),
		SimuladoID: uuid.New(),
		State:      entity.AttemptNotStarted,
	}

	sup := NewSupervisor(attempt, bus, sink, &stubFlags{enabled: true}, clock, l)
	t.Cleanup(sup.stopSessions)

	return sup, clock, bus, auditRepo
}

func TestSupervisorHeartbeatFirstSessionIsPrimary(t *testing.T) {
	sup, _, _, _ := newClockedSupervisor(t)

	primary, err := sup.Heartbeat("tab-a")
	require.NoError(t, err)
	assert.True(t, primary)
	assert.Equal(t, 1, sup.Sessions())
}

func TestSupervisorHeartbeatSessionDemotedBySeniorPeer(t *testing.T) {
	sup, clock, bus, _ := newClockedSupervisor(t)

	_, err := sup.Heartbeat("tab-b")
	require.NoError(t, err)

	attemptID := sup.Attempt().ID
	bus.Publish(attemptID, Message{
		Type:      MsgHeartbeat,
		PeerID:    "elder",
		AttemptID: attemptID,
		StartedAt: clock.Now().Add(-10 * time.Second),
		SentAt:    clock.Now(),
	})

	primary, err := sup.Heartbeat("tab-b")
	require.NoError(t, err)
	assert.False(t, primary)
}

func TestSupervisorHeartbeatPrunesSilentSessions(t *testing.T) {
	sup, clock, _, _ := newClockedSupervisor(t)

	_, err := sup.Heartbeat("tab-a")
	require.NoError(t, err)

	clock.Advance(PeerTimeout + time.Second)

	_, err = sup.Heartbeat("tab-b")
	require.NoError(t, err)
	assert.Equal(t, 1, sup.Sessions())
}

func TestSupervisorHeartbeatRejectedOnceTerminal(t *testing.T) {
	f := newSupervisorFixture(t, false, true, 0)

	require.NoError(t, f.sup.Start(context.Background()))
	require.NoError(t, f.sup.Finish(context.Background()))

	_, err := f.sup.Heartbeat("tab-a")
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestSupervisorConsentIsAudited(t *testing.T) {
	f := newSupervisorFixture(t, true, true, 0)

	f.sup.RegisterConsent(map[string]any{"session_id": "tab-a"})

	assert.Eventually(t, func() bool {
		for _, a := range f.auditRepo.actions() {
			if a == entity.ActionConsent {
				return true
			}
		}

		return false
	}, 2*time.Second, 10*time.Millisecond)
}
