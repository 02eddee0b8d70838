package exam

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

// LockTimeout is the failsafe window: a lock held longer than this is
// treated as abandoned by a crashed action and implicitly released, so a
// stuck caller can never deadlock the attempt permanently.
const LockTimeout = 30 * time.Second

// Action kinds guarded by the lock.
const (
	LockStart  = "start"
	LockFinish = "finish"
)

type lockState struct {
	actionID uuid.UUID
	lockedAt time.Time
}

// ActionLock serializes a single async action per kind. A second call while
// the first is in flight gets errs.ErrLocked immediately — the guard against
// double submission from rapid repeated calls.
type ActionLock struct {
	clock  Clock
	logger logger.Interface

	mu   sync.Mutex
	held map[string]lockState
}

func NewActionLock(clock Clock, l logger.Interface) *ActionLock {
	return &ActionLock{
		clock:  clock,
		logger: l,
		held:   make(map[string]lockState),
	}
}

// Do runs fn under the named lock. The release runs on every exit path and
// only releases its own acquisition — a stale takeover is never undone by
// the previous holder's deferred release.
func (al *ActionLock) Do(ctx context.Context, action string, fn func(ctx context.Context) error) error {
	actionID, err := al.acquire(action)
	if err != nil {
		return err
	}
	defer al.release(action, actionID)

	return fn(ctx)
}

func (al *ActionLock) acquire(action string) (uuid.UUID, error) {
	al.mu.Lock()
	defer al.mu.Unlock()

	if st, ok := al.held[action]; ok {
		if al.clock.Now().Sub(st.lockedAt) < LockTimeout {
			al.logger.Warn("action %q already locked, action_id = %s", action, st.actionID)

			return uuid.Nil, errs.ErrLocked
		}

		al.logger.Warn("stale %q lock released after timeout, action_id = %s", action, st.actionID)
	}

	actionID := uuid.New()
	al.held[action] = lockState{actionID: actionID, lockedAt: al.clock.Now()}

	return actionID, nil
}

func (al *ActionLock) release(action string, actionID uuid.UUID) {
	al.mu.Lock()
	defer al.mu.Unlock()

	if st, ok := al.held[action]; ok && st.actionID == actionID {
		delete(al.held, action)
	}
}
