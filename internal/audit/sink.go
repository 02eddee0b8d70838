package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/internal/repo"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
)

const (
	_defaultBufferSize   = 256
	_defaultWriteTimeout = 5 * time.Second
)

// Event is what callers hand to the sink; everything else on the persisted
// entry is enrichment.
type Event struct {
	Category   entity.AuditCategory
	Action     entity.AuditAction
	Level      entity.AuditLevel
	SimuladoID *uuid.UUID
	AttemptID  *uuid.UUID
	Details    map[string]any
}

// Sink is a fire-and-forget audit writer. Persist failures are logged and
// discarded — observability must never be a point of failure for the flow
// that emits it. A full buffer drops the entry for the same reason.
type Sink struct {
	auditRepo repo.AuditRepo
	snapshots repo.SnapshotRepo
	logger    logger.Interface

	sessionID string
	entries   chan *entity.AuditEntry

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
}

func New(auditRepo repo.AuditRepo, snapshots repo.SnapshotRepo, l logger.Interface) *Sink {
	// One correlation id per process lifetime, fingerprinted down to a
	// short stable key.
	sessionID := Fingerprint(uuid.NewString() + time.Now().Format(time.RFC3339Nano))

	return &Sink{
		auditRepo: auditRepo,
		snapshots: snapshots,
		logger:    l,
		sessionID: sessionID,
		entries:   make(chan *entity.AuditEntry, _defaultBufferSize),
	}
}

// SessionID -.
func (s *Sink) SessionID() string { return s.sessionID }

func (s *Sink) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("Sink - Start - sink already started")
	}

	var loopCtx context.Context
	loopCtx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			select {
			case <-loopCtx.Done():
				s.drain()
				return
			case entry := <-s.entries:
				s.persist(entry)
			}
		}
	}()

	return nil
}

func (s *Sink) Shutdown(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Log enqueues one audit event. It never blocks and never returns an error:
// the caller's flow must complete normally whatever happens here.
func (s *Sink) Log(event Event) {
	details := make(map[string]any, len(event.Details)+2)
	for k, v := range event.Details {
		details[k] = v
	}
	details["timestamp"] = time.Now().Format(time.RFC3339)
	details["fingerprint"] = Fingerprint(s.sessionID + string(event.Action))

	entry := &entity.AuditEntry{
		ID:         uuid.New(),
		Category:   event.Category,
		Action:     event.Action,
		Level:      event.Level,
		SimuladoID: event.SimuladoID,
		AttemptID:  event.AttemptID,
		SessionID:  s.sessionID,
		Details:    details,
		CreatedAt:  time.Now(),
	}

	select {
	case s.entries <- entry:
	default:
		// Buffer full. Dropping is the documented trade: audit is
		// best-effort, the primary flow is not.
		s.logger.Warn("audit buffer full, entry dropped, action = %s", event.Action)
	}
}

// Snapshot stores an evidence blob for an attempt. Failures are swallowed
// under the same policy as Log.
func (s *Sink) Snapshot(ctx context.Context, attemptID uuid.UUID, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("audit snapshot dropped, marshal failed: %v", err)
		return
	}

	key := fmt.Sprintf("snapshots/%s/%d.json", attemptID, time.Now().UnixMilli())

	if err := s.snapshots.Put(ctx, key, data, "application/json"); err != nil {
		// Discarded by contract, not by oversight.
		s.logger.Warn("audit snapshot dropped, key = %s: %v", key, err)
	}
}

func (s *Sink) persist(entry *entity.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), _defaultWriteTimeout)
	defer cancel()

	if err := s.auditRepo.Create(ctx, entry); err != nil {
		// Discarded by contract, not by oversight.
		s.logger.Warn("audit write failed, entry dropped, action = %s: %v", entry.Action, err)
	}
}

func (s *Sink) drain() {
	for {
		select {
		case entry := <-s.entries:
			s.persist(entry)
		default:
			return
		}
	}
}
