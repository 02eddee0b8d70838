package exam

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moisesblank/people-flow-desk-sub004/internal/audit"
	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/internal/usecase"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

// SimuladoEnabledFlag gates proctored attempts. Resolves fail-open: with no
// row configured, simulados run.
const SimuladoEnabledFlag = "simulado_enabled"

// Supervisor drives one attempt's state machine and owns its concurrency
// guards: the start/finish action lock, the per-session peers arbitrating
// primary status across browser tabs, and the exit guard intercepting
// navigation while the attempt runs. Every transition is audited.
type Supervisor struct {
	locks *ActionLock
	guard *ExitGuard

	bus    Bus
	sink   *audit.Sink
	flags  usecase.FlagUseCase
	clock  Clock
	logger logger.Interface

	mu           sync.Mutex
	attempt      *entity.Attempt
	timeoutTimer *time.Timer
	sessions     map[string]*browserSession
}

// browserSession is one tab's server-side presence: its peer on the gossip
// bus plus the time of its last heartbeat call.
type browserSession struct {
	peers    *PeerSet
	lastBeat time.Time
}

func NewSupervisor(
	attempt *entity.Attempt,
	bus Bus,
	sink *audit.Sink,
	flags usecase.FlagUseCase,
	clock Clock,
	l logger.Interface,
) *Supervisor {
	s := &Supervisor{
		locks:    NewActionLock(clock, l),
		bus:      bus,
		sink:     sink,
		flags:    flags,
		clock:    clock,
		logger:   l,
		attempt:  attempt,
		sessions: make(map[string]*browserSession),
	}

	s.guard = NewExitGuard(clock, l, func(ctx context.Context) error {
		// Confirmed exit mid-attempt finalizes it as abandoned.
		return s.Abandon(ctx)
	})

	return s
}

// Attempt returns a copy of the current attempt record.
func (s *Supervisor) Attempt() entity.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	return *s.attempt
}

// Guard -.
func (s *Supervisor) Guard() *ExitGuard { return s.guard }

// Start transitions NOT_STARTED to RUNNING under the start lock. A
// concurrent Start while one is in flight returns errs.ErrLocked and does
// nothing — callers treat that as "ignored, already in progress".
func (s *Supervisor) Start(ctx context.Context) error {
	return s.locks.Do(ctx, LockStart, func(ctx context.Context) error {
		s.mu.Lock()

		if s.attempt.Proctored && !s.flags.Resolve(ctx, SimuladoEnabledFlag) {
			s.mu.Unlock()

			return fmt.Errorf("Supervisor - Start: simulados are disabled")
		}

		if s.attempt.State != entity.AttemptNotStarted {
			s.mu.Unlock()

			return fmt.Errorf("Supervisor - Start - %s: %w", s.attempt.State, errs.ErrInvalidTransition)
		}

		now := s.clock.Now()
		s.attempt.State = entity.AttemptRunning
		s.attempt.StartedAt = &now

		if s.attempt.Duration > 0 {
			s.timeoutTimer = time.AfterFunc(s.attempt.Duration, func() {
				if err := s.Timeout(context.Background()); err != nil {
					s.logger.Error(err, "Supervisor - timeout timer")
				}
			})
		}
		s.mu.Unlock()

		s.guard.Arm()

		s.auditEvent(entity.ActionStart, entity.LevelInfo, nil)

		return nil
	})
}

// Finish transitions RUNNING to FINISHED under the finish lock.
func (s *Supervisor) Finish(ctx context.Context) error {
	return s.locks.Do(ctx, LockFinish, func(ctx context.Context) error {
		return s.finalize(ctx, entity.AttemptFinished, entity.ActionFinish, entity.LevelInfo)
	})
}

// Abandon finalizes a confirmed mid-attempt exit.
func (s *Supervisor) Abandon(ctx context.Context) error {
	return s.locks.Do(ctx, LockFinish, func(ctx context.Context) error {
		return s.finalize(ctx, entity.AttemptAbandoned, entity.ActionExit, entity.LevelWarn)
	})
}

// Disqualify is an explicit operator action, never an automatic side effect
// of the detectors.
func (s *Supervisor) Disqualify(ctx context.Context, reason string) error {
	err := s.finalize(ctx, entity.AttemptDisqualified, entity.ActionDisqualify, entity.LevelError)
	if err != nil {
		return err
	}

	s.sink.Snapshot(ctx, s.attempt.ID, map[string]any{"reason": reason})

	return nil
}

// Timeout fires when the attempt duration elapses.
func (s *Supervisor) Timeout(ctx context.Context) error {
	return s.finalize(ctx, entity.AttemptTimedOut, entity.ActionTimeout, entity.LevelWarn)
}

func (s *Supervisor) finalize(ctx context.Context, to entity.AttemptState, action entity.AuditAction, level entity.AuditLevel) error {
	s.mu.Lock()

	if s.attempt.State != entity.AttemptRunning {
		s.mu.Unlock()

		return fmt.Errorf("Supervisor - finalize - %s: %w", s.attempt.State, errs.ErrInvalidTransition)
	}

	now := s.clock.Now()
	s.attempt.State = to
	s.attempt.FinishedAt = &now

	if s.timeoutTimer != nil {
		s.timeoutTimer.Stop()
		s.timeoutTimer = nil
	}
	s.mu.Unlock()

	s.guard.Disarm()
	s.stopSessions()

	s.auditEvent(action, level, map[string]any{"state": string(to)})

	return nil
}

// Heartbeat registers or refreshes one browser session of this attempt. Each
// session owns its own peer on the shared bus, so tabs of the same attempt
// arbitrate primary status among themselves. A session that stops calling is
// pruned after PeerTimeout, broadcasting its closing notice so a survivor
// promotes. Returns whether the session currently holds primary.
func (s *Supervisor) Heartbeat(sessionID string) (bool, error) {
	s.mu.Lock()

	if s.attempt.State.Terminal() {
		state := s.attempt.State
		s.mu.Unlock()

		return false, fmt.Errorf("Supervisor - Heartbeat - %s: %w", state, errs.ErrInvalidTransition)
	}

	now := s.clock.Now()
	cutoff := now.Add(-PeerTimeout)

	var stale []*PeerSet
	for id, sess := range s.sessions {
		if id != sessionID && sess.lastBeat.Before(cutoff) {
			stale = append(stale, sess.peers)
			delete(s.sessions, id)
		}
	}

	sess, known := s.sessions[sessionID]
	if !known {
		sess = &browserSession{peers: s.newSessionPeers(sessionID)}
		s.sessions[sessionID] = sess
	}
	sess.lastBeat = now
	peers := sess.peers
	s.mu.Unlock()

	for _, p := range stale {
		p.Stop()
	}

	if !known {
		// The peer outlives the heartbeat call that created it; its
		// lifetime is governed by lastBeat pruning, not a request
		// context.
		peers.Start(context.Background())
	}

	return peers.IsPrimary(), nil
}

// Sessions reports how many browser sessions are currently registered.
func (s *Supervisor) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

// RegisterConsent records the student's proctoring consent. Audit-only and
// fire-and-forget: consent never blocks the attempt flow.
func (s *Supervisor) RegisterConsent(details map[string]any) {
	s.auditEvent(entity.ActionConsent, entity.LevelInfo, details)
}

func (s *Supervisor) newSessionPeers(sessionID string) *PeerSet {
	return NewPeerSet(s.bus, s.clock, s.logger, s.attempt.ID,
		func() {
			s.auditEvent(entity.ActionTabSwitch, entity.LevelWarn, map[string]any{"session_id": sessionID, "role": "secondary"})
		},
		func() {
			s.auditEvent(entity.ActionResume, entity.LevelInfo, map[string]any{"session_id": sessionID, "role": "primary"})
		},
	)
}

func (s *Supervisor) stopSessions() {
	s.mu.Lock()
	peers := make([]*PeerSet, 0, len(s.sessions))
	for _, sess := range s.sessions {
		peers = append(peers, sess.peers)
	}
	s.sessions = make(map[string]*browserSession)
	s.mu.Unlock()

	for _, p := range peers {
		p.Stop()
	}
}

func (s *Supervisor) auditEvent(action entity.AuditAction, level entity.AuditLevel, details map[string]any) {
	s.mu.Lock()
	attemptID := s.attempt.ID
	simuladoID := s.attempt.SimuladoID
	category := entity.CategoryTreino
	if s.attempt.Proctored {
		category = entity.CategorySimulado
	}
	s.mu.Unlock()

	s.sink.Log(audit.Event{
		Category:   category,
		Action:     action,
		Level:      level,
		SimuladoID: &simuladoID,
		AttemptID:  &attemptID,
		Details:    details,
	})
}
