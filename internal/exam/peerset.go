package exam

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
)

const (
	// HeartbeatInterval is how often a peer announces itself.
	HeartbeatInterval = 2 * time.Second

	// PeerTimeout prunes peers that stopped heartbeating — a closed tab
	// that never managed to broadcast its closing notice.
	PeerTimeout = 5 * time.Second

	// seniorityGrace absorbs clock skew between peers: a peer only
	// outranks us when it predates our own start by more than this.
	seniorityGrace = time.Second
)

type peerRecord struct {
	startedAt time.Time
	lastSeen  time.Time
}

// PeerSet arbitrates primary status among the sessions of one exam attempt.
// Each participant owns exactly one record it broadcasts; peers are only
// observed, never mutated. Tie-break is deliberate and fixed: the peer with
// the earlier start time wins — a later arrival never takes over unless it
// explicitly force-claims.
type PeerSet struct {
	bus    Bus
	clock  Clock
	logger logger.Interface

	id        string
	attemptID uuid.UUID
	startedAt time.Time

	onDemote  func()
	onPromote func()

	mu      sync.Mutex
	peers   map[string]peerRecord
	primary bool

	unsubscribe func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewPeerSet(bus Bus, clock Clock, l logger.Interface, attemptID uuid.UUID, onDemote, onPromote func()) *PeerSet {
	return &PeerSet{
		bus:       bus,
		clock:     clock,
		logger:    l,
		id:        uuid.NewString(),
		attemptID: attemptID,
		onDemote:  onDemote,
		onPromote: onPromote,
		peers:     make(map[string]peerRecord),
	}
}

// ID -.
func (p *PeerSet) ID() string { return p.id }

// IsPrimary -.
func (p *PeerSet) IsPrimary() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.primary
}

// Start joins the attempt channel. A new participant assumes primary until a
// senior peer's heartbeat says otherwise.
func (p *PeerSet) Start(ctx context.Context) {
	p.mu.Lock()
	p.startedAt = p.clock.Now()
	p.primary = true
	p.mu.Unlock()

	p.unsubscribe = p.bus.Subscribe(p.attemptID, p.handle)

	var loopCtx context.Context
	loopCtx, p.cancel = context.WithCancel(ctx)

	p.broadcast(MsgHeartbeat)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				p.broadcast(MsgHeartbeat)
				p.prune()
			}
		}
	}()
}

// Stop broadcasts the closing notice so a secondary can promote without
// waiting out the heartbeat timeout.
func (p *PeerSet) Stop() {
	if p.cancel != nil {
		p.cancel()
	}

	p.broadcast(MsgClosing)

	if p.unsubscribe != nil {
		p.unsubscribe()
	}

	p.wg.Wait()
}

// ClaimPrimary force-reclaims primary status, immediately demoting every
// peer.
func (p *PeerSet) ClaimPrimary() {
	p.mu.Lock()
	p.primary = true
	p.mu.Unlock()

	p.broadcast(MsgClaimPrimary)
}

func (p *PeerSet) broadcast(t MessageType) {
	p.mu.Lock()
	startedAt := p.startedAt
	p.mu.Unlock()

	p.bus.Publish(p.attemptID, Message{
		Type:      t,
		PeerID:    p.id,
		AttemptID: p.attemptID,
		StartedAt: startedAt,
		SentAt:    p.clock.Now(),
	})
}

func (p *PeerSet) handle(msg Message) {
	if msg.PeerID == p.id || msg.AttemptID != p.attemptID {
		return
	}

	switch msg.Type {
	case MsgHeartbeat:
		p.observe(msg)
	case MsgClaimPrimary:
		p.observe(msg)
		p.demote("peer force-claimed primary")
	case MsgClosing:
		p.forget(msg.PeerID)
	}
}

func (p *PeerSet) observe(msg Message) {
	p.mu.Lock()
	p.peers[msg.PeerID] = peerRecord{startedAt: msg.StartedAt, lastSeen: p.clock.Now()}
	senior := p.primary && p.startedAt.Sub(msg.StartedAt) > seniorityGrace
	p.mu.Unlock()

	if senior {
		p.demote("senior peer detected")
	}
}

func (p *PeerSet) forget(peerID string) {
	p.mu.Lock()
	delete(p.peers, peerID)
	p.mu.Unlock()

	p.maybePromote()
}

func (p *PeerSet) prune() {
	cutoff := p.clock.Now().Add(-PeerTimeout)

	p.mu.Lock()
	for id, rec := range p.peers {
		if rec.lastSeen.Before(cutoff) {
			delete(p.peers, id)
		}
	}
	p.mu.Unlock()

	p.maybePromote()
}

func (p *PeerSet) demote(reason string) {
	p.mu.Lock()
	wasPrimary := p.primary
	p.primary = false
	p.mu.Unlock()

	if wasPrimary {
		p.logger.Warn("peer %s demoted to secondary: %s", p.id, reason)

		if p.onDemote != nil {
			p.onDemote()
		}
	}
}

// maybePromote promotes a secondary once no surviving peer outranks it.
func (p *PeerSet) maybePromote() {
	p.mu.Lock()
	if p.primary {
		p.mu.Unlock()
		return
	}

	for _, rec := range p.peers {
		if p.startedAt.Sub(rec.startedAt) > seniorityGrace {
			p.mu.Unlock()
			return
		}
	}

	p.primary = true
	p.mu.Unlock()

	p.logger.Info("peer %s promoted to primary", p.id)

	if p.onPromote != nil {
		p.onPromote()
	}
}
