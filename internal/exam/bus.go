package exam

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageType -.
type MessageType string

const (
	MsgHeartbeat    MessageType = "HEARTBEAT"
	MsgClaimPrimary MessageType = "CLAIM_PRIMARY"
	MsgClosing      MessageType = "TAB_CLOSING"
)

// Message is one broadcast on an attempt-scoped channel. StartedAt is the
// sender's logical clock: the peer that has existed longest wins primary
// status, so every message carries the sender's birth time.
type Message struct {
	Type      MessageType
	PeerID    string
	AttemptID uuid.UUID
	StartedAt time.Time
	SentAt    time.Time
}

// Bus is the broadcast channel abstraction the peer set gossips over. A
// subscription is scoped to one attempt id; publishes fan out to every
// subscriber of that attempt, including the sender (receivers filter their
// own id).
type Bus interface {
	Subscribe(attemptID uuid.UUID, fn func(Message)) (unsubscribe func())
	Publish(attemptID uuid.UUID, msg Message)
}

// MemoryBus is the in-process Bus used in production (peers of one attempt
// live in one process) and in tests.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[uuid.UUID]map[int]func(Message)
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs: make(map[uuid.UUID]map[int]func(Message)),
	}
}

func (b *MemoryBus) Subscribe(attemptID uuid.UUID, fn func(Message)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[attemptID] == nil {
		b.subs[attemptID] = make(map[int]func(Message))
	}

	id := b.nextID
	b.nextID++
	b.subs[attemptID][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		delete(b.subs[attemptID], id)
		if len(b.subs[attemptID]) == 0 {
			delete(b.subs, attemptID)
		}
	}
}

func (b *MemoryBus) Publish(attemptID uuid.UUID, msg Message) {
	b.mu.RLock()
	fns := make([]func(Message), 0, len(b.subs[attemptID]))
	for _, fn := range b.subs[attemptID] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	// Delivered outside the bus lock so a handler may publish in turn.
	for _, fn := range fns {
		fn(msg)
	}
}
