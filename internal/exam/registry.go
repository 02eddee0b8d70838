package exam

import (
	"sync"

	"github.com/google/uuid"

	"github.com/moisesblank/people-flow-desk-sub004/internal/audit"
	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/internal/usecase"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
)

// Registry hands out one Supervisor per attempt id. All supervisors share
// the bus, so sessions of the same attempt see each other's broadcasts.
type Registry struct {
	bus    Bus
	sink   *audit.Sink
	flags  usecase.FlagUseCase
	clock  Clock
	logger logger.Interface

	mu          sync.Mutex
	supervisors map[uuid.UUID]*Supervisor
}

func NewRegistry(bus Bus, sink *audit.Sink, flags usecase.FlagUseCase, clock Clock, l logger.Interface) *Registry {
	return &Registry{
		bus:         bus,
		sink:        sink,
		flags:       flags,
		clock:       clock,
		logger:      l,
		supervisors: make(map[uuid.UUID]*Supervisor),
	}
}

// GetOrCreate returns the attempt's supervisor, creating it on first use.
func (r *Registry) GetOrCreate(attempt *entity.Attempt) *Supervisor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.supervisors[attempt.ID]; ok {
		return s
	}

	s := NewSupervisor(attempt, r.bus, r.sink, r.flags, r.clock, r.logger)
	r.supervisors[attempt.ID] = s

	return s
}

// Get -.
func (r *Registry) Get(attemptID uuid.UUID) (*Supervisor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.supervisors[attemptID]

	return s, ok
}

// Remove drops a finished attempt's supervisor.
func (r *Registry) Remove(attemptID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.supervisors, attemptID)
}
