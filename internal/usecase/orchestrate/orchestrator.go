package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/moisesblank/people-flow-desk-sub004/internal/dto"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

// HandlerFunc performs the business side effect for one queue item and
// returns an opaque result payload stored on the item.
type HandlerFunc func(ctx context.Context, job dto.Job) (json.RawMessage, error)

type routeKey struct {
	source string
	event  string
}

// Orchestrator routes claimed queue items to handlers keyed by
// (source, event). A source may register a wildcard handler that catches
// every event an exact route does not.
type Orchestrator struct {
	routes    map[routeKey]HandlerFunc
	wildcards map[string]HandlerFunc
	logger    logger.Interface
}

func New(l logger.Interface) *Orchestrator {
	return &Orchestrator{
		routes:    make(map[routeKey]HandlerFunc),
		wildcards: make(map[string]HandlerFunc),
		logger:    l,
	}
}

// Register binds a handler to an exact (source, event) pair.
func (o *Orchestrator) Register(source, event string, h HandlerFunc) {
	o.routes[routeKey{source: source, event: event}] = h
}

// RegisterWildcard binds a fallback handler for every event of a source.
func (o *Orchestrator) RegisterWildcard(source string, h HandlerFunc) {
	o.wildcards[source] = h
}

// Dispatch resolves the route and invokes the handler. Unknown pairs return
// errs.ErrUnroutable, which the worker treats as terminal — retrying cannot
// make a route appear.
func (o *Orchestrator) Dispatch(ctx context.Context, job dto.Job) (json.RawMessage, error) {
	h, ok := o.routes[routeKey{source: job.Source, event: job.Event}]
	if !ok {
		h, ok = o.wildcards[job.Source]
	}
	if !ok {
		return nil, fmt.Errorf("Orchestrator - Dispatch - %s/%s: %w", job.Source, job.Event, errs.ErrUnroutable)
	}

	result, err := h(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("Orchestrator - Dispatch - %s/%s: %w", job.Source, job.Event, err)
	}

	return result, nil
}
