// Package kafka is the broker-side ingress: internal producers (the LMS
// mainly) publish events to a topic instead of calling the HTTP gateway, and
// this controller funnels them into the same durable queue.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/moisesblank/people-flow-desk-sub004/internal/dto"
	kafkapc "github.com/moisesblank/people-flow-desk-sub004/internal/infrastructure/kafka"
	"github.com/moisesblank/people-flow-desk-sub004/internal/usecase"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
)

type KafkaController struct {
	queue  usecase.QueueUseCase
	ec     *kafkapc.EventConsumer
	logger logger.Interface

	commitTimeout  time.Duration
	enqueueTimeout time.Duration

	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	started atomic.Bool
}

func New(
	queue usecase.QueueUseCase,
	ec *kafkapc.EventConsumer,
	l logger.Interface,
	commitTimeout time.Duration,
	enqueueTimeout time.Duration,
	workers int,
) *KafkaController {
	return &KafkaController{
		queue:          queue,
		ec:             ec,
		logger:         l,
		commitTimeout:  commitTimeout,
		enqueueTimeout: enqueueTimeout,
		workers:        workers,
	}
}

func (c *KafkaController) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("KafkaController - Start - controller already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	tasks := make(chan kafka.Message, c.workers*2)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(tasks)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(tasks)

		for {
			select {
			case <-c.ctx.Done():
				return
			default:
				event, err := c.ec.ReadEvent(c.ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						c.logger.Error(err, "KafkaController - Start - c.ec.ReadEvent")
					}
					continue
				}

				select {
				case tasks <- event:
				case <-c.ctx.Done():
					return
				}
			}
		}
	}()

	return nil
}

// enqueue persists one broker message as a queue item. Source and event come
// from message headers, with the message key as an event fallback, so the
// orchestrator routes broker and HTTP traffic identically.
func (c *KafkaController) enqueue(ctx context.Context, event kafka.Message) error {
	inbound := dto.InboundEvent{
		Source:  "kafka",
		Event:   string(event.Key),
		Payload: event.Value,
	}

	for _, h := range event.Headers {
		switch h.Key {
		case "source":
			inbound.Source = string(h.Value)
		case "event":
			inbound.Event = string(h.Value)
		}
	}
	if inbound.Event == "" {
		inbound.Event = "unknown"
	}

	_, err := c.queue.Enqueue(ctx, inbound)
	if err != nil {
		return fmt.Errorf("KafkaController - enqueue - c.queue.Enqueue: %w", err)
	}

	return nil
}

func (c *KafkaController) worker(tasks <-chan kafka.Message) {
	defer c.wg.Done()

	for event := range tasks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error(fmt.Errorf("panic %v", r), "KafkaController - worker - panic")
				}
			}()

			enqueueCtx, enqueueCancel := context.WithTimeout(c.ctx, c.enqueueTimeout)
			err := c.enqueue(enqueueCtx, event)
			enqueueCancel()
			if err != nil {
				// Not committed; the broker redelivers it.
				c.logger.Error(err, "KafkaController - worker - c.enqueue")

				return
			}

			commitCtx, commitCancel := context.WithTimeout(c.ctx, c.commitTimeout)
			err = c.ec.CommitEvent(commitCtx, event)
			commitCancel()
			if err != nil {
				c.logger.Error(err, "KafkaController - worker - c.ec.CommitEvent")
			}
		}()
	}
}

func (c *KafkaController) Shutdown(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})

	go func() {
		c.wg.Wait()
		c.ec.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}
