package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/moisesblank/people-flow-desk-sub004/internal/usecase"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
)

// Worker drains the webhook queue in the background: a poll loop claims and
// dispatches pending batches, and cron jobs run the maintenance sweeps
// (requeue of stale claims, exhausted-retry fail marking, terminal-row
// retention).
type Worker struct {
	queue  usecase.QueueUseCase
	logger logger.Interface

	pollInterval      time.Duration
	sweepBatchTimeout time.Duration

	requeueStaleSchedule   string
	sweepExhaustedSchedule string
	cleanupSchedule        string

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(
	queue usecase.QueueUseCase,
	l logger.Interface,
	pollInterval time.Duration,
	sweepBatchTimeout time.Duration,
	requeueStaleSchedule string,
	sweepExhaustedSchedule string,
	cleanupSchedule string,
) *Worker {
	return &Worker{
		queue:                  queue,
		logger:                 l,
		pollInterval:           pollInterval,
		sweepBatchTimeout:      sweepBatchTimeout,
		requeueStaleSchedule:   requeueStaleSchedule,
		sweepExhaustedSchedule: sweepExhaustedSchedule,
		cleanupSchedule:        cleanupSchedule,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("Worker - Start - worker already started")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)

	// 1. maintenance on cron schedules. Registered first so a bad spec
	// fails Start before any goroutine exists.
	w.cron = cron.New()

	if _, err := w.cron.AddFunc(w.requeueStaleSchedule, func() {
		n, err := w.queue.RequeueStale(w.ctx)
		if err != nil {
			w.logger.Error(err, "Worker - Start - cron - w.queue.RequeueStale")

			return
		}
		if n > 0 {
			w.logger.Warn("requeued stale processing items: count=%d", n)
		}
	}); err != nil {
		return fmt.Errorf("Worker - Start - cron.AddFunc requeue stale: %w", err)
	}

	if _, err := w.cron.AddFunc(w.sweepExhaustedSchedule, func() {
		if err := w.queue.SweepExhausted(w.ctx); err != nil {
			w.logger.Error(err, "Worker - Start - cron - w.queue.SweepExhausted")
		}
	}); err != nil {
		return fmt.Errorf("Worker - Start - cron.AddFunc sweep exhausted: %w", err)
	}

	if _, err := w.cron.AddFunc(w.cleanupSchedule, func() {
		if err := w.queue.Cleanup(w.ctx); err != nil {
			w.logger.Error(err, "Worker - Start - cron - w.queue.Cleanup")
		}
	}); err != nil {
		return fmt.Errorf("Worker - Start - cron.AddFunc cleanup: %w", err)
	}

	// 2. poll worker claiming and dispatching pending batches
	w.worker(w.pollInterval, func() {
		batchCtx, batchCancel := context.WithTimeout(w.ctx, w.sweepBatchTimeout)
		w.sweepBatch(batchCtx)
		batchCancel()
	})

	w.cron.Start()

	return nil
}

func (w *Worker) sweepBatch(ctx context.Context) {
	sweep := w.queue.Sweep(ctx)
	if sweep.Processed == 0 {
		return
	}

	failed := 0
	for _, result := range sweep.Results {
		if result.Error != "" {
			failed++
		}
	}

	w.logger.Info("sweep finished: processed=%d failed=%d total_time_ms=%d",
		sweep.Processed, failed, sweep.TotalTimeMS)
}

func (w *Worker) worker(interval time.Duration, task func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				task()
			}
		}
	}()
}

func (w *Worker) Shutdown(ctx context.Context) error {
	if !w.started.Load() {
		return nil
	}

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})

	go func() {
		if w.cron != nil {
			<-w.cron.Stop().Done()
		}
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}
