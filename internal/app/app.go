package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moisesblank/people-flow-desk-sub004/config"
	"github.com/moisesblank/people-flow-desk-sub004/internal/audit"
	kafkactrl "github.com/moisesblank/people-flow-desk-sub004/internal/controller/kafka"
	"github.com/moisesblank/people-flow-desk-sub004/internal/controller/restapi"
	"github.com/moisesblank/people-flow-desk-sub004/internal/controller/worker/dispatch"
	"github.com/moisesblank/people-flow-desk-sub004/internal/exam"
	infrakafka "github.com/moisesblank/people-flow-desk-sub004/internal/infrastructure/kafka"
	"github.com/moisesblank/people-flow-desk-sub004/internal/repo/persistent"
	"github.com/moisesblank/people-flow-desk-sub004/internal/usecase/flags"
	"github.com/moisesblank/people-flow-desk-sub004/internal/usecase/orchestrate"
	"github.com/moisesblank/people-flow-desk-sub004/internal/usecase/queue"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/httpserver"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/kafka/consumer"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/kafka/producer"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/postgres"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/s3client"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/telemetry"
)

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)

	// Tracing
	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - telemetry.Init: %w", err))
	}

	// Repository

	// s3
	s3Ctx, s3Cancel := context.WithTimeout(ctx, cfg.S3.CfgLoadTimeout)
	defer s3Cancel()
	s3c, err := s3client.New(s3Ctx, cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - s3client.New: %w", err))
	}

	// postgres
	pg, err := postgres.New(cfg.PG.URL, postgres.MaxPoolSize(cfg.PG.PoolMax))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
	}
	defer pg.Close()

	// Kafka Producer
	kafkaProducer, err := producer.New(ctx, cfg.Kafka.Brokers)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
	}
	notifier := infrakafka.NewNotificationProducer(kafkaProducer, cfg.Kafka.NotificationTopic)

	// Use-Case

	// orchestrator with the default business handlers
	orchestrator := orchestrate.New(l)
	orchestrate.RegisterDefaults(orchestrator, persistent.NewEnrollmentRepo(pg), notifier, l)

	// queue use-case
	queueUseCase := queue.New(
		persistent.NewQueueRepo(pg),
		persistent.NewProcessingLogRepo(pg),
		orchestrator,
		l,
		cfg.Queue.BatchSize,
		cfg.Queue.MaxRetries,
		cfg.Queue.StaleClaimAge,
		cfg.Queue.RetentionAge,
	)

	// flags use-case
	flagUseCase := flags.New(persistent.NewFlagRepo(pg), l, cfg.Flags.CacheTTL)

	// Audit Sink
	auditSink := audit.New(
		persistent.NewAuditRepo(pg),
		persistent.NewSnapshotRepo(s3c, cfg.S3.Bucket),
		l,
	)
	if err = auditSink.Start(ctx); err != nil {
		l.Fatal(fmt.Errorf("app - Run - auditSink.Start: %w", err))
	}

	// Exam Registry
	examRegistry := exam.NewRegistry(exam.NewMemoryBus(), auditSink, flagUseCase, exam.SystemClock, l)

	// Dispatch Worker
	dispatchWorker := dispatch.New(
		queueUseCase,
		l,
		cfg.Queue.PollInterval,
		cfg.Queue.SweepBatchTimeout,
		cfg.Queue.RequeueStaleSchedule,
		cfg.Queue.SweepExhaustedSchedule,
		cfg.Queue.CleanupSchedule,
	)

	// Kafka Consumer
	kafkaConsumer, err := consumer.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.IngressTopic)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - consumer.New: %w", err))
	}

	// Kafka as Controller
	kafkaController := kafkactrl.New(
		queueUseCase,
		infrakafka.NewEventConsumer(kafkaConsumer),
		l,
		cfg.KafkaController.CommitTimeout,
		cfg.KafkaController.EnqueueTimeout,
		cfg.KafkaController.Workers,
	)

	// HTTP Server
	httpServer := httpserver.New(l, httpserver.Port(cfg.HTTP.Port), httpserver.Prefork(cfg.HTTP.UsePreforkMode))
	restapi.NewRouter(httpServer.App, cfg, queueUseCase, flagUseCase, examRegistry, l)

	// Start Components
	err = dispatchWorker.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - dispatchWorker.Start: %w", err))
	}
	err = kafkaController.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - kafkaController.Start: %w", err))
	}
	httpServer.Start()

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err = <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	}

	// Shutdown
	err = httpServer.Shutdown()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	dwShutdownCtx, dwShutdownCancel := context.WithTimeout(ctx, cfg.Queue.ShutdownTimeout)
	defer dwShutdownCancel()
	err = dispatchWorker.Shutdown(dwShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - dispatchWorker.Shutdown: %w", err))
	}

	kcShutdownCtx, kcShutdownCancel := context.WithTimeout(ctx, cfg.KafkaController.ShutdownTimeout)
	defer kcShutdownCancel()
	err = kafkaController.Shutdown(kcShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - kafkaController.Shutdown: %w", err))
	}

	asShutdownCtx, asShutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer asShutdownCancel()
	err = auditSink.Shutdown(asShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - auditSink.Shutdown: %w", err))
	}

	err = notifier.Close()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - notifier.Close: %w", err))
	}

	ttShutdownCtx, ttShutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ttShutdownCancel()
	err = shutdownTracing(ttShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - shutdownTracing: %w", err))
	}
}
