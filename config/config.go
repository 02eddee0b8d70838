package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type (
	Config struct {
		HTTP            HTTP
		Log             Log
		PG              PG
		S3              S3
		Kafka           Kafka
		KafkaController KafkaController
		Queue           Queue
		Webhook         Webhook
		Flags           Flags
		Telemetry       Telemetry
		Swagger         Swagger
	}

	HTTP struct {
		Port           string `env:"HTTP_PORT,required"`
		UsePreforkMode bool   `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL,required" validate:"oneof=debug info warn error fatal"`
	}

	PG struct {
		PoolMax int    `env:"PG_POOL_MAX,required" validate:"min=1"`
		URL     string `env:"PG_URL,required"`
	}

	S3 struct {
		Endpoint       string        `env:"S3_ENDPOINT,required"`
		AccessKey      string        `env:"S3_ACCESS_KEY,required"`
		SecretKey      string        `env:"S3_SECRET_KEY,required"`
		Bucket         string        `env:"S3_BUCKET,required"`
		CfgLoadTimeout time.Duration `env:"S3_LOAD_CFG_TIMEOUT" envDefault:"10s"`
	}

	Kafka struct {
		Brokers []string `env:"KAFKA_BROKERS,required" validate:"min=1"`
		GroupID string   `env:"KAFKA_GROUP_ID,required"`
		// IngressTopic carries events published by internal producers;
		// NotificationTopic carries outbound side-effect notifications.
		IngressTopic      string `env:"KAFKA_INGRESS_TOPIC,required"`
		NotificationTopic string `env:"KAFKA_NOTIFICATION_TOPIC,required"`
	}

	KafkaController struct {
		CommitTimeout   time.Duration `env:"KAFKA_CONTROLLER_COMMIT_TIMEOUT" envDefault:"2s"`
		EnqueueTimeout  time.Duration `env:"KAFKA_CONTROLLER_ENQUEUE_TIMEOUT" envDefault:"5s"`
		ShutdownTimeout time.Duration `env:"KAFKA_CONTROLLER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		Workers         int           `env:"KAFKA_CONTROLLER_WORKERS" envDefault:"4" validate:"min=1"`
	}

	Queue struct {
		PollInterval           time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
		SweepBatchTimeout      time.Duration `env:"QUEUE_SWEEP_BATCH_TIMEOUT" envDefault:"60s"`
		ShutdownTimeout        time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		BatchSize              int           `env:"QUEUE_BATCH_SIZE" envDefault:"10" validate:"min=1"`
		MaxRetries             int           `env:"QUEUE_MAX_RETRIES" envDefault:"3" validate:"min=0"`
		StaleClaimAge          time.Duration `env:"QUEUE_STALE_CLAIM_AGE" envDefault:"10m"`
		RetentionAge           time.Duration `env:"QUEUE_RETENTION_AGE" envDefault:"720h"`
		RequeueStaleSchedule   string        `env:"QUEUE_REQUEUE_STALE_SCHEDULE" envDefault:"*/5 * * * *"`
		SweepExhaustedSchedule string        `env:"QUEUE_SWEEP_EXHAUSTED_SCHEDULE" envDefault:"*/2 * * * *"`
		CleanupSchedule        string        `env:"QUEUE_CLEANUP_SCHEDULE" envDefault:"0 4 * * *"`
	}

	Webhook struct {
		// Empty secrets leave their source unverified on purpose: a
		// misconfigured secret must not drop purchase events.
		HotmartSecret   string `env:"WEBHOOK_HOTMART_SECRET"`
		CMSSecret       string `env:"WEBHOOK_CMS_SECRET"`
		MessagingSecret string `env:"WEBHOOK_MESSAGING_SECRET"`
		VerifyToken     string `env:"WEBHOOK_VERIFY_TOKEN"`
	}

	Flags struct {
		CacheTTL time.Duration `env:"FLAGS_CACHE_TTL" envDefault:"30s"`
	}

	Telemetry struct {
		// Tracing is off when the endpoint is empty.
		OTLPEndpoint string `env:"TELEMETRY_OTLP_ENDPOINT"`
		ServiceName  string `env:"TELEMETRY_SERVICE_NAME" envDefault:"people-flow-desk"`
	}

	Swagger struct {
		Enabled bool `env:"SWAGGER_ENABLED" envDefault:"false"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return cfg, nil
}
