package config

import (
	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/llm"
	"github.com/JaimeStill/assay/internal/sink"
	"github.com/JaimeStill/assay/internal/submission"
	"github.com/JaimeStill/assay/internal/worker"
	"github.com/JaimeStill/assay/pkg/broker"
	"github.com/JaimeStill/assay/pkg/database"
	"github.com/JaimeStill/assay/pkg/storage"
	"github.com/JaimeStill/assay/pkg/tracing"
	"github.com/JaimeStill/assay/pkg/warehouse"
)

var databaseEnv = &database.Env{
	Host:            "ASSAY_DB_HOST",
	Port:            "ASSAY_DB_PORT",
	Name:            "ASSAY_DB_NAME",
	User:            "ASSAY_DB_USER",
	Password:        "ASSAY_DB_PASSWORD",
	SSLMode:         "ASSAY_DB_SSL_MODE",
	MaxOpenConns:    "ASSAY_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "ASSAY_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "ASSAY_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "ASSAY_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "ASSAY_STORAGE_CONTAINER_NAME",
	ConnectionString: "ASSAY_STORAGE_CONNECTION_STRING",
	ServiceURL:       "ASSAY_STORAGE_SERVICE_URL",
	MaxRetries:       "ASSAY_STORAGE_MAX_RETRIES",
	TryTimeout:       "ASSAY_STORAGE_TRY_TIMEOUT",
}

var queueEnv = &jobs.Env{
	Backend:      "ASSAY_QUEUE_BACKEND",
	KeyPrefix:    "ASSAY_QUEUE_KEY_PREFIX",
	ResultTTL:    "ASSAY_QUEUE_RESULT_TTL",
	LeaseTimeout: "ASSAY_QUEUE_LEASE_TIMEOUT",
	MaxQueueAge:  "ASSAY_QUEUE_MAX_QUEUE_AGE",
}

var workerEnv = &worker.Env{
	ID:                "ASSAY_WORKER_ID",
	Concurrency:       "ASSAY_WORKER_CONCURRENCY",
	PollWait:          "ASSAY_WORKER_POLL_WAIT",
	HeartbeatInterval: "ASSAY_WORKER_HEARTBEAT_INTERVAL",
	ReapInterval:      "ASSAY_WORKER_REAP_INTERVAL",
}

var llmEnv = &llm.Env{
	BaseURL:     "ASSAY_LLM_BASE_URL",
	Model:       "ASSAY_LLM_MODEL",
	Timeout:     "ASSAY_LLM_TIMEOUT",
	MaxRetries:  "ASSAY_LLM_MAX_RETRIES",
	RetryDelay:  "ASSAY_LLM_RETRY_DELAY",
	KeepAlive:   "ASSAY_LLM_KEEP_ALIVE",
	NumCtx:      "ASSAY_LLM_NUM_CTX",
	Temperature: "ASSAY_LLM_TEMPERATURE",
}

var sinkEnv = &sink.Env{
	CommitRetries:        "ASSAY_SINK_COMMIT_RETRIES",
	CommitDelay:          "ASSAY_SINK_COMMIT_DELAY",
	ReconcileInterval:    "ASSAY_SINK_RECONCILE_INTERVAL",
	ReconcileGrace:       "ASSAY_SINK_RECONCILE_GRACE",
	ReconcileMaxAttempts: "ASSAY_SINK_RECONCILE_MAX_ATTEMPTS",
}

var submissionEnv = &submission.Env{
	MaxTextSize:  "ASSAY_SUBMISSION_MAX_TEXT_SIZE",
	MaxFetchSize: "ASSAY_SUBMISSION_MAX_FETCH_SIZE",
	FetchTimeout: "ASSAY_SUBMISSION_FETCH_TIMEOUT",
	FanOut:       "ASSAY_SUBMISSION_FAN_OUT",
}

var tracingEnv = &tracing.Env{
	Enabled:     "ASSAY_TRACING_ENABLED",
	Exporter:    "ASSAY_TRACING_EXPORTER",
	Endpoint:    "ASSAY_TRACING_ENDPOINT",
	Insecure:    "ASSAY_TRACING_INSECURE",
	Headers:     "ASSAY_TRACING_HEADERS",
	SampleRatio: "ASSAY_TRACING_SAMPLE_RATIO",
	ServiceName: "ASSAY_TRACING_SERVICE_NAME",
}

var redisEnv = &broker.Env{
	Addr:         "ASSAY_REDIS_ADDR",
	Username:     "ASSAY_REDIS_USERNAME",
	Password:     "ASSAY_REDIS_PASSWORD",
	DB:           "ASSAY_REDIS_DB",
	PoolSize:     "ASSAY_REDIS_POOL_SIZE",
	DialTimeout:  "ASSAY_REDIS_DIAL_TIMEOUT",
	ReadTimeout:  "ASSAY_REDIS_READ_TIMEOUT",
	WriteTimeout: "ASSAY_REDIS_WRITE_TIMEOUT",
}

var warehouseEnv = &warehouse.Env{
	Addrs:           "ASSAY_WAREHOUSE_ADDRS",
	Database:        "ASSAY_WAREHOUSE_DATABASE",
	Username:        "ASSAY_WAREHOUSE_USERNAME",
	Password:        "ASSAY_WAREHOUSE_PASSWORD",
	MaxOpenConns:    "ASSAY_WAREHOUSE_MAX_OPEN_CONNS",
	MaxIdleConns:    "ASSAY_WAREHOUSE_MAX_IDLE_CONNS",
	ConnMaxLifetime: "ASSAY_WAREHOUSE_CONN_MAX_LIFETIME",
	DialTimeout:     "ASSAY_WAREHOUSE_DIAL_TIMEOUT",
	Compress:        "ASSAY_WAREHOUSE_COMPRESS",
}
