package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"MQ_ENV" default:"development"`

	HTTPPort    int           `envconfig:"MQ_HTTP_PORT" default:"8080"`
	HTTPTimeout time.Duration `envconfig:"MQ_HTTP_TIMEOUT" default:"15s"`
	BaseURL     string        `envconfig:"MQ_BASE_URL" default:"http://localhost:8080"`

	WorkerPoolSize int           `envconfig:"MQ_WORKER_POOL_SIZE" default:"4"`
	PollInterval   time.Duration `envconfig:"MQ_POLL_INTERVAL" default:"1s"`
	FetchTimeout   time.Duration `envconfig:"MQ_FETCH_TIMEOUT" default:"30m"`
	ProbeTimeout   time.Duration `envconfig:"MQ_PROBE_TIMEOUT" default:"5s"`

	StaleTaskTimeout time.Duration `envconfig:"MQ_STALE_TASK_TIMEOUT" default:"30m"`
	RetentionWindow  time.Duration `envconfig:"MQ_RETENTION_WINDOW" default:"10m"`
	CleanupInterval  time.Duration `envconfig:"MQ_CLEANUP_INTERVAL" default:"1m"`

	QuotaCeiling         int64         `envconfig:"MQ_QUOTA_CEILING" default:"5368709120"`
	QuotaWindow          time.Duration `envconfig:"MQ_QUOTA_WINDOW" default:"10m"`
	SizeEstimateBuffer   float64       `envconfig:"MQ_SIZE_ESTIMATE_BUFFER" default:"1.10"`
	FallbackSizeEstimate int64         `envconfig:"MQ_FALLBACK_SIZE_ESTIMATE" default:"104857600"`

	WebhookRetryCount   int           `envconfig:"MQ_WEBHOOK_RETRY_COUNT" default:"3"`
	WebhookRetryWait    time.Duration `envconfig:"MQ_WEBHOOK_RETRY_WAIT" default:"1s"`
	WebhookRetryMaxWait time.Duration `envconfig:"MQ_WEBHOOK_RETRY_MAX_WAIT" default:"30s"`
	WebhookTimeout      time.Duration `envconfig:"MQ_WEBHOOK_TIMEOUT" default:"30s"`

	TasksDir    string `envconfig:"MQ_TASKS_DIR" default:"./data/tasks"`
	DownloadDir string `envconfig:"MQ_DOWNLOAD_DIR" default:"./data/downloads"`
	TempDir     string `envconfig:"MQ_TEMP_DIR" default:"./data/tmp"`

	ShutdownTimeout time.Duration `envconfig:"MQ_SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"MQ_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"MQ_LOG_FORMAT" default:"json"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker pool size must be positive: %d", c.WorkerPoolSize)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive: %s", c.PollInterval)
	}

	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive: %s", c.ProbeTimeout)
	}

	if c.StaleTaskTimeout <= 0 {
		return fmt.Errorf("stale task timeout must be positive: %s", c.StaleTaskTimeout)
	}

	if c.RetentionWindow <= 0 {
		return fmt.Errorf("retention window must be positive: %s", c.RetentionWindow)
	}

	if c.QuotaCeiling <= 0 {
		return fmt.Errorf("quota ceiling must be positive: %d", c.QuotaCeiling)
	}

	if c.QuotaWindow <= 0 {
		return fmt.Errorf("quota window must be positive: %s", c.QuotaWindow)
	}

	if c.SizeEstimateBuffer < 1.0 {
		return fmt.Errorf("size estimate buffer must be at least 1.0: %f", c.SizeEstimateBuffer)
	}

	if c.FallbackSizeEstimate <= 0 {
		return fmt.Errorf("fallback size estimate must be positive: %d", c.FallbackSizeEstimate)
	}

	if c.WebhookRetryCount < 0 {
		return fmt.Errorf("webhook retry count must not be negative: %d", c.WebhookRetryCount)
	}

	if c.TasksDir == "" {
		return fmt.Errorf("tasks directory cannot be empty")
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}
	if c.TempDir == "" {
		return fmt.Errorf("temp directory cannot be empty")
	}

	return nil
}
