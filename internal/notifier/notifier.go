package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"resty.dev/v3"

	"github.com/veranemoloko/media-queue/internal/config"
	"github.com/veranemoloko/media-queue/internal/domain"
	errpkg "github.com/veranemoloko/media-queue/internal/errors"
	"github.com/veranemoloko/media-queue/internal/metrics"
	"github.com/veranemoloko/media-queue/internal/repository"
)

// Event is the JSON body delivered to a task's callback URL.
type Event struct {
	Status         domain.TaskStatus `json:"status"`
	TaskID         string            `json:"task_id"`
	FileURL        string            `json:"file_url,omitempty"`
	TaskType       domain.TaskType   `json:"task_type"`
	OriginalURL    string            `json:"original_url"`
	CompletionTime string            `json:"completion_time"`
	StorageType    string            `json:"storage_type"`
}

// Notifier delivers completion and failure events to caller-supplied webhook
// URLs. Delivery is at-least-once with a bounded retry budget; an exhausted
// budget is recorded on the task as webhook_status=failed and never alters
// the task's own terminal status.
type Notifier struct {
	client      *resty.Client
	store       *repository.TaskStore
	baseURL     string
	storageType string
	logger      *slog.Logger
}

// New creates a Notifier. Retries use exponential backoff between
// cfg.WebhookRetryWait and cfg.WebhookRetryMaxWait and fire only for
// retryable outcomes: transport errors, request timeout and 408/429/5xx
// responses.
func New(cfg *config.Config, store *repository.TaskStore, storageType string, logger *slog.Logger) *Notifier {
	client := resty.New().
		SetTimeout(cfg.WebhookTimeout).
		SetRetryCount(cfg.WebhookRetryCount).
		SetRetryWaitTime(cfg.WebhookRetryWait).
		SetRetryMaxWaitTime(cfg.WebhookRetryMaxWait).
		AddRetryConditions(func(res *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return retryableStatus(res.StatusCode())
		})

	return &Notifier{
		client:      client,
		store:       store,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		storageType: storageType,
		logger:      logger,
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

// Notify delivers the terminal event for a task and records the delivery
// outcome on the task record. Tasks without a webhook URL are skipped.
func (n *Notifier) Notify(ctx context.Context, task *domain.Task) {
	if task.WebhookURL == "" {
		return
	}

	event := n.buildEvent(task)

	err := n.deliver(ctx, task.WebhookURL, event)

	status := domain.WebhookStatusDelivered
	cause := ""
	if err != nil {
		status = domain.WebhookStatusFailed
		cause = err.Error()
		metrics.WebhooksFailed.Inc()
		n.logger.Error("webhook delivery failed",
			"task_id", task.ID,
			"webhook_url", task.WebhookURL,
			"error", err,
		)
	} else {
		metrics.WebhooksDelivered.Inc()
		n.logger.Info("webhook delivered",
			"task_id", task.ID,
			"webhook_url", task.WebhookURL,
		)
	}

	// Annotation only: the task's own completed/error status is untouched.
	if _, merr := n.store.Mutate(ctx, task.ID, func(t *domain.Task) {
		t.WebhookStatus = status
		t.WebhookError = cause
	}); merr != nil {
		if errors.Is(merr, errpkg.ErrTaskNotFound) {
			// Retention expiry beat the annotation; nothing left to record.
			n.logger.Debug("task gone before webhook annotation", "task_id", task.ID)
			return
		}
		n.logger.Error("failed to record webhook status",
			"task_id", task.ID,
			"error", merr,
		)
	}
}

func (n *Notifier) buildEvent(task *domain.Task) Event {
	event := Event{
		Status:      task.Status,
		TaskID:      task.ID,
		TaskType:    task.Type,
		OriginalURL: task.Payload.URL,
		StorageType: n.storageType,
	}
	if task.CompletedAt != nil {
		event.CompletionTime = task.CompletedAt.Format("2006-01-02T15:04:05.999999")
	}
	if task.Result != "" {
		event.FileURL = n.baseURL + task.Result
	}
	return event
}

func (n *Notifier) deliver(ctx context.Context, url string, event Event) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(event).
		Post(url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}

// Close releases the underlying HTTP client resources.
func (n *Notifier) Close() error {
	return n.client.Close()
}
