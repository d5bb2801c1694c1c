package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/veranemoloko/media-queue/internal/domain"
	errpkg "github.com/veranemoloko/media-queue/internal/errors"
	"github.com/veranemoloko/media-queue/internal/metrics"
	"github.com/veranemoloko/media-queue/internal/repository"
)

// createIDAttempts bounds the retry loop for the astronomically unlikely
// case of a UUID collision in the store.
const createIDAttempts = 3

// TaskService is the application layer between the HTTP API and the task
// registry. Creation only records the task in waiting state; the scheduler
// picks it up on its next pass.
type TaskService struct {
	store  *repository.TaskStore
	logger *slog.Logger
	closed atomic.Bool
}

func NewTaskService(store *repository.TaskStore, logger *slog.Logger) *TaskService {
	return &TaskService{
		store:  store,
		logger: logger,
	}
}

// Close rejects all subsequent CreateTask calls. Called once shutdown begins
// so no task is accepted that the scheduler will never dispatch.
func (s *TaskService) Close() {
	s.closed.Store(true)
}

// CreateTask registers a new task owned by ownerKey. The returned task is
// durable before the call returns; a crash immediately afterwards loses
// nothing.
func (s *TaskService) CreateTask(ctx context.Context, ownerKey string, req *domain.CreateTaskRequest) (*domain.Task, error) {
	if s.closed.Load() {
		return nil, errpkg.ErrShuttingDown
	}

	webhookStatus := domain.WebhookStatus("")
	if req.WebhookURL != "" {
		webhookStatus = domain.WebhookStatusPending
	}

	for attempt := 0; attempt < createIDAttempts; attempt++ {
		task := &domain.Task{
			ID:            uuid.NewString(),
			Type:          req.TaskType,
			Status:        domain.TaskStatusWaiting,
			OwnerKey:      ownerKey,
			Payload:       req.ToPayload(),
			WebhookURL:    req.WebhookURL,
			WebhookStatus: webhookStatus,
			CreatedAt:     time.Now(),
		}

		err := s.store.Create(ctx, task)
		if errors.Is(err, errpkg.ErrDuplicateTask) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create task: %w", err)
		}

		metrics.TasksCreated.Inc()
		s.logger.Info("task created",
			"task_id", task.ID,
			"task_type", task.Type,
			"owner_key", ownerKey,
			"url", req.URL,
		)
		return task, nil
	}

	return nil, fmt.Errorf("could not allocate a unique task id")
}

// GetTask returns the current state of a task.
func (s *TaskService) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return s.store.Get(ctx, id)
}

// ListTasks returns a point-in-time view of every task owned by ownerKey,
// newest first.
func (s *TaskService) ListTasks(ctx context.Context, ownerKey string) ([]*domain.Task, error) {
	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]*domain.Task, 0, len(snapshot))
	for _, task := range snapshot {
		if task.OwnerKey == ownerKey {
			tasks = append(tasks, task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}
