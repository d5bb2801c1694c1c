package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/media-queue/internal/domain"
	errpkg "github.com/veranemoloko/media-queue/internal/errors"
	"github.com/veranemoloko/media-queue/internal/repository"
)

func newTestService(t *testing.T) (*TaskService, *repository.TaskStore) {
	t.Helper()
	store, err := repository.NewTaskStore(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTaskService(store, logger), store
}

func TestTaskService_CreateTask(t *testing.T) {
	svc, store := newTestService(t)

	req := &domain.CreateTaskRequest{
		TaskType:   domain.TaskTypeFetchMedia,
		URL:        "https://example.com/v.mp4",
		Kind:       domain.MediaKindVideo,
		WebhookURL: "https://hooks.example.com/done",
	}

	task, err := svc.CreateTask(context.Background(), "key-1", req)
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	_, err = uuid.Parse(task.ID)
	assert.NoError(t, err, "task id must be a UUID")
	assert.Equal(t, domain.TaskStatusWaiting, task.Status)
	assert.Equal(t, domain.TaskTypeFetchMedia, task.Type)
	assert.Equal(t, "key-1", task.OwnerKey)
	assert.Equal(t, "https://example.com/v.mp4", task.Payload.URL)
	assert.Equal(t, domain.WebhookStatusPending, task.WebhookStatus)
	assert.False(t, task.CreatedAt.IsZero())
	assert.Nil(t, task.StartedAt)

	// Durable before CreateTask returns.
	stored, err := store.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusWaiting, stored.Status)
}

func TestTaskService_CreateTaskWithoutWebhook(t *testing.T) {
	svc, _ := newTestService(t)

	task, err := svc.CreateTask(context.Background(), "key-1", &domain.CreateTaskRequest{
		TaskType: domain.TaskTypeFetchMetadata,
		URL:      "https://example.com/v.mp4",
	})
	require.NoError(t, err)

	assert.Empty(t, task.WebhookURL)
	assert.Empty(t, task.WebhookStatus)
}

func TestTaskService_CreateTaskDefaultsKindToVideo(t *testing.T) {
	svc, _ := newTestService(t)

	task, err := svc.CreateTask(context.Background(), "key-1", &domain.CreateTaskRequest{
		TaskType: domain.TaskTypeFetchMedia,
		URL:      "https://example.com/v.mp4",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MediaKindVideo, task.Payload.Kind)
}

func TestTaskService_ListTasks(t *testing.T) {
	svc, _ := newTestService(t)

	var ids []string
	for i := 0; i < 3; i++ {
		task, err := svc.CreateTask(context.Background(), "key-1", &domain.CreateTaskRequest{
			TaskType: domain.TaskTypeFetchMedia,
			URL:      "https://example.com/v.mp4",
		})
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}
	_, err := svc.CreateTask(context.Background(), "key-2", &domain.CreateTaskRequest{
		TaskType: domain.TaskTypeFetchMedia,
		URL:      "https://example.com/v.mp4",
	})
	require.NoError(t, err)

	tasks, err := svc.ListTasks(context.Background(), "key-1")
	require.NoError(t, err)
	require.Len(t, tasks, 3, "only the caller's tasks are listed")
	for _, task := range tasks {
		assert.Contains(t, ids, task.ID)
		assert.Equal(t, "key-1", task.OwnerKey)
	}
	for i := 1; i < len(tasks); i++ {
		assert.False(t, tasks[i-1].CreatedAt.Before(tasks[i].CreatedAt), "newest first")
	}
}

func TestTaskService_CreateTaskAfterClose(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Close()

	_, err := svc.CreateTask(context.Background(), "key-1", &domain.CreateTaskRequest{
		TaskType: domain.TaskTypeFetchMedia,
		URL:      "https://example.com/v.mp4",
	})
	assert.ErrorIs(t, err, errpkg.ErrShuttingDown)
}

func TestTaskService_GetTask(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateTask(context.Background(), "key-1", &domain.CreateTaskRequest{
		TaskType: domain.TaskTypeFetchMedia,
		URL:      "https://example.com/v.mp4",
	})
	require.NoError(t, err)

	got, err := svc.GetTask(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.GetTask(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, errpkg.ErrTaskNotFound)
}
