package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/veranemoloko/media-queue/internal/domain"
	errpkg "github.com/veranemoloko/media-queue/internal/errors"
	"github.com/veranemoloko/media-queue/internal/validation"
)

// apiKeyHeader carries the caller's identity; quota accounting keys off it.
const apiKeyHeader = "X-API-Key"

// TaskServiceI defines the interface for task-related business logic.
type TaskServiceI interface {
	CreateTask(ctx context.Context, ownerKey string, req *domain.CreateTaskRequest) (*domain.Task, error)
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	ListTasks(ctx context.Context, ownerKey string) ([]*domain.Task, error)
}

// TaskHandler handles HTTP requests for tasks.
type TaskHandler struct {
	taskService TaskServiceI
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler with the provided service and logger.
func NewTaskHandler(taskService TaskServiceI, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// CreateTask handles the HTTP POST /tasks request to create a new task.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerKey := r.Header.Get(apiKeyHeader)
	if ownerKey == "" {
		writeError(w, http.StatusUnauthorized, "missing "+apiKeyHeader+" header")
		return
	}

	var req domain.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validation.ValidateCreateRequest(&req); err != nil {
		h.logger.Warn("validation failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.taskService.CreateTask(ctx, ownerKey, &req)
	if errors.Is(err, errpkg.ErrShuttingDown) {
		writeError(w, http.StatusServiceUnavailable, "service is shutting down")
		return
	}
	if err != nil {
		h.logger.Error("failed to create task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, domain.CreateTaskResponse{
		Status: task.Status,
		TaskID: task.ID,
	})
}

// ListTasks handles the HTTP GET /tasks request to list the caller's tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerKey := r.Header.Get(apiKeyHeader)
	if ownerKey == "" {
		writeError(w, http.StatusUnauthorized, "missing "+apiKeyHeader+" header")
		return
	}

	tasks, err := h.taskService.ListTasks(ctx, ownerKey)
	if err != nil {
		h.logger.Error("failed to list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	responses := make([]domain.TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, domain.NewTaskResponse(task))
	}
	writeJSON(w, http.StatusOK, responses)
}

// GetTask handles the HTTP GET /tasks/{taskID} request to fetch a task by ID.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID := chi.URLParam(r, "taskID")
	if _, err := uuid.Parse(taskID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task ID")
		return
	}

	task, err := h.taskService.GetTask(ctx, taskID)
	if errors.Is(err, errpkg.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get task", "task_id", taskID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, domain.NewTaskResponse(task))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
