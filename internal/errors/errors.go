package errors

import "errors"

var (
	// ErrTaskNotFound is returned when a task id is absent from the registry.
	ErrTaskNotFound = errors.New("task not found")
	// ErrDuplicateTask is returned when creating a task with an id that
	// already exists in the registry.
	ErrDuplicateTask = errors.New("task already exists")
	// ErrQuotaExceeded is returned when a reservation would push an API key
	// past its quota ceiling for the current window.
	ErrQuotaExceeded = errors.New("memory quota exceeded")
	// ErrUnknownTaskType is returned when no handler is registered for a
	// task's type.
	ErrUnknownTaskType = errors.New("unknown task type")
	// ErrShuttingDown is returned when new work is rejected during shutdown.
	ErrShuttingDown = errors.New("service is shutting down")
)
