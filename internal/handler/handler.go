package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/veranemoloko/media-queue/internal/domain"
	errpkg "github.com/veranemoloko/media-queue/internal/errors"
)

// Handler executes one task type. Execute runs the external fetch into
// workDir and returns the local path of the produced artifact. Any failure is
// reported through the error return; the worker converts it to the task's
// terminal error state.
type Handler interface {
	Execute(ctx context.Context, payload domain.Payload, taskID, workDir string) (string, error)
}

// SizeProbe produces a best-effort byte estimate for a payload before
// admission. A probe returning (0, nil) means unknown; the scheduler
// substitutes a conservative non-zero fallback so quota can never be
// bypassed by a failed probe.
type SizeProbe interface {
	Estimate(ctx context.Context, payload domain.Payload) (int64, error)
}

// Registry maps each task type to its handler. The mapping is closed:
// NewRegistry registers a handler for every member of domain.AllTaskTypes,
// and Verify catches a type added without one.
type Registry struct {
	handlers map[domain.TaskType]Handler
}

// NewRegistry builds the registry with the built-in HTTP fetch handlers
// sharing one client.
func NewRegistry(client *http.Client, logger *slog.Logger) *Registry {
	return &Registry{
		handlers: map[domain.TaskType]Handler{
			domain.TaskTypeFetchMedia:    NewFetchMediaHandler(client, logger),
			domain.TaskTypeFetchMetadata: NewFetchMetadataHandler(client, logger),
			domain.TaskTypeFetchLive:     NewFetchLiveHandler(client, logger),
		},
	}
}

// Register installs or replaces the handler for a task type. Used to plug in
// alternative fetch implementations.
func (r *Registry) Register(t domain.TaskType, h Handler) {
	r.handlers[t] = h
}

// Lookup returns the handler for a task type.
func (r *Registry) Lookup(t domain.TaskType) (Handler, error) {
	h, ok := r.handlers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errpkg.ErrUnknownTaskType, t)
	}
	return h, nil
}

// Verify checks that every known task type has a handler registered.
func (r *Registry) Verify() error {
	for _, t := range domain.AllTaskTypes {
		if _, ok := r.handlers[t]; !ok {
			return fmt.Errorf("%w: no handler registered for %s", errpkg.ErrUnknownTaskType, t)
		}
	}
	return nil
}

// DefaultClient returns the HTTP client used by the built-in handlers.
func DefaultClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
