package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/veranemoloko/media-queue/internal/domain"
	errpkg "github.com/veranemoloko/media-queue/internal/errors"
	"github.com/veranemoloko/media-queue/internal/handler"
	"github.com/veranemoloko/media-queue/internal/metrics"
	"github.com/veranemoloko/media-queue/internal/notifier"
	"github.com/veranemoloko/media-queue/internal/repository"
	"github.com/veranemoloko/media-queue/internal/storage"
)

// Runner executes admitted tasks on a fixed-capacity worker pool. The
// scheduler reserves a slot before admission (TryReserve), then either
// launches the task or releases the slot; launches never block the scheduler.
//
// Each launched task runs its handler to completion or failure, stores the
// artifact, performs exactly one guarded terminal mutate and exactly one
// notifier invocation. Handler panics are caught here and become the error
// terminal state; nothing a handler does can take down the pool or strand a
// task in processing past the reaper timeout.
type Runner struct {
	capacity  int64
	sem       *semaphore.Weighted
	store     *repository.TaskStore
	artifacts storage.ArtifactStore
	registry  *handler.Registry
	notifier  *notifier.Notifier
	tempDir   string
	logger    *slog.Logger
}

// NewRunner creates a Runner with maxWorkers concurrent slots.
func NewRunner(
	maxWorkers int,
	store *repository.TaskStore,
	artifacts storage.ArtifactStore,
	registry *handler.Registry,
	n *notifier.Notifier,
	tempDir string,
	logger *slog.Logger,
) *Runner {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Runner{
		capacity:  int64(maxWorkers),
		sem:       semaphore.NewWeighted(int64(maxWorkers)),
		store:     store,
		artifacts: artifacts,
		registry:  registry,
		notifier:  n,
		tempDir:   tempDir,
		logger:    logger,
	}
}

// TryReserve claims a worker slot without blocking. The caller must either
// Launch a task on the slot or Release it.
func (r *Runner) TryReserve() bool {
	return r.sem.TryAcquire(1)
}

// Release returns an unused reserved slot.
func (r *Runner) Release() {
	r.sem.Release(1)
}

// Launch runs the task on a slot previously claimed with TryReserve. It
// returns immediately; the slot is released when the task finishes.
//
// The run is detached from the caller's cancellation: shutdown stops
// admission and waits via Drain, it does not kill running handlers, and the
// terminal mutate must land even when the signal context is already
// cancelled. A handler that outlives the drain deadline stays in processing
// and is reaped after restart.
func (r *Runner) Launch(ctx context.Context, task *domain.Task) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer r.sem.Release(1)

		start := time.Now()
		ref, err := r.execute(ctx, task)
		metrics.HandlerDuration.Observe(time.Since(start).Seconds())

		r.finish(ctx, task, ref, err)
	}()
}

// execute runs the handler and stores the artifact. Panics surface as errors.
func (r *Runner) execute(ctx context.Context, task *domain.Task) (ref string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()

	h, err := r.registry.Lookup(task.Type)
	if err != nil {
		return "", err
	}

	workDir := filepath.Join(r.tempDir, task.ID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	localPath, err := h.Execute(ctx, task.Payload, task.ID, workDir)
	if err != nil {
		return "", err
	}

	if info, statErr := os.Stat(localPath); statErr == nil {
		metrics.ArtifactBytes.Add(float64(info.Size()))
	}

	ref, err = r.artifacts.Save(localPath, task.ID, filepath.Base(localPath))
	if err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	return ref, nil
}

// finish performs the single terminal mutate for the task. The mutation is
// guarded: if the task is no longer in processing (the reaper timed it out or
// deleted it), the late result is discarded instead of resurrecting the task.
func (r *Runner) finish(ctx context.Context, task *domain.Task, ref string, execErr error) {
	superseded := false
	updated, err := r.store.Mutate(ctx, task.ID, func(t *domain.Task) {
		if t.Status != domain.TaskStatusProcessing {
			superseded = true
			return
		}
		now := time.Now()
		t.CompletedAt = &now
		if execErr != nil {
			t.Status = domain.TaskStatusError
			t.ErrorDetail = execErr.Error()
		} else {
			t.Status = domain.TaskStatusCompleted
			t.Result = ref
		}
	})

	switch {
	case errors.Is(err, errpkg.ErrTaskNotFound):
		// Deleted while running. Drop the artifact so nothing orphans.
		r.logger.Warn("task disappeared before completion", "task_id", task.ID)
		if ref != "" {
			if derr := r.artifacts.DeleteNamespace(task.ID); derr != nil {
				r.logger.Error("failed to drop artifact for deleted task", "task_id", task.ID, "error", derr)
			}
		}
		return
	case err != nil:
		// A store write failure here threatens the state machine; it is
		// loud on purpose and left for the reaper to resolve.
		r.logger.Error("failed to write terminal task state", "task_id", task.ID, "error", err)
		return
	case superseded:
		r.logger.Warn("task already terminal, discarding late handler result",
			"task_id", task.ID,
			"handler_err", execErr,
		)
		if ref != "" {
			if derr := r.artifacts.DeleteNamespace(task.ID); derr != nil {
				r.logger.Error("failed to drop superseded artifact", "task_id", task.ID, "error", derr)
			}
		}
		return
	}

	if execErr != nil {
		metrics.TasksFailed.Inc()
		r.logger.Error("task failed",
			"task_id", task.ID,
			"task_type", task.Type,
			"error", execErr,
		)
	} else {
		metrics.TasksCompleted.Inc()
		r.logger.Info("task completed",
			"task_id", task.ID,
			"task_type", task.Type,
			"file", ref,
		)
	}

	r.notifier.Notify(ctx, updated)
}

// Drain blocks until every in-flight task has finished or the context
// expires. Used during graceful shutdown after the scheduler has stopped
// admitting new work.
func (r *Runner) Drain(ctx context.Context) error {
	if err := r.sem.Acquire(ctx, r.capacity); err != nil {
		return fmt.Errorf("drain workers: %w", err)
	}
	r.sem.Release(r.capacity)
	return nil
}
