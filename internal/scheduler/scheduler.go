package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/veranemoloko/media-queue/internal/config"
	"github.com/veranemoloko/media-queue/internal/domain"
	"github.com/veranemoloko/media-queue/internal/handler"
	"github.com/veranemoloko/media-queue/internal/metrics"
	"github.com/veranemoloko/media-queue/internal/notifier"
	"github.com/veranemoloko/media-queue/internal/quota"
	"github.com/veranemoloko/media-queue/internal/repository"
	"github.com/veranemoloko/media-queue/internal/storage"
	"github.com/veranemoloko/media-queue/internal/worker"
)

// Scheduler is the single polling loop that drives the task lifecycle. Each
// pass snapshots the registry, dispatches waiting tasks through admission to
// the worker pool, reaps stale processing tasks, and at a lower cadence
// removes orphaned artifacts and expired terminal records.
//
// There is exactly one scheduler goroutine and passes never overlap; the
// loop itself never blocks on handler completion.
type Scheduler struct {
	store     *repository.TaskStore
	ledger    *quota.Ledger
	runner    *worker.Runner
	probe     *handler.HeadSizeProbe
	artifacts storage.ArtifactStore
	notifier  *notifier.Notifier
	cfg       *config.Config
	logger    *slog.Logger

	lastCleanup time.Time
	cancel      context.CancelFunc
	loopDone    chan struct{}

	now func() time.Time
}

// New creates a Scheduler.
func New(
	store *repository.TaskStore,
	ledger *quota.Ledger,
	runner *worker.Runner,
	probe *handler.HeadSizeProbe,
	artifacts storage.ArtifactStore,
	n *notifier.Notifier,
	cfg *config.Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		store:     store,
		ledger:    ledger,
		runner:    runner,
		probe:     probe,
		artifacts: artifacts,
		notifier:  n,
		cfg:       cfg,
		logger:    logger,
		loopDone:  make(chan struct{}),
		now:       time.Now,
	}
}

// Start launches the polling loop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		defer close(s.loopDone)

		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()

		s.logger.Info("scheduler started",
			"poll_interval", s.cfg.PollInterval,
			"stale_task_timeout", s.cfg.StaleTaskTimeout,
			"retention_window", s.cfg.RetentionWindow,
		)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopped")
				return
			case <-ticker.C:
				s.Pass(ctx)
			}
		}
	}()
}

// Stop halts the loop. In-flight worker tasks keep running; they are drained
// separately via the Runner during shutdown.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.loopDone
}

// Pass executes one scheduling pass. Exported so tests can step the
// scheduler without waiting on the ticker.
func (s *Scheduler) Pass(ctx context.Context) {
	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		s.logger.Error("failed to snapshot task store", "error", err)
		return
	}

	for _, task := range sortedByCreation(snapshot) {
		switch task.Status {
		case domain.TaskStatusWaiting:
			s.dispatch(ctx, task)
		case domain.TaskStatusProcessing:
			if s.isStale(task) {
				s.reap(ctx, task)
			}
		}
	}

	if s.now().Sub(s.lastCleanup) >= s.cfg.CleanupInterval {
		s.lastCleanup = s.now()
		s.cleanupOrphans(ctx, snapshot)
		s.expireTerminal(ctx, snapshot)
	}
}

// sortedByCreation keeps dispatch order stable across passes so older tasks
// get worker slots first.
func sortedByCreation(snapshot map[string]*domain.Task) []*domain.Task {
	tasks := make([]*domain.Task, 0, len(snapshot))
	for _, task := range snapshot {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks
}

// dispatch moves one waiting task toward the worker pool: reserve a slot,
// estimate size, pass admission, transition to processing, launch. The slot
// is claimed first so a task never burns quota it cannot use; with the pool
// full the task simply stays waiting for a later pass.
func (s *Scheduler) dispatch(ctx context.Context, task *domain.Task) {
	if !s.runner.TryReserve() {
		return
	}

	estimate := s.estimate(ctx, task)

	if err := s.ledger.TryReserve(task.OwnerKey, estimate); err != nil {
		s.runner.Release()
		s.deny(ctx, task, err)
		return
	}

	transitioned := false
	updated, err := s.store.Mutate(ctx, task.ID, func(t *domain.Task) {
		if t.Status != domain.TaskStatusWaiting {
			return
		}
		now := s.now()
		t.Status = domain.TaskStatusProcessing
		t.StartedAt = &now
		transitioned = true
	})
	if err != nil || !transitioned {
		// Task vanished or raced out of waiting; the quota reservation
		// stays counted for the window, like any other admitted work.
		s.runner.Release()
		if err != nil {
			s.logger.Warn("failed to transition task to processing", "task_id", task.ID, "error", err)
		}
		return
	}

	s.logger.Info("task dispatched",
		"task_id", task.ID,
		"task_type", task.Type,
		"owner_key", task.OwnerKey,
		"estimated_bytes", estimate,
	)
	s.runner.Launch(ctx, updated)
}

// estimate asks the handler's probe for a size and applies the safety
// buffer. A failed or zero probe falls back to the configured conservative
// estimate so probe failure can never bypass quota.
func (s *Scheduler) estimate(ctx context.Context, task *domain.Task) int64 {
	size, err := s.probe.EstimateForTask(ctx, task.Type, task.Payload)
	if err != nil || size <= 0 {
		size = s.cfg.FallbackSizeEstimate
	}
	return int64(float64(size) * s.cfg.SizeEstimateBuffer)
}

// deny terminates a task rejected by admission. Rejection is a normal
// outcome, surfaced as a terminal error, never a crash.
func (s *Scheduler) deny(ctx context.Context, task *domain.Task, cause error) {
	metrics.AdmissionDenied.Inc()
	metrics.TasksFailed.Inc()

	updated, err := s.store.Mutate(ctx, task.ID, func(t *domain.Task) {
		if t.Status != domain.TaskStatusWaiting {
			return
		}
		now := s.now()
		t.Status = domain.TaskStatusError
		t.ErrorDetail = cause.Error()
		t.CompletedAt = &now
	})
	if err != nil {
		s.logger.Error("failed to record admission denial", "task_id", task.ID, "error", err)
		return
	}

	s.logger.Warn("task denied by admission",
		"task_id", task.ID,
		"owner_key", task.OwnerKey,
		"reason", cause,
	)
	s.notifyAsync(ctx, updated)
}

// notifyAsync delivers off the loop goroutine: a pass must never wait out a
// webhook's retry budget. The delivery context is detached so a Stop during
// retries does not abort an in-flight notification.
func (s *Scheduler) notifyAsync(ctx context.Context, task *domain.Task) {
	go s.notifier.Notify(context.WithoutCancel(ctx), task)
}

func (s *Scheduler) isStale(task *domain.Task) bool {
	return task.StartedAt != nil && s.now().Sub(*task.StartedAt) > s.cfg.StaleTaskTimeout
}

// reap force-terminates a task stuck in processing past the stale timeout.
// The handler may still be running; its late terminal write will find the
// task already terminal and discard itself.
func (s *Scheduler) reap(ctx context.Context, task *domain.Task) {
	reaped := false
	updated, err := s.store.Mutate(ctx, task.ID, func(t *domain.Task) {
		if t.Status != domain.TaskStatusProcessing {
			return
		}
		now := s.now()
		t.Status = domain.TaskStatusError
		t.ErrorDetail = fmt.Sprintf("interrupted: processing exceeded %s timeout", s.cfg.StaleTaskTimeout)
		t.CompletedAt = &now
		reaped = true
	})
	if err != nil || !reaped {
		return
	}

	metrics.TasksReaped.Inc()
	metrics.TasksFailed.Inc()
	s.logger.Warn("reaped stale task",
		"task_id", task.ID,
		"started_time", task.StartedAt,
	)

	if err := s.artifacts.DeleteNamespace(task.ID); err != nil {
		s.logger.Error("failed to clean artifacts of reaped task", "task_id", task.ID, "error", err)
	}
	s.notifyAsync(ctx, updated)
}

// cleanupOrphans removes artifact namespaces whose task id no longer exists
// in the registry: leftovers of crashes between creation and store write, or
// of forced deletions.
func (s *Scheduler) cleanupOrphans(ctx context.Context, snapshot map[string]*domain.Task) {
	namespaces, err := s.artifacts.ListNamespaces()
	if err != nil {
		s.logger.Error("failed to list artifact namespaces", "error", err)
		return
	}

	for _, id := range namespaces {
		if _, exists := snapshot[id]; exists {
			continue
		}
		// Not in the snapshot view; confirm against the live registry so a
		// task created mid-pass is never stripped of its artifacts.
		if _, err := s.store.Get(ctx, id); err == nil {
			continue
		}
		if err := s.artifacts.DeleteNamespace(id); err != nil {
			s.logger.Error("failed to remove orphaned artifacts", "task_id", id, "error", err)
			continue
		}
		metrics.OrphansRemoved.Inc()
		s.logger.Info("removed orphaned artifacts", "task_id", id)
	}
}

// expireTerminal deletes terminal tasks older than the retention window,
// along with their artifacts, to bound storage growth.
func (s *Scheduler) expireTerminal(ctx context.Context, snapshot map[string]*domain.Task) {
	cutoff := s.now().Add(-s.cfg.RetentionWindow)

	for id, task := range snapshot {
		if !task.Status.Terminal() {
			continue
		}
		if task.CompletedAt == nil || task.CompletedAt.After(cutoff) {
			continue
		}

		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.Error("failed to expire task", "task_id", id, "error", err)
			continue
		}
		if err := s.artifacts.DeleteNamespace(id); err != nil {
			s.logger.Error("failed to remove expired task artifacts", "task_id", id, "error", err)
		}

		metrics.TasksExpired.Inc()
		s.logger.Info("expired terminal task",
			"task_id", id,
			"status", task.Status,
			"completed_time", task.CompletedAt,
		)
	}
}
