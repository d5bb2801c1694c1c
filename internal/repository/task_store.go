package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/veranemoloko/media-queue/internal/domain"
	errpkg "github.com/veranemoloko/media-queue/internal/errors"
)

// TaskStore is the durable keyed task registry. Each task is persisted as its
// own JSON file under dir, so a mutation of one id never rewrites another
// id's record. Mutations of a single id are serialized by a per-record mutex;
// the registry-level lock only guards the map itself and is never held across
// disk I/O for a record.
type TaskStore struct {
	mu      sync.RWMutex
	dir     string
	records map[string]*record
}

type record struct {
	mu      sync.Mutex
	task    *domain.Task
	deleted bool
}

// NewTaskStore creates a TaskStore backed by dir and loads any task files
// left over from a previous run. Tasks found in processing state are not
// resumed; the scheduler's reaper handles them on its first pass.
func NewTaskStore(dir string) (*TaskStore, error) {
	store := &TaskStore{
		dir:     filepath.Clean(dir),
		records: make(map[string]*record),
	}

	if err := store.loadTasks(); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	slog.Info("task store initialized", "dir", store.dir, "tasks_count", len(store.records))
	return store, nil
}

func (s *TaskStore) loadTasks() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read task file %s: %w", entry.Name(), err)
		}

		var task domain.Task
		if err := json.Unmarshal(data, &task); err != nil {
			return fmt.Errorf("unmarshal task file %s: %w", entry.Name(), err)
		}
		if task.ID == "" {
			return fmt.Errorf("task file %s: missing id", entry.Name())
		}

		s.records[task.ID] = &record{task: &task}
	}

	return nil
}

// Create adds a new task to the registry and persists it before returning.
// Returns ErrDuplicateTask if the id is already present.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.records[task.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", errpkg.ErrDuplicateTask, task.ID)
	}
	rec := &record{task: task.Clone()}
	rec.mu.Lock()
	s.records[task.ID] = rec
	s.mu.Unlock()
	defer rec.mu.Unlock()

	if err := s.persist(rec.task); err != nil {
		// Undo the registration so a failed create leaves no ghost entry.
		s.mu.Lock()
		delete(s.records, task.ID)
		s.mu.Unlock()
		rec.deleted = true
		return fmt.Errorf("persist task %s: %w", task.ID, err)
	}

	return nil
}

// Get returns a copy of the task with the given id.
func (s *TaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, ok := s.lookup(id)
	if !ok {
		return nil, errpkg.ErrTaskNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.deleted {
		return nil, errpkg.ErrTaskNotFound
	}
	return rec.task.Clone(), nil
}

// Mutate atomically applies fn to the task with the given id and persists the
// result before returning the updated copy. The read-modify-write for one id
// is serialized against concurrent Mutate/Delete calls on the same id and is
// independent of every other id. If persistence fails the in-memory record is
// left unchanged and the error propagates: a store-level write failure must
// never be silently absorbed into registry state.
func (s *TaskStore) Mutate(ctx context.Context, id string, fn func(*domain.Task)) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, ok := s.lookup(id)
	if !ok {
		return nil, errpkg.ErrTaskNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.deleted {
		return nil, errpkg.ErrTaskNotFound
	}

	next := rec.task.Clone()
	fn(next)
	next.ID = id // the id is the registry key and is not mutable

	if err := s.persist(next); err != nil {
		return nil, fmt.Errorf("persist task %s: %w", id, err)
	}

	rec.task = next
	return next.Clone(), nil
}

// Delete removes the task record and its backing file. Deleting an absent id
// is not an error.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	rec, ok := s.records[id]
	delete(s.records, id)
	s.mu.Unlock()

	if !ok {
		return nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.deleted = true

	if err := os.Remove(s.taskFile(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove task file %s: %w", id, err)
	}
	return nil
}

// Snapshot returns a point-in-time copy of every task keyed by id. The view
// may trail concurrent mutations but each record in it is internally
// consistent, never torn.
func (s *TaskStore) Snapshot(ctx context.Context) (map[string]*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	recs := make([]*record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	snapshot := make(map[string]*domain.Task, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		if !rec.deleted {
			task := rec.task.Clone()
			snapshot[task.ID] = task
		}
		rec.mu.Unlock()
	}

	return snapshot, nil
}

func (s *TaskStore) lookup(id string) (*record, bool) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	return rec, ok
}

func (s *TaskStore) taskFile(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// persist writes the task file via temp-file + fsync + rename so a crash
// mid-write can never leave a torn record on disk.
func (s *TaskStore) persist(task *domain.Task) error {
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	tempFile, err := os.CreateTemp(s.dir, task.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempFile.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		os.Remove(tempFile.Name())
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempFile.Name(), s.taskFile(task.ID)); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
