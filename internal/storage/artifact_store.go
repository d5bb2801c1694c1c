package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactStore is the byte-level storage contract for handler outputs.
// Artifacts live in per-task-id namespaces; one handler owns one task id for
// its lifetime, so concurrent access inside a namespace is not expected.
type ArtifactStore interface {
	// Save copies a local file into the task's namespace and returns the
	// stored reference exposed to clients.
	Save(localPath, taskID, name string) (string, error)
	// DeleteNamespace removes every artifact stored under the task id.
	DeleteNamespace(taskID string) error
	// List returns the artifact names stored under the task id.
	List(taskID string) ([]string, error)
	// ListNamespaces returns every task id that currently has artifacts.
	ListNamespaces() ([]string, error)
	// Type reports the storage backend kind (e.g. "local").
	Type() string
}

// LocalArtifactStore stores artifacts on the local filesystem, one directory
// per task id under root. Stored references use the /files/ URL prefix served
// by the HTTP layer.
type LocalArtifactStore struct {
	root string
}

// NewLocalArtifactStore creates a LocalArtifactStore rooted at dir.
func NewLocalArtifactStore(dir string) *LocalArtifactStore {
	return &LocalArtifactStore{root: filepath.Clean(dir)}
}

// Save copies the file at localPath into the task's namespace.
func (s *LocalArtifactStore) Save(localPath, taskID, name string) (string, error) {
	if err := validateName(taskID); err != nil {
		return "", err
	}
	if err := validateName(name); err != nil {
		return "", err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	dir := filepath.Join(s.root, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create namespace dir: %w", err)
	}

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return "", fmt.Errorf("sync artifact: %w", err)
	}

	return "/files/" + taskID + "/" + name, nil
}

// DeleteNamespace removes the task's artifact directory and its contents.
func (s *LocalArtifactStore) DeleteNamespace(taskID string) error {
	if err := validateName(taskID); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.root, taskID))
}

// List returns the artifact names stored under the task id. A missing
// namespace yields an empty list, not an error.
func (s *LocalArtifactStore) List(taskID string) ([]string, error) {
	if err := validateName(taskID); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.root, taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read namespace dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// ListNamespaces returns every task id directory under the root.
func (s *LocalArtifactStore) ListNamespaces() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read root dir: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

// Type reports the backend kind used in webhook payloads.
func (s *LocalArtifactStore) Type() string {
	return "local"
}

// Root returns the directory artifacts are served from.
func (s *LocalArtifactStore) Root() string {
	return s.root
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid artifact path element: %q", name)
	}
	return nil
}
