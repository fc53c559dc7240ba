package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/voyagepal/cli/cmd/voyagepal/cli/paths"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/validation"
)

//nolint:gochecknoinits // Backend self-registration is the intended pattern
func init() {
	Register(BackendFile, func(home string) (Backend, error) {
		return NewFileBackend(paths.StateDir(home)), nil
	})
}

// FileBackend stores each key in its own file under dir.
// Values are written atomically: write to a temp file, then rename.
type FileBackend struct {
	dir string
}

// NewFileBackend returns a backend rooted at dir. The directory is created
// lazily on first write.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

func (b *FileBackend) path(key string) (string, error) {
	if err := validation.ValidateStoreKey(key); err != nil {
		return "", err //nolint:wrapcheck // already descriptive
	}
	return filepath.Join(b.dir, key), nil
}

// Get implements Backend.
func (b *FileBackend) Get(_ context.Context, key string) (string, bool, error) {
	p, err := b.path(key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(p) //nolint:gosec // path is validated and under the state dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read state file: %w", err)
	}
	return string(data), true, nil
}

// Set implements Backend.
func (b *FileBackend) Set(_ context.Context, key, value string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := paths.EnsureDir(b.dir); err != nil {
		return err //nolint:wrapcheck // already wrapped by paths
	}

	// Atomic write: each writer gets its own temp file, then renames it over
	// the key. Concurrent writers race with last-write-wins.
	f, err := os.CreateTemp(b.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.WriteString(value); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

// Delete implements Backend.
func (b *FileBackend) Delete(_ context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return nil // Already gone, not an error
		}
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// Close implements Backend.
func (b *FileBackend) Close() error { return nil }
