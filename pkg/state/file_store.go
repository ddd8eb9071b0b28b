package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// FileStore persists snapshots as YAML files under a root directory. Writes
// go through a temp file and rename so readers never observe partial
// content. The ETag of a snapshot is the fingerprint of its encoded bytes;
// Save enforces it as a precondition when the caller supplies one.
type FileStore[T any] struct {
	root string
	mu   sync.Mutex
}

// NewFileStore constructs a FileStore rooted at dir, creating it if needed.
func NewFileStore[T any](dir string) (*FileStore[T], error) {
	if dir == "" {
		return nil, fmt.Errorf("state: root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state: create root %q: %w", dir, err)
	}
	return &FileStore[T]{root: dir}, nil
}

// Path returns the file backing ref.
func (s *FileStore[T]) Path(ref Ref) (string, error) {
	identifier, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(identifier)+".yaml"), nil
}

func (s *FileStore[T]) Load(_ context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	path, err := s.Path(ref)
	if err != nil {
		return zero, Meta{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return zero, Meta{}, false, nil
	}
	if err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: read %q: %w", path, err)
	}

	var snapshot T
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: decode %q: %w", path, err)
	}

	meta := Meta{ETag: Fingerprint(data)}
	if info, err := os.Stat(path); err == nil {
		meta.UpdatedAt = info.ModTime()
	}
	return snapshot, meta, true, nil
}

func (s *FileStore[T]) Save(_ context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	path, err := s.Path(ref)
	if err != nil {
		return Meta{}, err
	}

	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode %q: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if meta.ETag != "" {
		current, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Meta{}, fmt.Errorf("state: read %q: %w", path, err)
		}
		if err == nil && Fingerprint(current) != meta.ETag {
			return Meta{}, fmt.Errorf("%w: %s", ErrETagMismatch, path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Meta{}, fmt.Errorf("state: create dir for %q: %w", path, err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return Meta{}, err
	}

	saved := cloneMeta(meta)
	saved.ETag = Fingerprint(data)
	saved.UpdatedAt = time.Now()
	return saved, nil
}

// Delete removes the snapshot file for ref. Deleting a missing snapshot is a
// no-op.
func (s *FileStore[T]) Delete(_ context.Context, ref Ref) error {
	path, err := s.Path(ref)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("state: delete %q: %w", path, err)
	}
	return nil
}

// WriteAtomic writes raw bytes to path so concurrent readers observe
// either the old content or the new content, never a partial file.
func WriteAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("state: create dir for %q: %w", path, err)
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes data next to path then renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("state: write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("state: rename %q: %w", path, err)
	}
	return nil
}
