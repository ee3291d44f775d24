// Package filesystem provides the local filesystem content adapter. Writes go
// to a sibling temp file, are forced to durable storage, and land under the
// final key with an atomic rename.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"blobgate"
)

// Store implements blobgate.Storage over a sandboxed directory root.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a Store rooted at the given directory. The root
// provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// Save writes blob content under the derived storage key. It fails with
// blobgate.ErrConflict when content already exists at that key, and never
// leaves a partially written object visible under the final path.
func (s *Store) Save(ctx context.Context, id string, data []byte) (blobgate.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return blobgate.SaveResult{}, err
	}

	key := blobgate.StorageKey(id)

	if _, err := s.root.Stat(key); err == nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: %w: content already exists", id, blobgate.ErrConflict)
	} else if !errors.Is(err, os.ErrNotExist) {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: stat: %w", id, err)
	}

	if err := s.root.MkdirAll(filepath.Dir(key), 0o755); err != nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: create directories: %w", id, err)
	}

	tmp := tmpFileName(key)
	t, err := s.root.Create(tmp)
	if err != nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: create temp file: %w", id, err)
	}

	renamed := false
	closed := false
	defer func() {
		if !closed {
			if closeErr := t.Close(); closeErr != nil {
				slog.Warn("failed to close tmp file", "err", closeErr)
			}
		}
		if !renamed {
			if rmErr := s.root.Remove(tmp); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	if _, err := t.Write(data); err != nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: write temp file: %w", id, err)
	}

	if err := t.Sync(); err != nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: sync temp file: %w", id, err)
	}

	if err := t.Close(); err != nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: close temp file: %w", id, err)
	}
	closed = true

	if err := s.root.Rename(tmp, key); err != nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: rename into place: %w", id, err)
	}
	renamed = true

	info, err := s.root.Stat(key)
	if err != nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: stat final file: %w", id, err)
	}

	return blobgate.SaveResult{
		Size:      int64(len(data)),
		CreatedAt: info.ModTime().UTC(),
	}, nil
}

// Get reads blob content. The creation timestamp is the file's modification
// time; the service layer reports the metadata-recorded timestamp instead.
func (s *Store) Get(ctx context.Context, id string) (blobgate.Object, error) {
	if err := ctx.Err(); err != nil {
		return blobgate.Object{}, err
	}

	key := blobgate.StorageKey(id)

	f, err := s.root.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return blobgate.Object{}, fmt.Errorf("get %q: %w", id, blobgate.ErrNotFound)
		}
		return blobgate.Object{}, fmt.Errorf("get %q: open: %w", id, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close file", "key", key, "err", closeErr)
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return blobgate.Object{}, fmt.Errorf("get %q: read: %w", id, err)
	}

	info, err := f.Stat()
	if err != nil {
		return blobgate.Object{}, fmt.Errorf("get %q: stat: %w", id, err)
	}

	return blobgate.Object{
		Data:      data,
		Size:      int64(len(data)),
		CreatedAt: info.ModTime().UTC(),
	}, nil
}

// Delete removes blob content. Deleting a non-existent key is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.root.Remove(blobgate.StorageKey(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	return nil
}

// tmpFileName returns a unique sibling name so the rename into place stays on
// one filesystem.
func tmpFileName(key string) string {
	return fmt.Sprintf("%s.tmp-%s", key, uuid.New().String())
}
