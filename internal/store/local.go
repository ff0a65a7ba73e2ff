package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// Compile-time interface check.
var _ ObjectStore = (*LocalStore)(nil)

// LocalStore implements ObjectStore on the local filesystem. Keys map to
// files under Root; URIs use the file:// scheme.
type LocalStore struct {
	Root   string
	Prefix string
}

// NewLocalStore creates a LocalStore rooted at dir.
func NewLocalStore(dir, prefix string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating object dir: %w", err)
	}
	return &LocalStore{Root: abs, Prefix: prefix}, nil
}

// Upload copies the file to its key path through a temporary file and a
// rename, so readers never observe a partial object.
func (s *LocalStore) Upload(_ context.Context, localPath, key string) error {
	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// Delete removes the object; a missing object is not an error.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exists reports whether the object file is present.
func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Open opens the object file for reading.
func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
		}
		return nil, err
	}
	return f, nil
}

// URI returns file://<abs path>.
func (s *LocalStore) URI(key string) string {
	return "file://" + filepath.ToSlash(s.path(key))
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.Root, filepath.FromSlash(path.Join(s.Prefix, key)))
}
