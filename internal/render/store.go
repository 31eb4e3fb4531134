package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidRef = errors.New("invalid artifact reference")

// FileStore keeps artifacts under a root directory. References are paths
// relative to that root.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("NewFileStore: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) Put(_ context.Context, ref string, data []byte) error {
	path, err := s.resolve(ref)
	if err != nil {
		return fmt.Errorf("Put: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("Put: mkdir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("Put: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("Put: rename: %w", err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, ref string) ([]byte, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return data, nil
}

// Delete removes the artifact. A missing artifact is not an error.
func (s *FileStore) Delete(_ context.Context, ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

func (s *FileStore) resolve(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if ref == "" || filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", ErrInvalidRef
	}
	return filepath.Join(s.root, clean), nil
}

// Ping reports whether the root directory is still usable.
func (s *FileStore) Ping() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("Ping: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("Ping: %s is not a directory", s.root)
	}
	return nil
}
