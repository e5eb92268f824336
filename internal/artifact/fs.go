package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FS is a filesystem-backed ObjectStorage, used in development and tests.
// Content type is stored in a sidecar file next to each object.
type FS struct {
	root string
}

// NewFS creates a filesystem store rooted at dir, creating it if needed.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create root %s: %w", dir, err)
	}
	return &FS{root: dir}, nil
}

func (f *FS) Put(_ context.Context, key, contentType string, data []byte) error {
	path, err := f.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("artifact: mkdir for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("artifact: write %s: %w", key, err)
	}
	if err := os.WriteFile(path+".ctype", []byte(contentType), 0o644); err != nil {
		return fmt.Errorf("artifact: write content type for %s: %w", key, err)
	}
	return nil
}

func (f *FS) Get(_ context.Context, key string) ([]byte, string, error) {
	path, err := f.resolve(key)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("artifact: read %s: %w", key, err)
	}
	contentType := "application/octet-stream"
	if ct, err := os.ReadFile(path + ".ctype"); err == nil {
		contentType = string(ct)
	}
	return data, contentType, nil
}

// resolve maps a storage key to a path under root, rejecting traversal.
func (f *FS) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("artifact: invalid storage key %q", key)
	}
	return filepath.Join(f.root, clean), nil
}
