package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local stores uploads on the filesystem below a root directory.
type Local struct {
	root    string
	baseURL string
}

// NewLocal creates the root directory if needed.
func NewLocal(root, baseURL string) (*Local, error) {
	if root == "" {
		return nil, errors.New("media directory is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return &Local{root: root, baseURL: baseURL}, nil
}

// Root returns the directory files are stored in.
func (l *Local) Root() string {
	return l.root
}

func (l *Local) Save(_ context.Context, prefix string, u Upload) (string, error) {
	key, err := newKey(prefix, u.Filename)
	if err != nil {
		return "", err
	}

	dest, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("creating media directory: %w", err)
	}

	// Write to a temp file first, then rename for atomicity
	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("creating media file: %w", err)
	}
	if _, err := io.Copy(f, u.File); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("writing media file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("closing media file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("renaming media file: %w", err)
	}

	return key, nil
}

func (l *Local) URL(key string) string {
	return joinURL(l.baseURL, key)
}

func (l *Local) Delete(_ context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting media file: %w", err)
	}
	return nil
}

// path maps a key to a file below root, rejecting keys that escape it.
func (l *Local) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid media key %q", key)
	}
	return filepath.Join(l.root, clean), nil
}
