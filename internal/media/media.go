// Package media stores uploaded images and maps storage keys to public URLs.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/hmans/taskgraph/internal/config"
)

const (
	// ProfileImages is the key prefix for profile avatars.
	ProfileImages = "profile_images"
	// TaskImages is the key prefix for task images.
	TaskImages = "task_images"
)

const keyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	File        io.Reader
}

// Storage persists uploads.
type Storage interface {
	// Save stores the upload under prefix and returns its key.
	Save(ctx context.Context, prefix string, u Upload) (string, error)
	// URL returns the public URL of a stored key.
	URL(key string) string
	Delete(ctx context.Context, key string) error
}

// New creates the storage backend selected by cfg.
func New(ctx context.Context, cfg config.MediaConfig) (Storage, error) {
	switch cfg.Backend {
	case config.MediaLocal, "":
		l, err := NewLocal(cfg.Dir, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return l, nil
	case config.MediaMinio:
		m, err := NewMinio(ctx, cfg.Minio)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend)
	}
}

// newKey builds a collision-resistant key, keeping the upload's extension.
func newKey(prefix, filename string) (string, error) {
	id, err := gonanoid.Generate(keyAlphabet, 16)
	if err != nil {
		return "", fmt.Errorf("generating media key: %w", err)
	}
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, `\`, "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	return prefix + "/" + id + ext, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
