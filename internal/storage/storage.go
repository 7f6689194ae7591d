// Package storage persists attachment blobs addressed by keys derived from letter identity.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/spec-kit/letter-service/internal/config"
)

// ErrBlobNotFound is returned when no blob exists under a key.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore reads and writes attachment payloads.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Pinger reports whether a backend can currently serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New builds the backend selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (BlobStore, error) {
	switch cfg.Driver {
	case config.StorageDriverLocal:
		fs := afero.NewOsFs()
		if err := fs.MkdirAll(cfg.LocalRoot, 0o755); err != nil {
			return nil, fmt.Errorf("create storage root: %w", err)
		}
		return NewLocalStore(fs, cfg.LocalRoot), nil
	case config.StorageDriverS3:
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

var keyReplacer = strings.NewReplacer("/", "_", "\\", "_", " ", "_", "..", "_")

// AttachmentKey derives a unique blob key for one attachment slot of a letter.
func AttachmentKey(serial string, slot int, fileName string) string {
	ext := ""
	if idx := strings.LastIndex(fileName, "."); idx >= 0 && idx < len(fileName)-1 {
		ext = strings.ToLower(keyReplacer.Replace(fileName[idx:]))
	}
	return fmt.Sprintf("letters/%s/slot%d/%s%s", keyReplacer.Replace(strings.TrimSpace(serial)), slot, uuid.NewString(), ext)
}
