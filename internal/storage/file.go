package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ignite/mailmerge/internal/domain"
)

// FileBackend keeps each document in <dir>/<key>.json.
type FileBackend struct {
	dir string
}

// NewFileBackend creates a FileBackend rooted at dir. The directory is
// created on first write.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

func (b *FileBackend) path(key string) string {
	// Sanitize key for filename
	return filepath.Join(b.dir, filepath.Base(key)+".json")
}

// Get reads the document for key.
func (b *FileBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

// Put replaces the document for key. The write goes to a temp file that is
// renamed into place, so readers never see a partial document.
func (b *FileBackend) Put(ctx context.Context, key string, data []byte) error {
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.dir, filepath.Base(key)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.path(key))
}
