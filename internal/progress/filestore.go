package progress

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileStorage persists partitions as JSON files in a directory, one file per
// key. It backs the default single-machine deployment.
type FileStorage struct {
	fs  afero.Fs
	dir string
}

// NewFileStorage creates the directory if needed. Pass afero.NewMemMapFs()
// in tests.
func NewFileStorage(fs afero.Fs, dir string) (*FileStorage, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create progress dir: %w", err)
	}
	return &FileStorage{fs: fs, dir: dir}, nil
}

func (f *FileStorage) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Read returns the stored bytes for key, or (nil, nil) when the file does not
// exist yet.
func (f *FileStorage) Read(_ context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(f.fs, f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Write replaces the stored bytes for key.
func (f *FileStorage) Write(_ context.Context, key string, data []byte) error {
	if err := afero.WriteFile(f.fs, f.path(key), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
