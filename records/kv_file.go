package records

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/creatorclaim/publisher/interfaces"
)

// FileKVStore implements a keyed store using the local file system. Each key
// is one JSON file under the base directory.
type FileKVStore struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileKVStore creates a file-backed keyed store rooted at baseDir,
// creating the directory if needed.
func NewFileKVStore(baseDir string, log *slog.Logger) (*FileKVStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileKVStore{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Read retrieves the value stored under key. Returns ErrKeyNotFound if the
// file doesn't exist.
func (b *FileKVStore) Read(ctx context.Context, key string) ([]byte, error) {
	path := b.keyPath(key)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	b.log.Debug("Read key from file",
		slog.String("path", path),
		slog.Int("size", len(data)))

	return data, nil
}

// Write stores value under key, replacing any previous value.
func (b *FileKVStore) Write(ctx context.Context, key string, value []byte) error {
	path := b.keyPath(key)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, value, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	b.log.Debug("Wrote key to file",
		slog.String("path", path),
		slog.Int("size", len(value)))

	return nil
}

// Available checks if the backend is accessible by verifying the base
// directory exists.
func (b *FileKVStore) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File store unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this store.
func (b *FileKVStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI identifying this store.
func (b *FileKVStore) LocationURI() string {
	return b.locationURI
}

func (b *FileKVStore) keyPath(key string) string {
	return filepath.Join(b.baseDir, key+".json")
}
