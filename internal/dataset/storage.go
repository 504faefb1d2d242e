package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ayusman/handsign/internal/gesture"
)

// FileStorage stores each key as <dir>/<key>.json.
type FileStorage struct {
	dir string
}

// NewFileStorage creates dir if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create dataset directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (f *FileStorage) path(key string) string {
	return filepath.Join(f.dir, filepath.Base(key)+".json")
}

// Write replaces the file for key atomically.
func (f *FileStorage) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".dataset-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path(key))
}

// Read returns the dataset written under key.
func (f *FileStorage) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(f.path(key))
}

// Keys lists stored keys in lexical order.
func (f *FileStorage) Keys() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(f.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, strings.TrimSuffix(filepath.Base(m), ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// Info describes the file holding key.
func (f *FileStorage) Info(key string) (os.FileInfo, error) {
	return os.Stat(f.path(key))
}

// MemoryStorage is an in-memory Storage for tests.
type MemoryStorage struct {
	mu     sync.Mutex
	data   map[string][]byte
	err    error
	writes int
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

// SetError makes every subsequent Write and Read fail with err.
func (m *MemoryStorage) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemoryStorage) Write(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = append([]byte(nil), data...)
	m.writes++
	return nil
}

func (m *MemoryStorage) Read(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("key %q: %w", key, os.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}

// Writes returns the number of successful writes.
func (m *MemoryStorage) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// StorageLoader loads the dataset stored under Key.
type StorageLoader struct {
	Storage Storage
	Key     string
}

// Load reads and decodes the stored dataset. Errors wrap ErrPersistence.
func (l StorageLoader) Load(ctx context.Context) ([]gesture.Example, error) {
	data, err := l.Storage.Read(ctx, l.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrPersistence, l.Key, err)
	}
	examples, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return examples, nil
}

// FileLoader loads a dataset exported to a JSON file.
type FileLoader struct {
	Path string
}

// Load reads and decodes the file at Path. Errors wrap ErrPersistence.
func (l FileLoader) Load(ctx context.Context) ([]gesture.Example, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	examples, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return examples, nil
}

// BytesLoader decodes a dataset held in memory, such as an uploaded file.
type BytesLoader []byte

// Load decodes l.
func (l BytesLoader) Load(ctx context.Context) ([]gesture.Example, error) {
	return Decode(l)
}
