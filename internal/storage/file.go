package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"blockhost-portal/internal/common/logger"
)

// FileStorage keeps every item in one JSON object on disk. Each write
// rewrites the file through a temp file and rename. A file that no longer
// parses is moved aside to <path>.corrupt and treated as empty.
type FileStorage struct {
	mu     sync.Mutex
	path   string
	logger logger.Logger
}

func NewFileStorage(path string, log logger.Logger) (*FileStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &FileStorage{path: path, logger: log}, nil
}

func (f *FileStorage) GetItem(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := items[key]
	return v, ok, nil
}

func (f *FileStorage) SetItem(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, err := f.read()
	if err != nil {
		return err
	}
	items[key] = value
	return f.write(items)
}

func (f *FileStorage) RemoveItem(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := items[key]; !ok {
		return nil
	}
	delete(items, key)
	return f.write(items)
}

func (f *FileStorage) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	items := map[string]string{}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		f.discardCorrupt(err)
		return map[string]string{}, nil
	}
	return items, nil
}

func (f *FileStorage) discardCorrupt(parseErr error) {
	fields := map[string]interface{}{"path": f.path, "error": parseErr.Error()}
	if err := os.Rename(f.path, f.path+".corrupt"); err != nil {
		fields["renameError"] = err.Error()
	}
	f.logger.Warn("discarding corrupt storage file", fields)
}

func (f *FileStorage) write(items map[string]string) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
