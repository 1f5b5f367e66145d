package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileStore keeps every entry in one JSON file that is rewritten on each
// change. Good enough for a handful of cached projects.
type FileStore struct {
	path    string
	mu      sync.Mutex
	entries map[string]json.RawMessage
}

// NewFileStore returns a store backed by path and loads it.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path}
	if err := fs.Load(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Load reads the file. A missing file is an empty store.
func (fs *FileStore) Load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.Open(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			fs.entries = make(map[string]json.RawMessage)
			return nil
		}
		return err
	}
	defer f.Close()

	entries := make(map[string]json.RawMessage)
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return fmt.Errorf("decode %s: %w", fs.path, err)
	}
	fs.entries = entries
	return nil
}

// save must be called with mu held.
func (fs *FileStore) save() error {
	f, err := os.OpenFile(fs.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(fs.entries)
}

// Get returns nil, nil when key is absent.
func (fs *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	v, ok := fs.entries[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Put stores value, which must be valid JSON, under key.
func (fs *FileStore) Put(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("put %s: value is not JSON", key)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.entries[key] = append(json.RawMessage(nil), value...)
	return fs.save()
}

// Delete removes key. Deleting an absent key is not an error.
func (fs *FileStore) Delete(_ context.Context, key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.entries[key]; !ok {
		return nil
	}
	delete(fs.entries, key)
	return fs.save()
}

// Close is a no-op; every change is already on disk.
func (fs *FileStore) Close() error {
	return nil
}
