package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore implements Store as one directory per state under a root data
// directory, one JSON document per record. Every write goes through a
// temp-file-then-rename so readers never observe a partial document.
type FileStore struct {
	root string
}

// NewFileStore creates the state directories under root and returns the
// store.
func NewFileStore(root string) (*FileStore, error) {
	for _, state := range States() {
		dir := filepath.Join(root, string(state))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir %s: %w", dir, err)
		}
	}
	return &FileStore{root: root}, nil
}

// Root returns the data directory the store was created with.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) path(state State, id string) string {
	return filepath.Join(s.root, string(state), safeName(id)+".json")
}

// safeName makes a record id usable as a file name.
func safeName(id string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_")
	return replacer.Replace(id)
}

// Put writes a record atomically.
func (s *FileStore) Put(ctx context.Context, state State, id string, data []byte) error {
	return atomicWrite(s.path(state, id), data)
}

// atomicWrite writes data to a temporary file in the target directory and
// renames it over the destination.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Get reads one record.
func (s *FileStore) Get(ctx context.Context, state State, id string) ([]byte, error) {
	data, err := os.ReadFile(s.path(state, id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s/%s: %w", state, id, err)
	}
	return data, nil
}

// List returns all records in a state, skipping in-flight temp files.
func (s *FileStore) List(ctx context.Context, state State) ([]Record, error) {
	dir := filepath.Join(s.root, string(state))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list store %s: %w", state, err)
	}

	var records []Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			// Moved away between ReadDir and ReadFile; another worker owns it.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read record %s/%s: %w", state, name, err)
		}
		records = append(records, Record{
			ID:   strings.TrimSuffix(name, ".json"),
			Data: data,
		})
	}
	return records, nil
}

// Move transitions a record: read from source, mutate, write to target
// atomically, then remove from source. The target copy lands before the
// source copy disappears.
func (s *FileStore) Move(ctx context.Context, id string, from, to State, mutate func([]byte) ([]byte, error)) error {
	data, err := s.Get(ctx, from, id)
	if err != nil {
		return err
	}

	if mutate != nil {
		data, err = mutate(data)
		if err != nil {
			return fmt.Errorf("mutate record %s: %w", id, err)
		}
	}

	if err := s.Put(ctx, to, id, data); err != nil {
		return err
	}
	return s.Delete(ctx, from, id)
}

// Delete removes a record; missing records are not an error.
func (s *FileStore) Delete(ctx context.Context, state State, id string) error {
	err := os.Remove(s.path(state, id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete record %s/%s: %w", state, id, err)
	}
	return nil
}
