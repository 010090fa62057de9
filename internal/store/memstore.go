package store

import (
	"context"
	"fmt"
	"sync"
)

// MemStore implements Store in memory for tests and development.
type MemStore struct {
	mu      sync.RWMutex
	records map[State]map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	records := make(map[State]map[string][]byte)
	for _, state := range States() {
		records[state] = make(map[string][]byte)
	}
	return &MemStore{records: records}
}

// Put writes a record.
func (s *MemStore) Put(ctx context.Context, state State, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	s.records[state][id] = cp
	return nil
}

// Get reads one record.
func (s *MemStore) Get(ctx context.Context, state State, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.records[state][id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// List returns all records in a state.
func (s *MemStore) List(ctx context.Context, state State) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []Record
	for id, data := range s.records[state] {
		cp := make([]byte, len(data))
		copy(cp, data)
		records = append(records, Record{ID: id, Data: cp})
	}
	return records, nil
}

// Move transitions a record between states under one lock.
func (s *MemStore) Move(ctx context.Context, id string, from, to State, mutate func([]byte) ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.records[from][id]
	if !ok {
		return ErrNotFound
	}

	if mutate != nil {
		var err error
		data, err = mutate(data)
		if err != nil {
			return fmt.Errorf("mutate record %s: %w", id, err)
		}
	}

	s.records[to][id] = data
	delete(s.records[from], id)
	return nil
}

// Delete removes a record; missing records are not an error.
func (s *MemStore) Delete(ctx context.Context, state State, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records[state], id)
	return nil
}
