// Package store provides the durable, named stores that double as pipeline
// states. Records move through stores in order; the stores are the only
// shared resource between workers.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// State names one pipeline store.
type State string

const (
	StateNeedsAction     State = "needs-action"
	StatePlans           State = "plans"
	StatePendingApproval State = "pending-approval"
	StateApproved        State = "approved"
	StateRejected        State = "rejected"
	StateDone            State = "done"
	StateFailedRequests  State = "failed-requests"
)

// States lists every pipeline store in flow order.
func States() []State {
	return []State{
		StateNeedsAction,
		StatePlans,
		StatePendingApproval,
		StateApproved,
		StateRejected,
		StateDone,
		StateFailedRequests,
	}
}

// ErrNotFound is returned when a record does not exist in the given state.
var ErrNotFound = errors.New("record not found")

// Record is one stored JSON document.
type Record struct {
	ID   string
	Data json.RawMessage
}

// Store is the durable state-machine storage. Writes are atomic; a record is
// never observable in two states at once through Move.
type Store interface {
	// Put writes a record into a state, replacing any existing record with
	// the same id in that state.
	Put(ctx context.Context, state State, id string, data []byte) error

	// Get reads one record. Returns ErrNotFound if absent.
	Get(ctx context.Context, state State, id string) ([]byte, error)

	// List returns all records in a state.
	List(ctx context.Context, state State) ([]Record, error)

	// Move transitions a record between states. The optional mutate hook is
	// applied to the document before it lands in the target state. The
	// record appears in the target before it disappears from the source, so
	// a crash mid-move cannot lose it.
	Move(ctx context.Context, id string, from, to State, mutate func([]byte) ([]byte, error)) error

	// Delete removes a record from a state. Missing records are not an error.
	Delete(ctx context.Context, state State, id string) error
}

// PutJSON marshals v and writes it into the state.
func PutJSON(ctx context.Context, s Store, state State, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(ctx, state, id, data)
}

// GetJSON reads a record and unmarshals it into v.
func GetJSON(ctx context.Context, s Store, state State, id string, v any) error {
	data, err := s.Get(ctx, state, id)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
