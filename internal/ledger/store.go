// Package ledger keeps the full record list under one key of a kv.Store.
//
// The persisted payload is the only source of truth: every call reads or
// writes the whole serialized list and nothing derived from it is cached.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"

	"ledger/internal/core"
	"ledger/internal/kv"
)

// DefaultKey is the backing-store key holding the serialized record list.
const DefaultKey = "accountingRecords"

var errNotAList = errors.New("stored payload is not a record list")

// Store is the Record Store. All four operations touch the same key.
type Store struct {
	backing kv.Store
	key     string

	// serializes read-modify-write cycles issued through this Store
	mu sync.Mutex
}

func NewStore(backing kv.Store, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{backing: backing, key: key}
}

// Key returns the backing-store key in use.
func (s *Store) Key() string {
	return s.key
}

// Append adds r after every stored record and returns it as stored. When r's
// id is zero or already taken it is replaced with one past the largest id.
func (s *Store) Append(ctx context.Context, r core.Record) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx, "append")
	if err != nil {
		return core.Record{}, err
	}

	r.ID = uniqueID(records, r.ID)
	r.Issues = nil
	records = append(records, r)

	if err := s.save(ctx, "append", records); err != nil {
		return core.Record{}, err
	}
	return r, nil
}

// All returns every stored record in insertion order. A missing payload yields
// an empty, non-nil slice.
func (s *Store) All(ctx context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, "read")
}

// ReplaceAll overwrites the stored list with records in a single write.
func (s *Store) ReplaceAll(ctx context.Context, records []core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, "replace", records)
}

// Clear deletes the stored list.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backing.Remove(ctx, s.key); err != nil {
		return &core.PersistenceError{Op: "clear", Err: err}
	}
	return nil
}

func (s *Store) load(ctx context.Context, op string) ([]core.Record, error) {
	raw, found, err := s.backing.Get(ctx, s.key)
	if err != nil {
		return nil, &core.PersistenceError{Op: op, Err: err}
	}
	records := []core.Record{}
	if !found {
		return records, nil
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return records, nil
	}
	if trimmed[0] != '[' {
		return nil, &core.PersistenceError{Op: op, Err: errNotAList}
	}
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, &core.PersistenceError{Op: op, Err: err}
	}
	return records, nil
}

func (s *Store) save(ctx context.Context, op string, records []core.Record) error {
	if records == nil {
		records = []core.Record{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return &core.PersistenceError{Op: op, Err: err}
	}
	if err := s.backing.Set(ctx, s.key, payload); err != nil {
		return &core.PersistenceError{Op: op, Err: err}
	}
	return nil
}

func uniqueID(records []core.Record, want int64) int64 {
	var maxID int64
	taken := want == 0
	for _, r := range records {
		if r.ID == want {
			taken = true
		}
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	if !taken {
		return want
	}
	return maxID + 1
}
