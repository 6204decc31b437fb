package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind names what happened to the ledger.
type EventKind string

const (
	KindRecordAppended EventKind = "record.appended"
	KindLedgerReplaced EventKind = "ledger.replaced"
	KindLedgerCleared  EventKind = "ledger.cleared"
)

// Valid reports whether k is one of the published kinds.
func (k EventKind) Valid() bool {
	switch k {
	case KindRecordAppended, KindLedgerReplaced, KindLedgerCleared:
		return true
	}
	return false
}

// LedgerEvent is published after every successful ledger mutation.
// It carries no record contents; consumers read the store when they need them.
type LedgerEvent struct {
	ID          string    `json:"id"`
	Kind        EventKind `json:"kind"`
	RecordID    int64     `json:"record_id,omitempty"`
	RecordCount int       `json:"record_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event with a fresh message id.
func NewLedgerEvent(kind EventKind, recordID int64, recordCount int) *LedgerEvent {
	return &LedgerEvent{
		ID:          uuid.NewString(),
		Kind:        kind,
		RecordID:    recordID,
		RecordCount: recordCount,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and rejects unknown kinds.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if !ev.Kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if _, err := uuid.Parse(ev.ID); err != nil {
		return nil, fmt.Errorf("invalid event id: %w", err)
	}
	return &ev, nil
}
