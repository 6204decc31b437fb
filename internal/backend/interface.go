package backend

import (
	"context"

	"ledger/internal/amqp"
	"ledger/internal/kv"
	"ledger/internal/ledger"
	"ledger/internal/services"
)

// CleanupFunc releases what a backend opened.
type CleanupFunc func() error

// BackendResult is a ready backing store with the record store on top of it.
type BackendResult struct {
	KV     kv.Store
	Ledger *ledger.Store

	// AMQP is nil when no broker is configured or it could not be reached.
	AMQP *amqp.Client

	// Ready reports whether the backing store answers. Never nil.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Publisher returns the event publisher for the ledger service, or a nil
// interface when AMQP is unavailable.
func (r *BackendResult) Publisher() services.EventPublisher {
	if r.AMQP == nil {
		return nil
	}
	return r.AMQP
}

// Close runs Cleanup if set.
func (r *BackendResult) Close() error {
	if r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type       BackendType
	StorageKey string

	SQLiteDBPath string
	DatabaseURL  string

	// AMQP is optional for every backend type.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Durable reports whether records survive a process restart.
func (bt BackendType) Durable() bool {
	return bt == SQLiteBackend || bt == PostgresBackend
}
