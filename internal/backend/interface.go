package backend

import (
	"context"

	"dividi/internal/amqp"
	"dividi/internal/services"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result is a ready-to-use ledger together with the resources behind it.
type Result struct {
	Ledger *services.LedgerService
	// AMQP is nil when no broker is configured or it could not be reached.
	AMQP *amqp.Client
	// Ready reports whether storage can serve requests.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates a backend from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// BackendType selects where expenses are stored.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
