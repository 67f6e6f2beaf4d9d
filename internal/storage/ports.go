// Package storage persists expense records. The settlement engine never sees
// this package; services load a snapshot from a Repository and hand it over.
package storage

import (
	"context"
	"errors"

	"dividi/internal/core"
)

// ErrNotFound is returned when an expense id does not exist.
var ErrNotFound = errors.New("expense not found")

// Repository is the expense store used by the ledger service.
type Repository interface {
	// CreateExpense stores e, assigning ID and CreatedAt when empty.
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)

	// GetExpense returns ErrNotFound for unknown ids.
	GetExpense(ctx context.Context, id string) (core.Expense, error)

	// UpdateExpense replaces every field of the expense with e.ID.
	UpdateExpense(ctx context.Context, e core.Expense) error

	// DeleteExpense removes the expense; ErrNotFound if it is absent.
	DeleteExpense(ctx context.Context, id string) error

	// ListExpenses returns all expenses in insertion order, read as one
	// consistent snapshot.
	ListExpenses(ctx context.Context) ([]core.Expense, error)

	Close() error
}
