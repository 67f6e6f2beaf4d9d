// Package memory is an in-process expense store. Data is lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"dividi/internal/core"
	"dividi/internal/storage"

	"github.com/google/uuid"
)

type Store struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]core.Expense
}

func NewStore() *Store {
	return &Store{byID: make(map[string]core.Expense)}
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	e = e.Clone()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[e.ID] = e
	s.order = append(s.order, e.ID)
	return e.Clone(), nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return core.Expense{}, storage.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.byID[e.ID]
	if !ok {
		return storage.ErrNotFound
	}
	e = e.Clone()
	e.CreatedAt = old.CreatedAt
	s.byID[e.ID] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListExpenses returns deep copies so callers can't mutate stored state.
func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Expense, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

var _ storage.Repository = (*Store)(nil)
