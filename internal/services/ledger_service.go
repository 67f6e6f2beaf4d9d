package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"dividi/internal/amqp"
	"dividi/internal/cache"
	"dividi/internal/core"
	"dividi/internal/log"
	"dividi/internal/metrics"
	"dividi/internal/storage"
)

// ErrInvalidExpense wraps every validation failure returned by the service.
var ErrInvalidExpense = errors.New("invalid expense")

// EventPublisher announces ledger changes. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, evt *amqp.ExpenseEvent) error
}

// ExpenseUpdate is a partial update; nil fields keep their stored value.
type ExpenseUpdate struct {
	Amount       *float64
	Description  *string
	PaidBy       *string
	Participants []string
}

// Plan is one engine run over a consistent snapshot of the ledger.
type Plan struct {
	Version     uint64
	Balances    core.Balances
	Settlements []core.Settlement
	ComputedAt  time.Time
}

// Moved is the total amount transferred by the plan.
func (p Plan) Moved() float64 {
	var total float64
	for _, s := range p.Settlements {
		total += s.Amount
	}
	return core.Round2(total)
}

// LedgerService orchestrates expense writes across storage and AMQP and
// serves balances and settlement plans computed by the engine.
type LedgerService struct {
	repo      storage.Repository
	publisher EventPublisher
	plans     cache.Cache[Plan]
	metrics   *metrics.Metrics
	logger    *log.Logger
	events    *log.StructuredLogger

	// writeMu orders version bumps with the storage writes they describe.
	writeMu sync.Mutex
	version atomic.Uint64
}

type Option func(*LedgerService)

// WithPublisher attaches an event publisher. Without one events are skipped.
func WithPublisher(p EventPublisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

// WithPlanCache caches settlement plans keyed by ledger version.
func WithPlanCache(c cache.Cache[Plan]) Option {
	return func(s *LedgerService) { s.plans = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *LedgerService) { s.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

func NewLedgerService(repo storage.Repository, opts ...Option) *LedgerService {
	s := &LedgerService{repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// Version is bumped after every successful write.
func (s *LedgerService) Version() uint64 {
	return s.version.Load()
}

// AddExpense validates and stores e. Participants default to the payer.
func (s *LedgerService) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e = e.Clone()
	if len(e.Participants) == 0 && e.PaidBy != "" {
		e.Participants = []string{e.PaidBy}
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("%w: %w", ErrInvalidExpense, err)
	}

	s.writeMu.Lock()
	created, err := s.repo.CreateExpense(ctx, e)
	var version uint64
	if err == nil {
		version = s.bump()
	}
	s.writeMu.Unlock()
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.events.LogExpenseChanged(ctx, log.OpCreate, created.ID, created.Amount, created.PaidBy, len(created.Participants))
	s.metrics.ExpenseWritten(log.OpCreate)
	s.publish(ctx, amqp.EventExpenseCreated, created.ID, version)
	return created, nil
}

// UpdateExpense merges u into the stored expense and saves the result.
func (s *LedgerService) UpdateExpense(ctx context.Context, id string, u ExpenseUpdate) (core.Expense, error) {
	s.writeMu.Lock()
	current, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		s.writeMu.Unlock()
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}

	merged := current.Clone()
	if u.Amount != nil {
		merged.Amount = *u.Amount
	}
	if u.Description != nil {
		merged.Description = *u.Description
	}
	if u.PaidBy != nil {
		merged.PaidBy = *u.PaidBy
	}
	if u.Participants != nil {
		merged.Participants = append([]string(nil), u.Participants...)
	}
	if err := merged.Validate(); err != nil {
		s.writeMu.Unlock()
		return core.Expense{}, fmt.Errorf("%w: %w", ErrInvalidExpense, err)
	}

	err = s.repo.UpdateExpense(ctx, merged)
	var version uint64
	if err == nil {
		version = s.bump()
	}
	s.writeMu.Unlock()
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	s.events.LogExpenseChanged(ctx, log.OpUpdate, merged.ID, merged.Amount, merged.PaidBy, len(merged.Participants))
	s.metrics.ExpenseWritten(log.OpUpdate)
	s.publish(ctx, amqp.EventExpenseUpdated, merged.ID, version)
	return merged, nil
}

func (s *LedgerService) DeleteExpense(ctx context.Context, id string) error {
	s.writeMu.Lock()
	err := s.repo.DeleteExpense(ctx, id)
	var version uint64
	if err == nil {
		version = s.bump()
	}
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense deleted", log.FieldExpenseID, id, log.FieldOperation, log.OpDelete)
	s.metrics.ExpenseWritten(log.OpDelete)
	s.publish(ctx, amqp.EventExpenseDeleted, id, version)
	return nil
}

func (s *LedgerService) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	e, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (s *LedgerService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	expenses, err := s.repo.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// People returns the sorted distinct payers and participants.
func (s *LedgerService) People(ctx context.Context) ([]string, error) {
	expenses, err := s.ListExpenses(ctx)
	if err != nil {
		return nil, err
	}
	return core.People(expenses), nil
}

func (s *LedgerService) Balances(ctx context.Context) (core.Balances, error) {
	plan, err := s.Plan(ctx)
	if err != nil {
		return core.Balances{}, err
	}
	return plan.Balances, nil
}

func (s *LedgerService) Settlements(ctx context.Context) ([]core.Settlement, error) {
	plan, err := s.Plan(ctx)
	if err != nil {
		return nil, err
	}
	return plan.Settlements, nil
}

// Plan returns the settlement plan for the current ledger version, from the
// cache when possible.
func (s *LedgerService) Plan(ctx context.Context) (Plan, error) {
	// Read the version before the snapshot. A write landing in between makes
	// the snapshot newer than its key, never older.
	version := s.version.Load()
	key := strconv.FormatUint(version, 10)

	if s.plans != nil {
		if p, ok := s.plans.Get(key); ok {
			s.metrics.PlanCacheLookup(true)
			return p, nil
		}
		s.metrics.PlanCacheLookup(false)
	}

	p, err := s.compute(ctx, version)
	if err != nil {
		return Plan{}, err
	}
	if s.plans != nil {
		s.plans.Set(key, p)
	}
	return p, nil
}

// Recompute bypasses the cache and runs the engine on a fresh snapshot.
func (s *LedgerService) Recompute(ctx context.Context) (Plan, error) {
	return s.compute(ctx, s.version.Load())
}

func (s *LedgerService) compute(ctx context.Context, version uint64) (Plan, error) {
	expenses, err := s.repo.ListExpenses(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("snapshot expenses: %w", err)
	}

	balances, settlements := core.Plan(expenses)
	p := Plan{
		Version:     version,
		Balances:    balances,
		Settlements: settlements,
		ComputedAt:  time.Now().UTC(),
	}

	s.events.LogPlan(ctx, balances.Len(), len(settlements), version)
	s.metrics.PlanComputed(len(settlements), p.Moved())
	return p, nil
}

// bump advances the version and drops cached plans. Callers hold writeMu.
func (s *LedgerService) bump() uint64 {
	v := s.version.Add(1)
	if s.plans != nil {
		s.plans.Purge()
	}
	return v
}

func (s *LedgerService) publish(ctx context.Context, t amqp.EventType, id string, version uint64) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishEvent(ctx, amqp.NewExpenseEvent(t, id, version))
	s.metrics.Event("publish", string(t), err)
	if err != nil {
		// The write already succeeded; consumers catch up on the next reconcile.
		fields := log.NewFields()
		fields[log.FieldEventType] = string(t)
		fields[log.FieldExpenseID] = id
		fields[log.FieldLedgerVersion] = version
		s.events.LogError(ctx, "Failed to publish ledger event", err, log.OpPublish, fields)
	}
}

// Close releases storage and publisher resources.
func (s *LedgerService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	return errors.Join(errs...)
}
