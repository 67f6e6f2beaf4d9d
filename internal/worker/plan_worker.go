// Package worker recomputes the settlement plan whenever the ledger changes
// and on a fixed reconcile interval, for deployments that want the plan
// logged or observed outside the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dividi/internal/amqp"
	"dividi/internal/log"
	"dividi/internal/metrics"
	"dividi/internal/services"

	"golang.org/x/sync/errgroup"
)

// Planner runs the engine over a fresh ledger snapshot.
type Planner interface {
	Recompute(ctx context.Context) (services.Plan, error)
}

// Consumer delivers ledger events until ctx ends.
type Consumer interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

type Config struct {
	ReconcileInterval time.Duration
}

type PlanWorker struct {
	planner  Planner
	consumer Consumer
	cfg      Config
	logger   *log.Logger
	metrics  *metrics.Metrics

	mu          sync.Mutex
	lastPlan    services.Plan
	lastVersion uint64
	runs        int
}

// NewPlanWorker builds a worker. consumer may be nil, in which case only the
// periodic reconcile runs.
func NewPlanWorker(planner Planner, consumer Consumer, cfg Config, logger *log.Logger, m *metrics.Metrics) *PlanWorker {
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = 5 * time.Minute
	}
	return &PlanWorker{
		planner:  planner,
		consumer: consumer,
		cfg:      cfg,
		logger:   logger.WithComponent(log.ComponentWorker),
		metrics:  m,
	}
}

// HandleEvent recomputes the plan after a ledger change.
func (w *PlanWorker) HandleEvent(ctx context.Context, evt *amqp.ExpenseEvent) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldEventType, evt.Type,
		log.FieldExpenseID, evt.ExpenseID,
		log.FieldLedgerVersion, evt.Version)

	err := w.recompute(ctx, evt.Version)
	w.metrics.Event("consume", string(evt.Type), err)
	if err != nil {
		return fmt.Errorf("handle %s: %w", evt.Type, err)
	}
	return nil
}

// Reconcile recomputes regardless of events, covering anything lost in transit.
func (w *PlanWorker) Reconcile(ctx context.Context) error {
	if err := w.recompute(ctx, 0); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	return nil
}

func (w *PlanWorker) recompute(ctx context.Context, version uint64) error {
	plan, err := w.planner.Recompute(ctx)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.lastPlan = plan
	if version > w.lastVersion {
		w.lastVersion = version
	}
	w.runs++
	seen := w.lastVersion
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Settlement plan recomputed",
		log.FieldPeople, plan.Balances.Len(),
		log.FieldSettlements, len(plan.Settlements),
		log.FieldLedgerVersion, seen,
		"moved", plan.Moved())
	for _, s := range plan.Settlements {
		w.logger.DebugContext(ctx, "Settlement", "from", s.From, "to", s.To, log.FieldAmount, s.Amount)
	}
	return nil
}

// LastPlan returns the most recent plan and how many times it was computed.
func (w *PlanWorker) LastPlan() (services.Plan, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastPlan, w.runs
}

// Run starts the consumer and the reconcile loop and blocks until ctx is
// cancelled or either fails.
func (w *PlanWorker) Run(parent context.Context) error {
	g, ctx := errgroup.WithContext(parent)

	if w.consumer != nil {
		g.Go(func() error {
			return w.consumer.Consume(ctx, w.HandleEvent)
		})
	} else {
		w.logger.WarnContext(ctx, "AMQP not configured, running reconcile loop only")
	}

	g.Go(func() error {
		return w.reconcileLoop(ctx)
	})

	w.logger.InfoContext(ctx, "Plan worker started", "reconcile_interval", w.cfg.ReconcileInterval)

	err := g.Wait()
	if parent.Err() != nil && errors.Is(err, parent.Err()) {
		return nil
	}
	return err
}

func (w *PlanWorker) reconcileLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.ReconcileInterval)
	defer ticker.Stop()

	// Reconcile once at startup so the first plan doesn't wait a full interval.
	w.reconcileLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.reconcileLogged(ctx)
		}
	}
}

func (w *PlanWorker) reconcileLogged(ctx context.Context) {
	if err := w.Reconcile(ctx); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Reconcile failed", log.FieldError, err, log.FieldOperation, log.OpReconcile)
	}
}
