// Package batch runs multi-item operations inside one host transaction.
//
// Every item is attempted in input order, each inside its own savepoint. An
// item fault rolls back that item only and is reported as a failed outcome;
// the transaction then commits regardless. Only failures to open or commit the
// transaction (or an abandoned context) fail the call as a whole.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aretw0/cadbridge/internal/logging"
	"github.com/aretw0/cadbridge/internal/telemetry"
	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/aretw0/cadbridge/pkg/ports"
)

// Executor runs batches of operation specs.
type Executor struct {
	txm      ports.TransactionManager
	registry *Registry
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// Option configures the Executor.
type Option func(*Executor)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// NewExecutor creates an executor over the given transaction manager and handlers.
func NewExecutor(txm ports.TransactionManager, registry *Registry, opts ...Option) *Executor {
	e := &Executor{
		txm:      txm,
		registry: registry,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteBatch runs specs in one transaction and returns one outcome per spec, in input order.
func (e *Executor) ExecuteBatch(ctx context.Context, specs []domain.OperationSpec) (*domain.BatchResult, error) {
	tx, err := e.txm.Begin(ctx, "batch")
	if err != nil {
		e.metrics.ObserveBatch(false)
		return nil, domain.NewChannelError(domain.HostRejected, "", fmt.Errorf("failed to open transaction: %w", err))
	}

	outcomes := make([]domain.Outcome, 0, len(specs))
	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			e.abort(ctx, tx, err)
			return nil, domain.NewChannelError(domain.Disconnected, "", err)
		}
		outcome := e.attempt(ctx, tx, i, spec)
		e.metrics.ObserveItem(spec.Kind, outcome.Success)
		outcomes = append(outcomes, outcome)
	}

	if err := tx.Commit(ctx); err != nil {
		e.abort(ctx, tx, err)
		return nil, domain.NewChannelError(domain.HostRejected, "", fmt.Errorf("failed to commit transaction: %w", err))
	}
	e.metrics.ObserveBatch(true)

	e.logger.Debug("Batch committed", "items", len(specs), "failed", countFailed(outcomes))
	return &domain.BatchResult{Committed: true, Outcomes: outcomes}, nil
}

func (e *Executor) abort(ctx context.Context, tx ports.Transaction, cause error) {
	e.metrics.ObserveBatch(false)
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		e.logger.Error("Batch rollback failed", "error", err, "cause", cause)
		return
	}
	e.logger.Warn("Batch aborted", "error", cause)
}

// attempt runs one item inside its own savepoint. It never returns an error:
// every failure becomes a failed outcome.
func (e *Executor) attempt(ctx context.Context, tx ports.Transaction, index int, spec domain.OperationSpec) domain.Outcome {
	sp, err := tx.Savepoint(fmt.Sprintf("item-%d", index))
	if err != nil {
		return domain.Failed(index, fmt.Errorf("failed to isolate item: %w", err))
	}

	value, err := e.run(ctx, spec)
	if err != nil {
		if rbErr := sp.RollbackTo(); rbErr != nil {
			e.logger.Error("Savepoint rollback failed", "index", index, "kind", spec.Kind, "error", rbErr)
		}
		e.logger.Debug("Batch item failed", "index", index, "kind", spec.Kind, "error", err)
		return domain.Failed(index, err)
	}
	if err := sp.Release(); err != nil {
		return domain.Failed(index, fmt.Errorf("failed to keep item changes: %w", err))
	}
	return domain.Succeeded(index, value)
}

// run dispatches spec and its post-process steps, converting panics into item faults.
func (e *Executor) run(ctx context.Context, spec domain.OperationSpec) (raw json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation %s panicked: %v", spec.Kind, r)
		}
	}()

	ent, ok := e.registry.lookup(spec.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedKind, spec.Kind)
	}

	value, err := ent.handler(ctx, spec)
	if err != nil {
		return nil, err
	}
	for _, step := range ent.post {
		value, err = step(ctx, spec, value)
		if err != nil {
			return nil, err
		}
	}

	raw, err = json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return raw, nil
}

func countFailed(outcomes []domain.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if !o.Success {
			n++
		}
	}
	return n
}
