package analytics

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/invoice-analytics/internal/model"
)

// Querier runs one parameterized read-only query against the invoice
// store. Both store drivers satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (*model.QueryResult, error)
}

// Executor runs guard-approved statements against the invoice store.
// It is the only pipeline stage with a side effect.
type Executor struct {
	store Querier
}

// NewExecutor creates an Executor over the given store.
func NewExecutor(store Querier) *Executor {
	return &Executor{store: store}
}

// Execute runs a guard-approved, parameterized SELECT. Any execution
// failure (schema mismatch, malformed predicate, timeout) is caught here
// and converted into a QueryResult-shaped error payload; it never
// propagates as a fault to the caller, so synthesizer edge cases degrade
// gracefully.
func (e *Executor) Execute(ctx context.Context, sql string, args []any) *model.QueryResult {
	res, err := e.store.Query(ctx, sql, args...)
	if err != nil {
		zap.L().Warn("executor: query failed",
			zap.String("sql", sql),
			zap.Error(err),
		)
		return &model.QueryResult{Error: err.Error()}
	}
	return res
}
