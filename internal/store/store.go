// Package store persists processed invoices and serves the read-only
// query surface of the analytics pipeline. Two drivers are provided:
// PostgreSQL for deployments and SQLite for local single-file use.
package store

import (
	"context"

	"github.com/sells-group/invoice-analytics/internal/model"
)

// Store defines the persistence interface for invoice analytics.
// Query is the pipeline's executor entry point; the named operations
// back the REST analytics endpoints and the CLI.
type Store interface {
	// Pipeline surface
	Query(ctx context.Context, sql string, args ...any) (*model.QueryResult, error)

	// Invoices
	SaveInvoice(ctx context.Context, inv model.Invoice) error
	ListByVendor(ctx context.Context, vendor string, limit int) ([]model.Invoice, error)
	AggregateByVendor(ctx context.Context, vendor string) ([]model.VendorAggregate, error)
	HighRiskInvoices(ctx context.Context, limit int) ([]model.Invoice, error)
	Stats(ctx context.Context) (*model.StoreStats, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// defaultListLimit bounds the named list operations when the caller
// passes a non-positive limit.
const defaultListLimit = 100

func clampListLimit(limit int) int {
	if limit <= 0 || limit > defaultListLimit {
		return defaultListLimit
	}
	return limit
}
