package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-analytics/internal/store"
)

const seedYAML = `invoices:
  - invoice_number: INV-100
    invoice_date: "2025-10-03"
    vendor_name: Nedstone
    total_amount: 4500
    currency: UAH
    risk_level: low
  - invoice_number: INV-101
    invoice_date: "2025-10-21"
    vendor_name: Zoom
    customer_name: ТОВ Приклад
    total_amount: 120
    currency: USD
    risk_level: high
    risk_score: 80
`

func TestParseSeedFile(t *testing.T) {
	invoices, err := parseSeedFile([]byte(seedYAML))
	require.NoError(t, err)
	require.Len(t, invoices, 2)

	assert.Equal(t, "INV-100", invoices[0].InvoiceNumber)
	assert.Equal(t, "Nedstone", invoices[0].VendorName)
	assert.InDelta(t, 4500, invoices[0].TotalAmount, 0.001)
	assert.Equal(t, "ТОВ Приклад", invoices[1].CustomerName)
}

func TestParseSeedFile_MissingInvoiceNumber(t *testing.T) {
	_, err := parseSeedFile([]byte("invoices:\n  - vendor_name: Nedstone\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no invoice_number")
}

func TestParseSeedFile_MissingVendor(t *testing.T) {
	_, err := parseSeedFile([]byte("invoices:\n  - invoice_number: INV-1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no vendor_name")
}

func TestParseSeedFile_BadYAML(t *testing.T) {
	_, err := parseSeedFile([]byte("invoices: [not: closed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse seed file")
}

func TestImportInvoices_SQLite(t *testing.T) {
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "invoices.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	invoices, err := parseSeedFile([]byte(seedYAML))
	require.NoError(t, err)

	require.NoError(t, importInvoices(ctx, st, invoices))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalInvoices)
	assert.Equal(t, 1, stats.RiskCounts["high"])

	// Re-importing the same file updates rather than duplicates.
	require.NoError(t, importInvoices(ctx, st, invoices))
	stats, err = st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalInvoices)
}
