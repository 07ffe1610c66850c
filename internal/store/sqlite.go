package store

import (
	"context"
	"database/sql"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/invoice-analytics/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS invoices (
	id                TEXT PRIMARY KEY,
	invoice_number    TEXT NOT NULL UNIQUE,
	invoice_date      TEXT NOT NULL,
	vendor_name       TEXT NOT NULL,
	vendor_tax_id     TEXT,
	customer_name     TEXT,
	customer_tax_id   TEXT,
	subtotal          REAL NOT NULL DEFAULT 0,
	tax_amount        REAL NOT NULL DEFAULT 0,
	total_amount      REAL NOT NULL DEFAULT 0,
	currency          TEXT NOT NULL DEFAULT 'UAH',
	validation_status TEXT,
	risk_level        TEXT,
	risk_score        INTEGER NOT NULL DEFAULT 0,
	processed_at      TEXT
);

CREATE INDEX IF NOT EXISTS idx_invoices_vendor_name ON invoices(vendor_name);
CREATE INDEX IF NOT EXISTS idx_invoices_invoice_date ON invoices(invoice_date);
CREATE INDEX IF NOT EXISTS idx_invoices_risk_level ON invoices(risk_level);
`

// placeholderRe rewrites pgx-style positional placeholders to the ?NNN
// form SQLite understands. The synthesizer always emits $N, so both
// drivers accept its output unchanged.
var placeholderRe = regexp.MustCompile(`\$(\d+)`)

func rebind(query string) string {
	return placeholderRe.ReplaceAllString(query, "?$1")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Query runs one parameterized read-only statement and materializes the
// full result set as generic rows.
func (s *SQLiteStore) Query(ctx context.Context, query string, args ...any) (*model.QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: read columns")
	}

	out := []model.Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		row := make(model.Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: query iterate")
	}

	return &model.QueryResult{Columns: columns, Rows: out, RowCount: len(out)}, nil
}

func (s *SQLiteStore) SaveInvoice(ctx context.Context, inv model.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.ProcessedAt == "" {
		inv.ProcessedAt = time.Now().UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invoices
		 (id, invoice_number, invoice_date, vendor_name, vendor_tax_id, customer_name, customer_tax_id,
		  subtotal, tax_amount, total_amount, currency, validation_status, risk_level, risk_score, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (invoice_number) DO UPDATE SET
		  invoice_date = excluded.invoice_date, vendor_name = excluded.vendor_name,
		  vendor_tax_id = excluded.vendor_tax_id, customer_name = excluded.customer_name,
		  customer_tax_id = excluded.customer_tax_id, subtotal = excluded.subtotal,
		  tax_amount = excluded.tax_amount, total_amount = excluded.total_amount,
		  currency = excluded.currency, validation_status = excluded.validation_status,
		  risk_level = excluded.risk_level, risk_score = excluded.risk_score,
		  processed_at = excluded.processed_at`,
		inv.ID, inv.InvoiceNumber, inv.InvoiceDate, inv.VendorName, inv.VendorTaxID,
		inv.CustomerName, inv.CustomerTaxID, inv.Subtotal, inv.TaxAmount, inv.TotalAmount,
		inv.Currency, inv.ValidationStatus, inv.RiskLevel, inv.RiskScore, inv.ProcessedAt,
	)
	return eris.Wrapf(err, "sqlite: save invoice %s", inv.InvoiceNumber)
}

func (s *SQLiteStore) ListByVendor(ctx context.Context, vendor string, limit int) ([]model.Invoice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invoiceColumnList+` FROM invoices
		 WHERE vendor_name LIKE ? ORDER BY invoice_date DESC LIMIT ?`,
		"%"+vendor+"%", clampListLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list by vendor %s", vendor)
	}
	defer rows.Close()
	return scanInvoiceRows(rows)
}

func (s *SQLiteStore) AggregateByVendor(ctx context.Context, vendor string) ([]model.VendorAggregate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT currency, COUNT(*), SUM(total_amount), AVG(total_amount),
		        MIN(total_amount), MAX(total_amount), MIN(invoice_date), MAX(invoice_date)
		 FROM invoices WHERE vendor_name LIKE ?
		 GROUP BY currency ORDER BY SUM(total_amount) DESC`,
		"%"+vendor+"%",
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: aggregate vendor %s", vendor)
	}
	defer rows.Close()

	var aggs []model.VendorAggregate
	for rows.Next() {
		var a model.VendorAggregate
		if err := rows.Scan(&a.Currency, &a.InvoiceCount, &a.TotalSum, &a.Average,
			&a.MinAmount, &a.MaxAmount, &a.FirstInvoice, &a.LastInvoice); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vendor aggregate")
		}
		aggs = append(aggs, a)
	}
	return aggs, eris.Wrap(rows.Err(), "sqlite: aggregate vendor iterate")
}

func (s *SQLiteStore) HighRiskInvoices(ctx context.Context, limit int) ([]model.Invoice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invoiceColumnList+` FROM invoices
		 WHERE risk_level = 'high' ORDER BY risk_score DESC, invoice_date DESC LIMIT ?`,
		clampListLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: high risk invoices")
	}
	defer rows.Close()
	return scanInvoiceRows(rows)
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.StoreStats, error) {
	var st model.StoreStats
	var totalAmount, avgAmount sql.NullFloat64

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT vendor_name), SUM(total_amount), AVG(total_amount) FROM invoices`,
	).Scan(&st.TotalInvoices, &st.UniqueVendors, &totalAmount, &avgAmount)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	st.TotalAmount = totalAmount.Float64
	st.AverageAmount = avgAmount.Float64

	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(risk_level, ''), COUNT(*) FROM invoices GROUP BY risk_level`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats risk counts")
	}
	defer rows.Close()

	st.RiskCounts = map[string]int{}
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan risk count")
		}
		if level != "" {
			st.RiskCounts[level] = count
		}
	}
	return &st, eris.Wrap(rows.Err(), "sqlite: stats iterate")
}

// scanInvoiceRows reads the fixed invoice column set from a database/sql
// row stream.
func scanInvoiceRows(rows *sql.Rows) ([]model.Invoice, error) {
	var out []model.Invoice
	for rows.Next() {
		var inv model.Invoice
		var vendorTaxID, customerName, customerTaxID, validationStatus, riskLevel, processedAt sql.NullString
		if err := rows.Scan(&inv.InvoiceNumber, &inv.InvoiceDate, &inv.VendorName, &vendorTaxID,
			&customerName, &customerTaxID, &inv.Subtotal, &inv.TaxAmount, &inv.TotalAmount,
			&inv.Currency, &validationStatus, &riskLevel, &inv.RiskScore, &processedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan invoice")
		}
		inv.VendorTaxID = vendorTaxID.String
		inv.CustomerName = customerName.String
		inv.CustomerTaxID = customerTaxID.String
		inv.ValidationStatus = validationStatus.String
		inv.RiskLevel = riskLevel.String
		inv.ProcessedAt = processedAt.String
		out = append(out, inv)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: scan invoices iterate")
}
