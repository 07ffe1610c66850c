package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-analytics/internal/db"
	"github.com/sells-group/invoice-analytics/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"save_invoice": `INSERT INTO invoices
		(id, invoice_number, invoice_date, vendor_name, vendor_tax_id, customer_name, customer_tax_id,
		 subtotal, tax_amount, total_amount, currency, validation_status, risk_level, risk_score, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (invoice_number) DO UPDATE SET
		 invoice_date = $3, vendor_name = $4, vendor_tax_id = $5, customer_name = $6, customer_tax_id = $7,
		 subtotal = $8, tax_amount = $9, total_amount = $10, currency = $11,
		 validation_status = $12, risk_level = $13, risk_score = $14, processed_at = $15`,
	"list_by_vendor": `SELECT ` + invoiceColumnList + ` FROM invoices
		WHERE vendor_name ILIKE $1 ORDER BY invoice_date DESC LIMIT $2`,
	"high_risk": `SELECT ` + invoiceColumnList + ` FROM invoices
		WHERE risk_level = 'high' ORDER BY risk_score DESC, invoice_date DESC LIMIT $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests and by the
// bulk import path, which shares the pool with COPY helpers.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Pool returns the underlying database pool for subsystems that need
// direct access (bulk import uses it for COPY).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const invoiceColumnList = `invoice_number, invoice_date, vendor_name, vendor_tax_id,
	customer_name, customer_tax_id, subtotal, tax_amount, total_amount, currency,
	validation_status, risk_level, risk_score, processed_at`

const postgresMigration = `
CREATE TABLE IF NOT EXISTS invoices (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	invoice_number    TEXT NOT NULL UNIQUE,
	invoice_date      TEXT NOT NULL,
	vendor_name       TEXT NOT NULL,
	vendor_tax_id     TEXT,
	customer_name     TEXT,
	customer_tax_id   TEXT,
	subtotal          DOUBLE PRECISION NOT NULL DEFAULT 0,
	tax_amount        DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_amount      DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency          TEXT NOT NULL DEFAULT 'UAH',
	validation_status TEXT,
	risk_level        TEXT,
	risk_score        INTEGER NOT NULL DEFAULT 0,
	processed_at      TEXT
);

CREATE INDEX IF NOT EXISTS idx_invoices_vendor_name ON invoices(vendor_name);
CREATE INDEX IF NOT EXISTS idx_invoices_invoice_date ON invoices(invoice_date);
CREATE INDEX IF NOT EXISTS idx_invoices_risk_level ON invoices(risk_level);
CREATE INDEX IF NOT EXISTS idx_invoices_customer_name ON invoices(customer_name);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Query runs one parameterized read-only statement and materializes the
// full result set. Column names come from the statement's field
// descriptions, so aggregate aliases (total_sum, invoice_count) survive.
func (s *PostgresStore) Query(ctx context.Context, sql string, args ...any) (*model.QueryResult, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	out := []model.Row{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, eris.Wrap(err, "postgres: read row values")
		}
		row := make(model.Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: query iterate")
	}

	return &model.QueryResult{Columns: columns, Rows: out, RowCount: len(out)}, nil
}

func (s *PostgresStore) SaveInvoice(ctx context.Context, inv model.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.ProcessedAt == "" {
		inv.ProcessedAt = time.Now().UTC().Format(time.RFC3339)
	}

	_, err := s.pool.Exec(ctx,
		preparedStatements["save_invoice"],
		inv.ID, inv.InvoiceNumber, inv.InvoiceDate, inv.VendorName, inv.VendorTaxID,
		inv.CustomerName, inv.CustomerTaxID, inv.Subtotal, inv.TaxAmount, inv.TotalAmount,
		inv.Currency, inv.ValidationStatus, inv.RiskLevel, inv.RiskScore, inv.ProcessedAt,
	)
	return eris.Wrapf(err, "postgres: save invoice %s", inv.InvoiceNumber)
}

func (s *PostgresStore) ListByVendor(ctx context.Context, vendor string, limit int) ([]model.Invoice, error) {
	rows, err := s.pool.Query(ctx,
		preparedStatements["list_by_vendor"],
		"%"+vendor+"%", clampListLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list by vendor %s", vendor)
	}
	defer rows.Close()
	return scanInvoices(rows, "postgres")
}

func (s *PostgresStore) AggregateByVendor(ctx context.Context, vendor string) ([]model.VendorAggregate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT currency, COUNT(*), SUM(total_amount), AVG(total_amount),
		        MIN(total_amount), MAX(total_amount), MIN(invoice_date), MAX(invoice_date)
		 FROM invoices WHERE vendor_name ILIKE $1
		 GROUP BY currency ORDER BY SUM(total_amount) DESC`,
		"%"+vendor+"%",
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: aggregate vendor %s", vendor)
	}
	defer rows.Close()

	var aggs []model.VendorAggregate
	for rows.Next() {
		var a model.VendorAggregate
		if err := rows.Scan(&a.Currency, &a.InvoiceCount, &a.TotalSum, &a.Average,
			&a.MinAmount, &a.MaxAmount, &a.FirstInvoice, &a.LastInvoice); err != nil {
			return nil, eris.Wrap(err, "postgres: scan vendor aggregate")
		}
		aggs = append(aggs, a)
	}
	return aggs, eris.Wrap(rows.Err(), "postgres: aggregate vendor iterate")
}

func (s *PostgresStore) HighRiskInvoices(ctx context.Context, limit int) ([]model.Invoice, error) {
	rows, err := s.pool.Query(ctx,
		preparedStatements["high_risk"],
		clampListLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: high risk invoices")
	}
	defer rows.Close()
	return scanInvoices(rows, "postgres")
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.StoreStats, error) {
	var st model.StoreStats
	var totalAmount, avgAmount *float64

	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT vendor_name), SUM(total_amount), AVG(total_amount) FROM invoices`,
	).Scan(&st.TotalInvoices, &st.UniqueVendors, &totalAmount, &avgAmount)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	if totalAmount != nil {
		st.TotalAmount = *totalAmount
	}
	if avgAmount != nil {
		st.AverageAmount = *avgAmount
	}

	rows, err := s.pool.Query(ctx,
		`SELECT COALESCE(risk_level, ''), COUNT(*) FROM invoices GROUP BY risk_level`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats risk counts")
	}
	defer rows.Close()

	st.RiskCounts = map[string]int{}
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan risk count")
		}
		if level != "" {
			st.RiskCounts[level] = count
		}
	}
	return &st, eris.Wrap(rows.Err(), "postgres: stats iterate")
}

// scanInvoices reads the fixed invoice column set from a pgx row stream.
func scanInvoices(rows pgx.Rows, driver string) ([]model.Invoice, error) {
	var out []model.Invoice
	for rows.Next() {
		var inv model.Invoice
		var vendorTaxID, customerName, customerTaxID, validationStatus, riskLevel, processedAt *string
		if err := rows.Scan(&inv.InvoiceNumber, &inv.InvoiceDate, &inv.VendorName, &vendorTaxID,
			&customerName, &customerTaxID, &inv.Subtotal, &inv.TaxAmount, &inv.TotalAmount,
			&inv.Currency, &validationStatus, &riskLevel, &inv.RiskScore, &processedAt); err != nil {
			return nil, eris.Wrapf(err, "%s: scan invoice", driver)
		}
		inv.VendorTaxID = deref(vendorTaxID)
		inv.CustomerName = deref(customerName)
		inv.CustomerTaxID = deref(customerTaxID)
		inv.ValidationStatus = deref(validationStatus)
		inv.RiskLevel = deref(riskLevel)
		inv.ProcessedAt = deref(processedAt)
		out = append(out, inv)
	}
	return out, eris.Wrapf(rows.Err(), "%s: scan invoices iterate", driver)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
