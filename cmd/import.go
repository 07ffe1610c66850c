package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/invoice-analytics/internal/db"
	"github.com/sells-group/invoice-analytics/internal/model"
	"github.com/sells-group/invoice-analytics/internal/store"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load invoices from a YAML seed file into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("query"); err != nil {
			return err
		}

		data, err := os.ReadFile(importFile)
		if err != nil {
			return eris.Wrapf(err, "import: read seed file %s", importFile)
		}

		invoices, err := parseSeedFile(data)
		if err != nil {
			return err
		}
		if len(invoices) == 0 {
			zap.L().Info("no invoices in seed file", zap.String("file", importFile))
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if err := importInvoices(ctx, st, invoices); err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.Int("invoices", len(invoices)),
			zap.String("file", importFile),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to YAML seed file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

// parseSeedFile decodes a YAML seed file. Records missing an invoice
// number or vendor are rejected up front so a bad file fails whole.
func parseSeedFile(data []byte) ([]model.Invoice, error) {
	var seed struct {
		Invoices []model.Invoice `yaml:"invoices"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, eris.Wrap(err, "import: parse seed file")
	}

	for i, inv := range seed.Invoices {
		if inv.InvoiceNumber == "" {
			return nil, eris.Errorf("import: record %d has no invoice_number", i)
		}
		if inv.VendorName == "" {
			return nil, eris.Errorf("import: record %d (%s) has no vendor_name", i, inv.InvoiceNumber)
		}
	}
	return seed.Invoices, nil
}

// importInvoices writes the batch. Postgres gets a single COPY-backed
// upsert through the shared pool; SQLite saves row by row.
func importInvoices(ctx context.Context, st store.Store, invoices []model.Invoice) error {
	if ps, ok := st.(*store.PostgresStore); ok {
		rows := make([][]any, len(invoices))
		for i, inv := range invoices {
			if inv.ProcessedAt == "" {
				inv.ProcessedAt = time.Now().UTC().Format(time.RFC3339)
			}
			rows[i] = []any{
				inv.InvoiceNumber, inv.InvoiceDate, inv.VendorName, inv.VendorTaxID,
				inv.CustomerName, inv.CustomerTaxID, inv.Subtotal, inv.TaxAmount,
				inv.TotalAmount, inv.Currency, inv.ValidationStatus, inv.RiskLevel,
				inv.RiskScore, inv.ProcessedAt,
			}
		}

		affected, err := db.BulkUpsert(ctx, ps.Pool(), db.UpsertConfig{
			Table:        "invoices",
			Columns:      model.InvoiceColumns,
			ConflictKeys: []string{"invoice_number"},
		}, rows)
		if err != nil {
			return eris.Wrap(err, "import: bulk upsert")
		}
		zap.L().Info("bulk upsert complete", zap.Int64("rows", affected))
		return nil
	}

	for _, inv := range invoices {
		if err := st.SaveInvoice(ctx, inv); err != nil {
			return eris.Wrapf(err, "import: save invoice %s", inv.InvoiceNumber)
		}
	}
	return nil
}
