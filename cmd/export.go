package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-analytics/internal/model"
)

var (
	exportOut    string
	exportVendor string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored invoices to XLSX or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("query"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		query, queryArgs := exportQuery(exportVendor)
		result, err := st.Query(ctx, query, queryArgs...)
		if err != nil {
			return eris.Wrap(err, "export: query invoices")
		}

		rows := exportRows(result)

		switch strings.ToLower(filepath.Ext(exportOut)) {
		case ".xlsx":
			err = writeXLSX(exportOut, rows)
		case ".csv":
			err = writeCSV(exportOut, rows)
		default:
			return eris.Errorf("export: unsupported output extension on %s (want .xlsx or .csv)", exportOut)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.Int("invoices", result.RowCount),
			zap.String("out", exportOut),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "invoices.xlsx", "output path, .xlsx or .csv")
	exportCmd.Flags().StringVar(&exportVendor, "vendor", "", "only export invoices matching this vendor")
	rootCmd.AddCommand(exportCmd)
}

// exportQuery selects the fixed invoice column set, optionally filtered
// by vendor. Placeholders stay in $N form; the SQLite store rebinds them.
func exportQuery(vendor string) (string, []any) {
	query := "SELECT " + strings.Join(model.InvoiceColumns, ", ") + " FROM invoices"
	var args []any
	if vendor != "" {
		query += " WHERE vendor_name LIKE $1"
		args = append(args, "%"+vendor+"%")
	}
	query += " ORDER BY invoice_date"
	return query, args
}

// exportRows renders a header row plus one formatted row per invoice,
// in the result's column order.
func exportRows(result *model.QueryResult) [][]string {
	rows := make([][]string, 0, result.RowCount+1)
	rows = append(rows, result.Columns)

	for _, r := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			if v := r[col]; v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		rows = append(rows, cells)
	}
	return rows
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return eris.Wrap(err, "export: write csv")
	}
	return nil
}

func writeXLSX(path string, rows [][]string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Invoices")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	for _, cells := range rows {
		row := sheet.AddRow()
		for _, cell := range cells {
			row.AddCell().Value = cell
		}
	}

	return eris.Wrapf(file.Save(path), "export: save %s", path)
}
