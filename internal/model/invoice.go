package model

// Invoice is a processed invoice record as stored in the invoice relation.
// Extraction and risk analysis happen upstream; this module only reads
// and loads already-structured records.
type Invoice struct {
	ID               string  `json:"id,omitempty" yaml:"id,omitempty"`
	InvoiceNumber    string  `json:"invoice_number" yaml:"invoice_number"`
	InvoiceDate      string  `json:"invoice_date" yaml:"invoice_date"` // ISO-8601 date text
	VendorName       string  `json:"vendor_name" yaml:"vendor_name"`
	VendorTaxID      string  `json:"vendor_tax_id,omitempty" yaml:"vendor_tax_id,omitempty"`
	CustomerName     string  `json:"customer_name,omitempty" yaml:"customer_name,omitempty"`
	CustomerTaxID    string  `json:"customer_tax_id,omitempty" yaml:"customer_tax_id,omitempty"`
	Subtotal         float64 `json:"subtotal" yaml:"subtotal"`
	TaxAmount        float64 `json:"tax_amount" yaml:"tax_amount"`
	TotalAmount      float64 `json:"total_amount" yaml:"total_amount"`
	Currency         string  `json:"currency" yaml:"currency"`
	ValidationStatus string  `json:"validation_status,omitempty" yaml:"validation_status,omitempty"`
	RiskLevel        string  `json:"risk_level,omitempty" yaml:"risk_level,omitempty"`
	RiskScore        int     `json:"risk_score,omitempty" yaml:"risk_score,omitempty"`
	ProcessedAt      string  `json:"processed_at,omitempty" yaml:"processed_at,omitempty"`
}

// Risk levels recognized by the extraction subsystem.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// InvoiceColumns is the fixed column set of the invoice relation, in
// declaration order. The analytics pipeline only ever selects from these.
var InvoiceColumns = []string{
	"invoice_number",
	"invoice_date",
	"vendor_name",
	"vendor_tax_id",
	"customer_name",
	"customer_tax_id",
	"subtotal",
	"tax_amount",
	"total_amount",
	"currency",
	"validation_status",
	"risk_level",
	"risk_score",
	"processed_at",
}

// VendorAggregate summarizes one vendor's invoices within a single currency.
type VendorAggregate struct {
	Currency     string  `json:"currency"`
	InvoiceCount int     `json:"invoice_count"`
	TotalSum     float64 `json:"total_sum"`
	Average      float64 `json:"average_amount"`
	MinAmount    float64 `json:"min_amount"`
	MaxAmount    float64 `json:"max_amount"`
	FirstInvoice string  `json:"first_invoice"`
	LastInvoice  string  `json:"last_invoice"`
}

// StoreStats is an overall snapshot of the invoice relation.
type StoreStats struct {
	TotalInvoices int            `json:"total_invoices"`
	UniqueVendors int            `json:"unique_vendors"`
	TotalAmount   float64        `json:"total_amount"`
	AverageAmount float64        `json:"average_amount"`
	RiskCounts    map[string]int `json:"risk_distribution"`
}
