package analytics

import (
	"fmt"
	"strings"
)

// invoiceRelation is the only relation the pipeline ever reads.
const invoiceRelation = "invoices"

// maxRows caps every synthesized query, including user-requested top-N.
const maxRows = 100

// Predicate is one WHERE condition template plus its bound value. The
// template references its argument positionally ($1, $2, ...) after
// rendering; values are never interpolated into SQL text.
type Predicate struct {
	// Expr contains a single %d verb for the placeholder ordinal.
	Expr  string
	Value any
}

// CandidateQuery is the synthesizer's structured, not-yet-validated
// SELECT representation. Where predicates are AND-joined in order; Limit
// is always present and numeric.
type CandidateQuery struct {
	Select  string
	From    string
	Where   []Predicate
	GroupBy string
	OrderBy string
	Limit   int
	Args    []any
}

// SQL renders the query as a single whitespace-normalized SELECT
// statement with positional placeholders. Args carries the bound values
// in placeholder order.
func (q *CandidateQuery) SQL() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(q.Select)
	b.WriteString(" FROM ")
	b.WriteString(q.From)

	if len(q.Where) > 0 {
		exprs := make([]string, len(q.Where))
		for i, p := range q.Where {
			exprs[i] = fmt.Sprintf(p.Expr, i+1)
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(exprs, " AND "))
	}
	if q.GroupBy != "" {
		b.WriteString(" GROUP BY ")
		b.WriteString(q.GroupBy)
	}
	if q.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.OrderBy)
	}
	fmt.Fprintf(&b, " LIMIT %d", q.Limit)

	return strings.Join(strings.Fields(b.String()), " ")
}

// Synthesize deterministically assembles a CandidateQuery from a
// classified intent and extracted entities. Assembly order is fixed:
// SELECT shape by intent, the invoice relation, entity predicates in
// extraction order (vendor, customer, date, risk), then grouping,
// ordering and limit by intent.
func Synthesize(intent Intent, entities Entities) *CandidateQuery {
	q := &CandidateQuery{
		From:  invoiceRelation,
		Limit: maxRows,
	}

	switch intent.Kind {
	case IntentSumTotal:
		q.Select = "SUM(total_amount) AS total_sum, COUNT(*) AS invoice_count, currency"
		q.GroupBy = "currency"
	case IntentAverage:
		q.Select = "AVG(total_amount) AS average_amount, currency"
		q.GroupBy = "currency"
	case IntentList:
		q.Select = "invoice_number, invoice_date, vendor_name, total_amount, currency, risk_level"
		q.OrderBy = "invoice_date DESC"
	case IntentTopN:
		q.Select = "vendor_name, SUM(total_amount) AS total_sum, COUNT(*) AS invoice_count, currency"
		q.GroupBy = "vendor_name, currency"
		q.OrderBy = "total_sum DESC"
		q.Limit = clampLimit(intent.TopN)
	case IntentCountByGroup:
		q.Select = "COUNT(*) AS invoice_count, vendor_name"
		q.GroupBy = "vendor_name"
	default:
		q.Select = "*"
	}

	if entities.Vendor != "" {
		q.addPredicate("vendor_name LIKE $%d", "%"+entities.Vendor+"%")
	}
	if entities.Customer != "" {
		q.addPredicate("customer_name LIKE $%d", "%"+entities.Customer+"%")
	}
	switch {
	case entities.YearMonth != "":
		// invoice_date is ISO-8601 text, so a prefix equality is a
		// year-month truncation on both store drivers.
		q.addPredicate("substr(invoice_date, 1, 7) = $%d", entities.YearMonth)
	case entities.Year != "":
		q.addPredicate("substr(invoice_date, 1, 4) = $%d", entities.Year)
	}
	if entities.RiskLevel != "" {
		q.addPredicate("risk_level = $%d", entities.RiskLevel)
	}

	return q
}

func (q *CandidateQuery) addPredicate(expr string, value any) {
	q.Where = append(q.Where, Predicate{Expr: expr, Value: value})
	q.Args = append(q.Args, value)
}

// clampLimit bounds a requested top-N to the row ceiling. A
// non-positive N falls back to the default.
func clampLimit(n int) int {
	if n <= 0 {
		return defaultTopN
	}
	if n > maxRows {
		return maxRows
	}
	return n
}
