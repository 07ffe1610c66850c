package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardQuery_Allows(t *testing.T) {
	queries := []string{
		"SELECT * FROM invoices LIMIT 100",
		"select invoice_number from invoices limit 10",
		"  SELECT COUNT(*) AS invoice_count, vendor_name FROM invoices GROUP BY vendor_name LIMIT 100",
		"SELECT SUM(total_amount) AS total_sum FROM invoices WHERE vendor_name LIKE $1 LIMIT 100",
	}
	for _, sql := range queries {
		verdict := GuardQuery(sql)
		assert.True(t, verdict.Allowed, "query %q rejected: %s", sql, verdict.Reason)
		assert.Empty(t, verdict.Reason)
	}
}

func TestGuardQuery_RejectsNonSelect(t *testing.T) {
	queries := []string{
		"",
		"UPDATE invoices SET total_amount = 0",
		"WITH x AS (SELECT 1) SELECT * FROM x",
		"EXPLAIN SELECT * FROM invoices",
	}
	for _, sql := range queries {
		verdict := GuardQuery(sql)
		assert.False(t, verdict.Allowed, "query %q", sql)
		assert.Equal(t, "only SELECT queries are allowed", verdict.Reason)
	}
}

func TestGuardQuery_RejectsBannedTokens(t *testing.T) {
	tests := []struct {
		sql   string
		token string
	}{
		{"SELECT 1; DROP TABLE invoices", "DROP"},
		{"SELECT * FROM invoices WHERE note = 'drop it'", "DROP"},
		{"select * from invoices; dElEtE from invoices", "DELETE"},
		{"SELECT * FROM invoices -- INSERT INTO audit", "INSERT"},
		{"SELECT * FROM invoices WHERE vendor_name = 'update'", "UPDATE"},
		{"SELECT * FROM invoices UNION SELECT * FROM pg_create_restore_point('x')", "CREATE"},
		{"SELECT truncate_hint FROM invoices", "TRUNCATE"},
		{"SELECT * FROM invoices WHERE altered = 1", "ALTER"},
	}
	for _, tt := range tests {
		verdict := GuardQuery(tt.sql)
		assert.False(t, verdict.Allowed, "query %q", tt.sql)
		assert.Equal(t, "query contains banned token "+tt.token, verdict.Reason)
	}
}

func TestGuardQuery_LimitCeiling(t *testing.T) {
	verdict := GuardQuery("SELECT * FROM invoices LIMIT 101")
	assert.False(t, verdict.Allowed)
	assert.Equal(t, "declared LIMIT exceeds ceiling of 100 rows", verdict.Reason)

	assert.True(t, GuardQuery("SELECT * FROM invoices LIMIT 100").Allowed)
	assert.True(t, GuardQuery("select * from invoices limit 1").Allowed)
}

// A statement with no LIMIT clause passes the ceiling rule; the
// synthesizer always emits one, but the guard judges only what it sees.
func TestGuardQuery_NoLimitClause(t *testing.T) {
	assert.True(t, GuardQuery("SELECT * FROM invoices").Allowed)
}
