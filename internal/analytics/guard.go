package analytics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Verdict is the guard's decision on a candidate statement. A rejection
// is terminal: the statement is never executed, repaired or retried.
type Verdict struct {
	Allowed bool
	Reason  string
}

// bannedTokens are rejected as substrings anywhere in the statement,
// including inside literal text. Intentionally conservative: the guard
// stays simple and total at the cost of rejecting legitimate text that
// happens to contain one of these words.
var bannedTokens = []string{
	"DROP", "DELETE", "INSERT", "UPDATE", "ALTER", "CREATE", "TRUNCATE",
}

var limitClauseRe = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)`)

// GuardQuery validates a fully rendered candidate SQL statement before
// execution. All rules must pass: the statement must be a SELECT, must
// contain no banned token in any case combination at any position, and
// its declared LIMIT must not exceed the row ceiling.
func GuardQuery(sql string) Verdict {
	upper := strings.ToUpper(strings.TrimSpace(sql))

	if !strings.HasPrefix(upper, "SELECT") {
		return Verdict{Reason: "only SELECT queries are allowed"}
	}

	for _, token := range bannedTokens {
		if strings.Contains(upper, token) {
			return Verdict{Reason: fmt.Sprintf("query contains banned token %s", token)}
		}
	}

	if m := limitClauseRe.FindStringSubmatch(sql); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n > maxRows {
			return Verdict{Reason: fmt.Sprintf("declared LIMIT exceeds ceiling of %d rows", maxRows)}
		}
	}

	return Verdict{Allowed: true}
}
