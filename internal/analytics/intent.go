// Package analytics implements the natural-language-to-SQL pipeline:
// intent classification, entity extraction, deterministic SQL synthesis,
// a query safety guard, and guarded execution against the invoice store.
// No generative model touches the SQL path; the only model call is the
// final answer summarization, which lives behind an interface.
package analytics

import (
	"regexp"
	"strconv"
	"strings"
)

// IntentKind is the query shape inferred from question text.
type IntentKind string

const (
	IntentSumTotal     IntentKind = "sum_total"
	IntentAverage      IntentKind = "average"
	IntentList         IntentKind = "list"
	IntentTopN         IntentKind = "top_n"
	IntentCountByGroup IntentKind = "count_by_group"
	IntentGeneric      IntentKind = "generic"
)

// Intent is the classified query shape. TopN is meaningful only for
// IntentTopN.
type Intent struct {
	Kind IntentKind
	TopN int
}

// defaultTopN is used when a top-N question carries no integer literal.
const defaultTopN = 5

var intLiteralRe = regexp.MustCompile(`\d+`)

// intentRule pairs a set of bilingual trigger keywords with a producer.
// Rules are evaluated in priority order; the first rule whose trigger
// matches wins and no further rules are tried. A question matching
// several trigger sets (e.g. both "total" and "top") therefore resolves
// purely by table order.
type intentRule struct {
	name     string
	triggers []string
	build    func(question string) Intent
}

// intentRules is the priority-ordered classification table. Keywords are
// matched case-insensitively as substrings, mirroring how users actually
// phrase UA/EN invoice questions.
var intentRules = []intentRule{
	{
		name:     "aggregate",
		triggers: []string{"сума", "скільки", "total", "amount"},
		build: func(q string) Intent {
			if strings.Contains(q, "середн") || strings.Contains(q, "average") {
				return Intent{Kind: IntentAverage}
			}
			return Intent{Kind: IntentSumTotal}
		},
	},
	{
		name:     "list",
		triggers: []string{"список", "всі", "list", "all"},
		build:    func(string) Intent { return Intent{Kind: IntentList} },
	},
	{
		name:     "top_n",
		triggers: []string{"топ", "top"},
		build: func(q string) Intent {
			n := defaultTopN
			if lit := intLiteralRe.FindString(q); lit != "" {
				if parsed, err := strconv.Atoi(lit); err == nil {
					n = parsed
				}
			}
			return Intent{Kind: IntentTopN, TopN: n}
		},
	},
	{
		name:     "count",
		triggers: []string{"скільки інвойсів", "how many"},
		build:    func(string) Intent { return Intent{Kind: IntentCountByGroup} },
	},
}

// ClassifyIntent maps question text to a query shape. It is total: input
// with no recognizable trigger resolves to IntentGeneric, never an error.
func ClassifyIntent(question string) Intent {
	lower := strings.ToLower(question)
	for _, rule := range intentRules {
		for _, trigger := range rule.triggers {
			if strings.Contains(lower, trigger) {
				return rule.build(lower)
			}
		}
	}
	return Intent{Kind: IntentGeneric}
}
