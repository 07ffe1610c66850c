package analytics

import (
	"regexp"
	"strings"
	"time"
)

// Entities holds the structured filters pulled out of question text.
// Every field is independently optional; empty string means absent.
// At most one of YearMonth/Year is populated, and month+year wins over
// a bare year.
type Entities struct {
	Vendor    string
	Customer  string
	YearMonth string // "2025-10"
	Year      string // "2025"
	RiskLevel string
}

// vendorPatterns and customerPatterns are priority-ordered: the first
// pattern that matches yields the captured substring and the rest are
// not tried. Cues cover Ukrainian prepositions and English phrasing.
var vendorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)від\s+([А-Яа-яЄєІіЇїҐґA-Za-z0-9\s.]+?)(?:\s+за|\s+в|\s*$)`),
	regexp.MustCompile(`(?i)from\s+([A-Za-z0-9\s.]+?)(?:\s+for|\s+in|\s*$)`),
	regexp.MustCompile(`(?i)vendor[:\s]+([A-Za-z0-9\s.]+?)(?:\s|$)`),
}

var customerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)для\s+([А-Яа-яЄєІіЇїҐґA-Za-z0-9\s.]+?)(?:\s+за|\s*$)`),
	regexp.MustCompile(`(?i)customer[:\s]+([A-Za-z0-9\s.]+?)(?:\s|$)`),
}

// nameStopWords are trailing tokens stripped from a captured vendor or
// customer substring; the capture groups are greedy enough to swallow a
// following preposition in some phrasings.
var nameStopWords = map[string]bool{
	"за":  true,
	"в":   true,
	"у":   true,
	"for": true,
	"in":  true,
	"the": true,
}

// monthCode pairs a lowercase month name with its two-digit code.
// The table is ordered so lookup is deterministic; Ukrainian names come
// first, then English.
type monthCode struct {
	name string
	code string
}

var monthTable = []monthCode{
	{"січень", "01"}, {"лютий", "02"}, {"березень", "03"}, {"квітень", "04"},
	{"травень", "05"}, {"червень", "06"}, {"липень", "07"}, {"серпень", "08"},
	{"вересень", "09"}, {"жовтень", "10"}, {"листопад", "11"}, {"грудень", "12"},
	{"january", "01"}, {"february", "02"}, {"march", "03"}, {"april", "04"},
	{"may", "05"}, {"june", "06"}, {"july", "07"}, {"august", "08"},
	{"september", "09"}, {"october", "10"}, {"november", "11"}, {"december", "12"},
}

var yearLiteralRe = regexp.MustCompile(`20\d{2}`)

// sentencePunctRe matches punctuation that ends a question ("from
// Atlassian?"); it is blanked before name matching so the anchored
// terminator alternations can reach end-of-input.
var sentencePunctRe = regexp.MustCompile(`[?!]`)

// riskPhrases maps ordered bilingual phrase patterns to a risk level.
// High risk is checked before medium; the first match wins.
var riskPhrases = []struct {
	re    *regexp.Regexp
	level string
}{
	{regexp.MustCompile(`(?i)high[\s-]*risk`), "high"},
	{regexp.MustCompile(`висок\p{L}*\s+ризик`), "high"},
	{regexp.MustCompile(`(?i)medium[\s-]*risk`), "medium"},
	{regexp.MustCompile(`середн\p{L}*\s+ризик`), "medium"},
}

// ExtractEntities pulls vendor, customer, temporal and risk filters out
// of free text. Parsing is heuristic and fully deterministic; it never
// calls a model, so the query surface stays auditable.
func ExtractEntities(question string, now time.Time) Entities {
	var e Entities
	lower := strings.ToLower(question)

	nameText := sentencePunctRe.ReplaceAllString(question, " ")
	e.Vendor = firstCapture(vendorPatterns, nameText)
	e.Customer = firstCapture(customerPatterns, nameText)

	// Temporal: month name + year literal (current year if absent)
	// produces a year-month filter; a bare year literal produces a
	// year-only filter. Never both.
	for _, m := range monthTable {
		if strings.Contains(lower, m.name) {
			year := yearLiteralRe.FindString(question)
			if year == "" {
				year = now.Format("2006")
			}
			e.YearMonth = year + "-" + m.code
			break
		}
	}
	if e.YearMonth == "" {
		e.Year = yearLiteralRe.FindString(question)
	}

	for _, rp := range riskPhrases {
		if rp.re.MatchString(lower) {
			e.RiskLevel = rp.level
			break
		}
	}

	return e
}

// firstCapture returns the first pattern's trimmed capture, or "".
func firstCapture(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if name := trimName(m[1]); name != "" {
			return name
		}
	}
	return ""
}

// trimName strips surrounding whitespace, trailing punctuation and
// trailing stop-words from a captured name.
func trimName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "?!.,;:")
	words := strings.Fields(s)
	for len(words) > 0 && nameStopWords[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}
