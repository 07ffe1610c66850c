// Package summarize turns tabular query results into short prose
// answers. The Anthropic-backed summarizer mirrors the question's
// language; the template summarizer is the deterministic fallback used
// when no API key is configured.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/invoice-analytics/internal/analytics"
	"github.com/sells-group/invoice-analytics/internal/config"
	"github.com/sells-group/invoice-analytics/internal/model"
	"github.com/sells-group/invoice-analytics/pkg/anthropic"
)

const systemPrompt = `You are a business intelligence analyst answering questions about invoice data.

RULES:
1. Answer in the SAME LANGUAGE as the question (Ukrainian question gets a Ukrainian answer, English question gets an English answer).
2. Use natural, conversational language, like talking to a colleague.
3. Keep answers short, 2-4 sentences at most.
4. Base the answer only on the provided query results. Never invent numbers.`

// AnthropicSummarizer produces answers through the Anthropic API,
// throttled by a client-side rate limiter.
type AnthropicSummarizer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
}

// NewAnthropicSummarizer builds a summarizer from config.
func NewAnthropicSummarizer(client anthropic.Client, cfg config.AnthropicConfig) *AnthropicSummarizer {
	return &AnthropicSummarizer{
		client:    client,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
	}
}

// Summarize asks the model for a short prose answer in the question's
// language. The results travel as compact JSON so column aliases from
// the synthesized SQL stay visible to the model.
func (s *AnthropicSummarizer) Summarize(ctx context.Context, req analytics.SummaryRequest) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "summarize: rate limit wait")
	}

	resultsJSON, err := json.Marshal(req.Results)
	if err != nil {
		return "", eris.Wrap(err, "summarize: marshal results")
	}

	prompt := fmt.Sprintf(
		"Question: %s\n\nSQL executed: %s\n\nQuery results (%d rows): %s\n\nAnswer the question.",
		req.Question, req.SQLQuery, req.RowCount, resultsJSON,
	)

	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    []anthropic.SystemBlock{{Text: systemPrompt}},
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", eris.Wrap(err, "summarize: create message")
	}
	resp.Usage.LogCost(s.model)

	return strings.TrimSpace(resp.Text()), nil
}

// TemplateSummarizer renders a deterministic one-line answer without
// any model call. Row counts and the first row's values are enough for
// a serviceable fallback.
type TemplateSummarizer struct{}

// Summarize renders a minimal answer in the question's language.
func (TemplateSummarizer) Summarize(_ context.Context, req analytics.SummaryRequest) (string, error) {
	if req.RowCount == 0 {
		if req.Language == model.LanguageUkrainian {
			return "За вашим запитом нічого не знайдено.", nil
		}
		return "No matching invoices were found.", nil
	}

	if req.Language == model.LanguageUkrainian {
		return fmt.Sprintf("Знайдено %d %s. %s", req.RowCount, ukrainianRows(req.RowCount), firstRowSummary(req)), nil
	}
	return fmt.Sprintf("Found %d row(s). %s", req.RowCount, firstRowSummary(req)), nil
}

// ukrainianRows picks the correct plural form for a row count.
func ukrainianRows(n int) string {
	switch {
	case n%10 == 1 && n%100 != 11:
		return "рядок"
	case n%10 >= 2 && n%10 <= 4 && (n%100 < 12 || n%100 > 14):
		return "рядки"
	default:
		return "рядків"
	}
}

// firstRowSummary renders the first result row as "col: value" pairs.
// Keys are sorted so the fallback text is deterministic.
func firstRowSummary(req analytics.SummaryRequest) string {
	if len(req.Results) == 0 {
		return ""
	}
	row := req.Results[0]

	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		parts = append(parts, fmt.Sprintf("%s: %v", col, row[col]))
	}
	return strings.Join(parts, ", ")
}
