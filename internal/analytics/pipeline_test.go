package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-analytics/internal/model"
)

type fakeSummarizer struct {
	lastReq SummaryRequest
	text    string
	err     error
	calls   int
}

func (f *fakeSummarizer) Summarize(_ context.Context, req SummaryRequest) (string, error) {
	f.calls++
	f.lastReq = req
	return f.text, f.err
}

type fakeSink struct {
	questions          []string // "intent/state"
	guardRejections    []string
	summarizerFailures int
}

func (f *fakeSink) RecordQuestion(intent, state string, _ time.Duration) {
	f.questions = append(f.questions, intent+"/"+state)
}

func (f *fakeSink) RecordGuardRejection(reason string) {
	f.guardRejections = append(f.guardRejections, reason)
}

func (f *fakeSink) RecordSummarizerFailure() { f.summarizerFailures++ }

func newTestPipeline(store Querier, sum *fakeSummarizer, sink *fakeSink) *Pipeline {
	p := NewPipeline(store, sum, sink)
	p.now = func() time.Time { return time.Date(2025, time.November, 15, 12, 0, 0, 0, time.UTC) }
	return p
}

func ask(t *testing.T, p *Pipeline, text string) *model.AnalyticsAnswer {
	t.Helper()
	return p.Answer(context.Background(), model.NewQuestion(text))
}

func TestPipeline_SumQuestionUkrainian(t *testing.T) {
	store := &fakeQuerier{result: &model.QueryResult{
		Columns:  []string{"total_sum", "invoice_count", "currency"},
		Rows:     []model.Row{{"total_sum": 7500.0, "invoice_count": int64(3), "currency": "UAH"}},
		RowCount: 1,
	}}
	sum := &fakeSummarizer{text: "Загальна сума 7500 UAH за 3 інвойсами."}
	sink := &fakeSink{}
	p := newTestPipeline(store, sum, sink)

	ans := ask(t, p, "Яка сума інвойсів від Nedstone за жовтень 2025?")

	assert.Equal(t, StateAnswered, ans.State)
	assert.Equal(t, model.LanguageUkrainian, ans.Language)
	assert.Equal(t,
		"SELECT SUM(total_amount) AS total_sum, COUNT(*) AS invoice_count, currency "+
			"FROM invoices WHERE vendor_name LIKE $1 AND substr(invoice_date, 1, 7) = $2 "+
			"GROUP BY currency LIMIT 100",
		ans.SQLQuery,
	)
	assert.Equal(t, []any{"%Nedstone%", "2025-10"}, store.lastArgs)
	assert.Equal(t, 1, ans.RowCount)
	assert.Equal(t, "Загальна сума 7500 UAH за 3 інвойсами.", ans.AnswerText)
	assert.Empty(t, ans.Reason)
	assert.NotEmpty(t, ans.ID)

	require.Len(t, sink.questions, 1)
	assert.Equal(t, "sum_total/answered", sink.questions[0])
	assert.Equal(t, model.LanguageUkrainian, sum.lastReq.Language)
}

func TestPipeline_CountQuestionEnglish(t *testing.T) {
	store := &fakeQuerier{result: &model.QueryResult{
		Columns:  []string{"invoice_count", "vendor_name"},
		Rows:     []model.Row{{"invoice_count": int64(4), "vendor_name": "Atlassian"}},
		RowCount: 1,
	}}
	sum := &fakeSummarizer{text: "There are 4 invoices from Atlassian."}
	p := newTestPipeline(store, sum, &fakeSink{})

	ans := ask(t, p, "How many invoices from Atlassian?")

	assert.Equal(t, StateAnswered, ans.State)
	assert.Equal(t, model.LanguageEnglish, ans.Language)
	assert.Equal(t,
		"SELECT COUNT(*) AS invoice_count, vendor_name FROM invoices "+
			"WHERE vendor_name LIKE $1 GROUP BY vendor_name LIMIT 100",
		ans.SQLQuery,
	)
	assert.Equal(t, []any{"%Atlassian%"}, store.lastArgs)
	assert.Equal(t, "There are 4 invoices from Atlassian.", ans.AnswerText)
}

func TestPipeline_TopVendorsLimit(t *testing.T) {
	store := &fakeQuerier{result: &model.QueryResult{RowCount: 0, Rows: []model.Row{}}}
	p := newTestPipeline(store, &fakeSummarizer{}, &fakeSink{})

	ans := ask(t, p, "Топ 5 вендорів по сумі")

	assert.Equal(t, StateAnswered, ans.State)
	assert.Contains(t, ans.SQLQuery, "ORDER BY total_sum DESC LIMIT 5")
	assert.Contains(t, ans.SQLQuery, "GROUP BY vendor_name, currency")
}

// Gibberish still flows through every stage: generic shape, guarded,
// executed, answered.
func TestPipeline_GibberishFallsBackToGeneric(t *testing.T) {
	store := &fakeQuerier{result: &model.QueryResult{Rows: []model.Row{}, RowCount: 0}}
	sink := &fakeSink{}
	p := newTestPipeline(store, &fakeSummarizer{text: "No matching invoices."}, sink)

	ans := ask(t, p, "asdkfj")

	assert.Equal(t, StateAnswered, ans.State)
	assert.Equal(t, "SELECT * FROM invoices LIMIT 100", ans.SQLQuery)
	assert.Equal(t, 0, ans.RowCount)
	require.Len(t, sink.questions, 1)
	assert.Equal(t, "generic/answered", sink.questions[0])
}

// Execution failure terminates in Failed with an error placeholder row
// and no summarizer call.
func TestPipeline_ExecutionFailure(t *testing.T) {
	store := &fakeQuerier{err: eris.New("store: connection refused")}
	sum := &fakeSummarizer{}
	sink := &fakeSink{}
	p := newTestPipeline(store, sum, sink)

	ans := ask(t, p, "Покажи всі інвойси")

	assert.Equal(t, StateFailed, ans.State)
	require.Len(t, ans.Results, 1)
	assert.Contains(t, ans.Results[0]["error"], "connection refused")
	assert.Zero(t, sum.calls)
	require.Len(t, sink.questions, 1)
	assert.Equal(t, "list/failed", sink.questions[0])
}

// Summarizer failure degrades to an empty answer text; the answer is
// still terminal Answered with full results attached.
func TestPipeline_SummarizerFailureDegrades(t *testing.T) {
	store := &fakeQuerier{result: &model.QueryResult{
		Rows:     []model.Row{{"invoice_number": "INV-1"}},
		RowCount: 1,
	}}
	sum := &fakeSummarizer{err: eris.New("anthropic: over capacity")}
	sink := &fakeSink{}
	p := newTestPipeline(store, sum, sink)

	ans := ask(t, p, "List invoices from Zoom")

	assert.Equal(t, StateAnswered, ans.State)
	assert.Empty(t, ans.AnswerText)
	assert.Equal(t, 1, ans.RowCount)
	assert.Equal(t, 1, sink.summarizerFailures)
}

// A stacked second statement is rejected before anything reaches the
// store. The synthesizer never emits one; this pins the guard contract
// the pipeline relies on.
func TestGuardQuery_RejectsStackedStatement(t *testing.T) {
	verdict := GuardQuery("SELECT * FROM invoices; DROP TABLE invoices")
	assert.False(t, verdict.Allowed)
	assert.Equal(t, "query contains banned token DROP", verdict.Reason)
}

func TestPipeline_AnswerAlwaysPopulated(t *testing.T) {
	questions := []string{
		"",
		"Яка сума інвойсів?",
		"top 200 vendors",
		"invoices from Zoom for 2024",
	}
	store := &fakeQuerier{result: &model.QueryResult{Rows: []model.Row{}}}
	p := newTestPipeline(store, &fakeSummarizer{}, &fakeSink{})

	for _, q := range questions {
		ans := ask(t, p, q)
		require.NotNil(t, ans, "question %q", q)
		assert.NotEmpty(t, ans.ID)
		assert.NotEmpty(t, ans.State)
		assert.NotNil(t, ans.Results)
		assert.False(t, ans.Timestamp.IsZero())
	}
}
