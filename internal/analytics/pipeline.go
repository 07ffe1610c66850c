package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-analytics/internal/model"
)

// Pipeline states. Every request runs the state machine to exactly one
// terminal state (Answered, Rejected or Failed); there is no retry loop.
const (
	StateParsed      = "parsed"
	StateSynthesized = "synthesized"
	StateGuarded     = "guarded"
	StateExecuted    = "executed"
	StateAnswered    = "answered"
	StateRejected    = "rejected"
	StateFailed      = "failed"
)

// SummaryRequest is the structured payload handed to the summarization
// collaborator.
type SummaryRequest struct {
	Question string
	Language string
	SQLQuery string
	Results  []model.Row
	RowCount int
}

// Summarizer turns tabular results into a short prose answer in the
// question's language. It is an external collaborator: its failure must
// never fail the pipeline.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// MetricsSink receives per-request observations. Injected rather than
// held as package state; callers own its lifecycle.
type MetricsSink interface {
	RecordQuestion(intent, state string, duration time.Duration)
	RecordGuardRejection(reason string)
	RecordSummarizerFailure()
}

// Pipeline sequences the classifier, extractor, synthesizer, guard and
// executor, then hands the result to the summarization collaborator.
// It is stateless across requests; the only shared resource is the
// read-only store connection behind the executor.
type Pipeline struct {
	exec       *Executor
	summarizer Summarizer
	metrics    MetricsSink
	now        func() time.Time
}

// NewPipeline wires the pipeline over a store, a summarizer and a
// metrics sink. Any of summarizer and metrics may be nil-equivalent
// no-op implementations, but not nil.
func NewPipeline(store Querier, summarizer Summarizer, metrics MetricsSink) *Pipeline {
	return &Pipeline{
		exec:       NewExecutor(store),
		summarizer: summarizer,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Answer runs the full state machine for one question and always
// returns an AnalyticsAnswer: guard rejections and execution failures
// are reported inside the answer, never raised.
func (p *Pipeline) Answer(ctx context.Context, q model.Question) *model.AnalyticsAnswer {
	start := p.now()
	log := zap.L().With(zap.String("question", q.Text))

	ans := &model.AnalyticsAnswer{
		ID:        uuid.New().String(),
		Question:  q.Text,
		Language:  q.Language,
		Results:   []model.Row{},
		Timestamp: start.UTC(),
	}

	intent := ClassifyIntent(q.Text)
	entities := ExtractEntities(q.Text, start)
	ans.State = StateParsed

	defer func() {
		p.metrics.RecordQuestion(string(intent.Kind), ans.State, p.now().Sub(start))
	}()

	candidate := Synthesize(intent, entities)
	ans.SQLQuery = candidate.SQL()
	ans.State = StateSynthesized

	verdict := GuardQuery(ans.SQLQuery)
	if !verdict.Allowed {
		ans.State = StateRejected
		ans.Reason = verdict.Reason
		p.metrics.RecordGuardRejection(verdict.Reason)
		log.Warn("pipeline: query rejected by guard",
			zap.String("sql", ans.SQLQuery),
			zap.String("reason", verdict.Reason),
		)
		return ans
	}
	ans.State = StateGuarded

	result := p.exec.Execute(ctx, ans.SQLQuery, candidate.Args)
	if result.Error != "" {
		ans.State = StateFailed
		ans.Results = []model.Row{{"error": result.Error}}
		return ans
	}
	ans.State = StateExecuted
	if result.Rows != nil {
		ans.Results = result.Rows
	}
	ans.RowCount = result.RowCount

	text, err := p.summarizer.Summarize(ctx, SummaryRequest{
		Question: q.Text,
		Language: q.Language,
		SQLQuery: ans.SQLQuery,
		Results:  result.Rows,
		RowCount: result.RowCount,
	})
	if err != nil {
		p.metrics.RecordSummarizerFailure()
		log.Warn("pipeline: summarizer unavailable", zap.Error(err))
		text = ""
	}
	ans.AnswerText = text
	ans.State = StateAnswered

	log.Info("pipeline: question answered",
		zap.String("intent", string(intent.Kind)),
		zap.Int("rows", ans.RowCount),
		zap.Duration("duration", p.now().Sub(start)),
	)
	return ans
}
