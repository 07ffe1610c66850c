package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-analytics/internal/analytics"
	"github.com/sells-group/invoice-analytics/internal/store"
	"github.com/sells-group/invoice-analytics/internal/summarize"
	anthropicpkg "github.com/sells-group/invoice-analytics/pkg/anthropic"
)

// pipelineEnv holds the initialized store and pipeline needed by the
// ask/batch/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *analytics.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, picks a summarizer, and builds the
// question pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string, sink analytics.MetricsSink) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	return &pipelineEnv{
		Store:    st,
		Pipeline: analytics.NewPipeline(st, initSummarizer(), sink),
	}, nil
}

// initSummarizer picks the Anthropic-backed summarizer when summarization
// is enabled and a key is configured, otherwise the deterministic template.
func initSummarizer() analytics.Summarizer {
	if cfg.Analytics.SummarizeAnswers && cfg.Anthropic.Key != "" {
		return summarize.NewAnthropicSummarizer(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic)
	}
	zap.L().Info("answer summarization disabled, using template answers")
	return summarize.TemplateSummarizer{}
}
