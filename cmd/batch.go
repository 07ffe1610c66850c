package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/invoice-analytics/internal/analytics"
	"github.com/sells-group/invoice-analytics/internal/model"
	"github.com/sells-group/invoice-analytics/internal/monitoring"
)

var batchFile string

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Answer questions from a file concurrently",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		questions, err := readQuestions(batchFile)
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			zap.L().Info("no questions found", zap.String("file", batchFile))
			return nil
		}

		env, err := initPipeline(ctx, "query", monitoring.NopSink{})
		if err != nil {
			return err
		}
		defer env.Close()

		answers := processQuestions(ctx, questions, cfg.Batch.MaxConcurrentQuestions, env.Pipeline.Answer)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(answers)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "path to questions file, one per line (required)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// readQuestions loads one question per line, skipping blank lines and
// lines starting with #.
func readQuestions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open questions file %s", path)
	}
	defer f.Close()

	var questions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "batch: read questions file %s", path)
	}
	return questions, nil
}

// answerFunc is the callback signature for answering one question.
type answerFunc func(ctx context.Context, q model.Question) *model.AnalyticsAnswer

// processQuestions answers all questions concurrently, bounded by the
// concurrency limit. Answers come back in input order; individual
// failures are carried inside the answer and never abort the batch.
func processQuestions(ctx context.Context, questions []string, concurrency int, answer answerFunc) []*model.AnalyticsAnswer {
	zap.L().Info("processing batch",
		zap.Int("questions", len(questions)),
		zap.Int("concurrency", concurrency),
	)

	answers := make([]*model.AnalyticsAnswer, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, text := range questions {
		g.Go(func() error {
			answers[i] = answer(gctx, model.NewQuestion(text))
			return nil
		})
	}
	_ = g.Wait()

	var answered, rejected, failed int
	for _, ans := range answers {
		switch ans.State {
		case analytics.StateAnswered:
			answered++
		case analytics.StateRejected:
			rejected++
		case analytics.StateFailed:
			failed++
		}
	}
	zap.L().Info("batch complete",
		zap.Int("answered", answered),
		zap.Int("rejected", rejected),
		zap.Int("failed", failed),
	)
	return answers
}
