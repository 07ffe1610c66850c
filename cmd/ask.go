package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-analytics/internal/analytics"
	"github.com/sells-group/invoice-analytics/internal/model"
	"github.com/sells-group/invoice-analytics/internal/monitoring"
)

var askFormat string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single analytics question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "query", monitoring.NopSink{})
		if err != nil {
			return err
		}
		defer env.Close()

		ans := env.Pipeline.Answer(ctx, model.NewQuestion(args[0]))

		zap.L().Info("question processed",
			zap.String("state", ans.State),
			zap.Int("rows", ans.RowCount),
		)

		if askFormat == "text" {
			fmt.Println(renderAnswerText(ans))
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ans)
	},
}

// renderAnswerText picks the most useful line for plain-text output.
func renderAnswerText(ans *model.AnalyticsAnswer) string {
	switch ans.State {
	case analytics.StateRejected:
		return "rejected: " + ans.Reason
	case analytics.StateFailed:
		return "query failed"
	default:
		if ans.AnswerText != "" {
			return ans.AnswerText
		}
		return fmt.Sprintf("%d row(s), no summary available", ans.RowCount)
	}
}

func init() {
	askCmd.Flags().StringVar(&askFormat, "format", "json", "output format: json or text")
	rootCmd.AddCommand(askCmd)
}
