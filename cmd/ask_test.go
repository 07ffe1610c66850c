package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/invoice-analytics/internal/analytics"
	"github.com/sells-group/invoice-analytics/internal/model"
)

func TestRenderAnswerText(t *testing.T) {
	tests := []struct {
		name string
		ans  model.AnalyticsAnswer
		want string
	}{
		{
			name: "answered with summary",
			ans:  model.AnalyticsAnswer{State: analytics.StateAnswered, AnswerText: "Загальна сума 7500 UAH."},
			want: "Загальна сума 7500 UAH.",
		},
		{
			name: "answered without summary",
			ans:  model.AnalyticsAnswer{State: analytics.StateAnswered, RowCount: 3},
			want: "3 row(s), no summary available",
		},
		{
			name: "rejected",
			ans:  model.AnalyticsAnswer{State: analytics.StateRejected, Reason: "only SELECT queries are allowed"},
			want: "rejected: only SELECT queries are allowed",
		},
		{
			name: "failed",
			ans:  model.AnalyticsAnswer{State: analytics.StateFailed},
			want: "query failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderAnswerText(&tt.ans))
		})
	}
}
