package model

import "time"

// Row is one result row as a column → scalar mapping. Column order is
// carried by QueryResult.Columns.
type Row map[string]any

// QueryResult holds the typed tabular output of one executed query.
// Immutable once produced. A non-empty Error marks a caught execution
// failure; Columns and Rows are empty in that case but the shape is
// preserved so every terminal path stays reportable.
type QueryResult struct {
	Columns  []string `json:"columns"`
	Rows     []Row    `json:"rows"`
	RowCount int      `json:"row_count"`
	Error    string   `json:"error,omitempty"`
}

// AnalyticsAnswer is the externally visible artifact of one pipeline run.
// SQLQuery and Results are populated on every terminal path; AnswerText
// may be empty when the summarization collaborator is unavailable.
type AnalyticsAnswer struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Language   string    `json:"language"`
	State      string    `json:"state"`
	SQLQuery   string    `json:"sql_query"`
	Results    []Row     `json:"results"`
	RowCount   int       `json:"row_count"`
	AnswerText string    `json:"answer"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
