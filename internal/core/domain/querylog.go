package domain

import "time"

type Feedback string

const (
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
)

func ValidFeedback(f Feedback) bool {
	return f == FeedbackPositive || f == FeedbackNegative
}

// QueryRecord is one answered question persisted for evaluation and
// improvement. Written best-effort; the answer path never fails on it.
type QueryRecord struct {
	ID        string           `json:"id"`
	Question  string           `json:"question"`
	Answer    string           `json:"answer"`
	Model     string           `json:"model_used"`
	LatencyMS int              `json:"latency_ms"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
	ChunkIDs  []string         `json:"chunks_used,omitempty"`
	CostUSD   float64          `json:"cost_usd,omitempty"`
	Error     string           `json:"error_message,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type QueryStats struct {
	TotalQueries     int `json:"total_queries"`
	QueriesLastHour  int `json:"queries_last_hour"`
	AvgLatencyMS     int `json:"avg_latency_ms"`
	PositiveFeedback int `json:"positive_feedback"`
	NegativeFeedback int `json:"negative_feedback"`
	ErrorCount       int `json:"error_count"`
}

// QualityReport aggregates query-log signals over a reporting window.
type QualityReport struct {
	Days          int            `json:"days"`
	Summary       ReportSummary  `json:"summary"`
	Negative      []ReportQuery  `json:"negative_queries"`
	ZeroRetrieval []ReportQuery  `json:"zero_retrieval"`
	Slowest       []ReportQuery  `json:"slow_queries"`
	ToolUsage     []ToolUsageRow `json:"tool_usage"`
	Errors        []ReportQuery  `json:"errors"`
}

type ReportSummary struct {
	TotalQueries  int     `json:"total_queries"`
	Positive      int     `json:"positive"`
	Negative      int     `json:"negative"`
	NoFeedback    int     `json:"no_feedback"`
	ZeroRetrieval int     `json:"zero_retrieval"`
	Errors        int     `json:"errors"`
	AvgLatencyMS  int     `json:"avg_latency_ms"`
	P95LatencyMS  int     `json:"p95_latency_ms"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
}

type ReportQuery struct {
	Question     string    `json:"question"`
	Answer       string    `json:"answer,omitempty"`
	FeedbackNote string    `json:"feedback_note,omitempty"`
	Error        string    `json:"error_message,omitempty"`
	Model        string    `json:"model_used,omitempty"`
	LatencyMS    int       `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

type ToolUsageRow struct {
	Tool  string `json:"tool_name"`
	Calls int    `json:"call_count"`
}
