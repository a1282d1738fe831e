package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

type QueryLogRepository struct {
	db *sql.DB
}

func NewQueryLogRepository(db *sql.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

func (r *QueryLogRepository) InsertQuery(ctx context.Context, rec *domain.QueryRecord) (string, error) {
	toolCalls := []byte("[]")
	if len(rec.ToolCalls) > 0 {
		var err error
		toolCalls, err = json.Marshal(rec.ToolCalls)
		if err != nil {
			return "", fmt.Errorf("marshal tool calls: %w", err)
		}
	}
	chunkIDs := "{" + strings.Join(rec.ChunkIDs, ",") + "}"

	var id string
	err := r.db.QueryRowContext(ctx, `
INSERT INTO query_log (question, answer, model_used, latency_ms, tool_calls, chunks_used, cost_usd, error_message)
VALUES ($1,$2,$3,$4,$5::jsonb,$6::uuid[],$7,$8)
RETURNING id
`,
		rec.Question, rec.Answer, rec.Model, rec.LatencyMS,
		string(toolCalls), chunkIDs, nullFloat(rec.CostUSD), nullString(rec.Error),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert query log: %w", err)
	}
	return id, nil
}

func (r *QueryLogRepository) UpdateFeedback(ctx context.Context, queryID string, feedback domain.Feedback, note string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE query_log
SET feedback = $2, feedback_note = $3
WHERE id = $1::uuid
`, queryID, string(feedback), nullString(note))
	if err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("feedback rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "update feedback", fmt.Errorf("no query %s", queryID))
	}
	return nil
}

func (r *QueryLogRepository) Stats(ctx context.Context) (*domain.QueryStats, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*) AS total_queries,
	COUNT(*) FILTER (WHERE created_at > NOW() - INTERVAL '1 hour') AS queries_last_hour,
	COALESCE(ROUND(AVG(latency_ms)), 0)::int AS avg_latency_ms,
	COUNT(*) FILTER (WHERE feedback = 'positive') AS positive_feedback,
	COUNT(*) FILTER (WHERE feedback = 'negative') AS negative_feedback,
	COUNT(*) FILTER (WHERE error_message IS NOT NULL) AS error_count
FROM query_log
`)

	var stats domain.QueryStats
	err := row.Scan(
		&stats.TotalQueries, &stats.QueriesLastHour, &stats.AvgLatencyMS,
		&stats.PositiveFeedback, &stats.NegativeFeedback, &stats.ErrorCount,
	)
	if err != nil {
		return nil, fmt.Errorf("scan query stats: %w", err)
	}
	return &stats, nil
}

// Report aggregates quality signals over the last N days: feedback counts,
// zero-retrieval and slow queries, tool usage and recent errors.
func (r *QueryLogRepository) Report(ctx context.Context, days int) (*domain.QualityReport, error) {
	report := &domain.QualityReport{Days: days}

	row := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*) AS total_queries,
	COUNT(*) FILTER (WHERE feedback = 'positive') AS positive,
	COUNT(*) FILTER (WHERE feedback = 'negative') AS negative,
	COUNT(*) FILTER (WHERE feedback IS NULL) AS no_feedback,
	COUNT(*) FILTER (WHERE chunks_used = '{}') AS zero_retrieval,
	COUNT(*) FILTER (WHERE error_message IS NOT NULL) AS errors,
	COALESCE(ROUND(AVG(latency_ms)), 0)::int AS avg_latency_ms,
	COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY latency_ms), 0) AS p95_latency_ms,
	COALESCE(ROUND(SUM(COALESCE(cost_usd, 0))::numeric, 4), 0)::float8 AS total_cost_usd
FROM query_log
WHERE created_at > NOW() - make_interval(days => $1)
`, days)

	var p95 float64
	err := row.Scan(
		&report.Summary.TotalQueries, &report.Summary.Positive, &report.Summary.Negative,
		&report.Summary.NoFeedback, &report.Summary.ZeroRetrieval, &report.Summary.Errors,
		&report.Summary.AvgLatencyMS, &p95, &report.Summary.TotalCostUSD,
	)
	if err != nil {
		return nil, fmt.Errorf("scan report summary: %w", err)
	}
	report.Summary.P95LatencyMS = int(p95)

	report.Negative, err = r.reportNegative(ctx, days)
	if err != nil {
		return nil, err
	}
	report.ZeroRetrieval, err = r.reportZeroRetrieval(ctx, days)
	if err != nil {
		return nil, err
	}
	report.Slowest, err = r.reportSlowest(ctx, days)
	if err != nil {
		return nil, err
	}
	report.ToolUsage, err = r.reportToolUsage(ctx, days)
	if err != nil {
		return nil, err
	}
	report.Errors, err = r.reportErrors(ctx, days)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (r *QueryLogRepository) reportNegative(ctx context.Context, days int) ([]domain.ReportQuery, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT question, answer, feedback_note, latency_ms, created_at
FROM query_log
WHERE feedback = 'negative'
  AND created_at > NOW() - make_interval(days => $1)
ORDER BY created_at DESC
LIMIT 20
`, days)
	if err != nil {
		return nil, fmt.Errorf("query negative feedback: %w", err)
	}
	defer rows.Close()

	var out []domain.ReportQuery
	for rows.Next() {
		var (
			q       domain.ReportQuery
			note    sql.NullString
			latency sql.NullInt64
		)
		if err := rows.Scan(&q.Question, &q.Answer, &note, &latency, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan negative row: %w", err)
		}
		q.FeedbackNote = note.String
		q.LatencyMS = int(latency.Int64)
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *QueryLogRepository) reportZeroRetrieval(ctx context.Context, days int) ([]domain.ReportQuery, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT question, latency_ms, created_at
FROM query_log
WHERE chunks_used = '{}'
  AND created_at > NOW() - make_interval(days => $1)
ORDER BY created_at DESC
LIMIT 20
`, days)
	if err != nil {
		return nil, fmt.Errorf("query zero retrieval: %w", err)
	}
	defer rows.Close()

	var out []domain.ReportQuery
	for rows.Next() {
		var (
			q       domain.ReportQuery
			latency sql.NullInt64
		)
		if err := rows.Scan(&q.Question, &latency, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan zero retrieval row: %w", err)
		}
		q.LatencyMS = int(latency.Int64)
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *QueryLogRepository) reportSlowest(ctx context.Context, days int) ([]domain.ReportQuery, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT question, latency_ms, model_used, created_at
FROM query_log
WHERE created_at > NOW() - make_interval(days => $1)
ORDER BY latency_ms DESC
LIMIT 10
`, days)
	if err != nil {
		return nil, fmt.Errorf("query slowest: %w", err)
	}
	defer rows.Close()

	var out []domain.ReportQuery
	for rows.Next() {
		var (
			q       domain.ReportQuery
			latency sql.NullInt64
		)
		if err := rows.Scan(&q.Question, &latency, &q.Model, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan slowest row: %w", err)
		}
		q.LatencyMS = int(latency.Int64)
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *QueryLogRepository) reportToolUsage(ctx context.Context, days int) ([]domain.ToolUsageRow, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT tool_call->>'name' AS tool_name, COUNT(*) AS call_count
FROM query_log, jsonb_array_elements(tool_calls) AS tool_call
WHERE created_at > NOW() - make_interval(days => $1)
  AND tool_calls IS NOT NULL
  AND tool_calls != '[]'::jsonb
GROUP BY tool_call->>'name'
ORDER BY call_count DESC
`, days)
	if err != nil {
		return nil, fmt.Errorf("query tool usage: %w", err)
	}
	defer rows.Close()

	var out []domain.ToolUsageRow
	for rows.Next() {
		var row domain.ToolUsageRow
		if err := rows.Scan(&row.Tool, &row.Calls); err != nil {
			return nil, fmt.Errorf("scan tool usage row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *QueryLogRepository) reportErrors(ctx context.Context, days int) ([]domain.ReportQuery, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT question, error_message, created_at
FROM query_log
WHERE error_message IS NOT NULL
  AND created_at > NOW() - make_interval(days => $1)
ORDER BY created_at DESC
LIMIT 10
`, days)
	if err != nil {
		return nil, fmt.Errorf("query errors: %w", err)
	}
	defer rows.Close()

	var out []domain.ReportQuery
	for rows.Next() {
		var q domain.ReportQuery
		if err := rows.Scan(&q.Question, &q.Error, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan error row: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
