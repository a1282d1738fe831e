// Package reporting renders query-log quality reports for humans.
package reporting

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

const (
	sheetSummary   = "Summary"
	sheetNegative  = "Negative Feedback"
	sheetZero      = "Zero Retrieval"
	sheetSlowest   = "Slow Queries"
	sheetToolUsage = "Tool Usage"
	sheetErrors    = "Errors"

	questionColWidth = 60
)

// WriteWorkbook exports the report as an XLSX workbook, one sheet per
// report section.
func WriteWorkbook(report *domain.QualityReport, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSummary(f, report); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}

	sections := []struct {
		sheet   string
		headers []string
		rows    [][]any
	}{
		{sheetNegative, []string{"Question", "Feedback Note", "Model", "Latency (ms)", "Created"}, negativeRows(report.Negative)},
		{sheetZero, []string{"Question", "Model", "Latency (ms)", "Created"}, queryRows(report.ZeroRetrieval)},
		{sheetSlowest, []string{"Question", "Model", "Latency (ms)", "Created"}, queryRows(report.Slowest)},
		{sheetToolUsage, []string{"Tool", "Calls"}, toolRows(report.ToolUsage)},
		{sheetErrors, []string{"Question", "Error", "Model", "Latency (ms)", "Created"}, errorRows(report.Errors)},
	}
	for _, section := range sections {
		if err := writeSection(f, section.sheet, section.headers, section.rows); err != nil {
			return fmt.Errorf("%s sheet: %w", section.sheet, err)
		}
	}

	return f.SaveAs(path)
}

func writeSummary(f *excelize.File, report *domain.QualityReport) error {
	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return err
	}
	rows := [][]any{
		{"Metric", "Value"},
		{"Window (days)", report.Days},
		{"Total queries", report.Summary.TotalQueries},
		{"Positive feedback", report.Summary.Positive},
		{"Negative feedback", report.Summary.Negative},
		{"No feedback", report.Summary.NoFeedback},
		{"Zero retrieval", report.Summary.ZeroRetrieval},
		{"Errors", report.Summary.Errors},
		{"Avg latency (ms)", report.Summary.AvgLatencyMS},
		{"P95 latency (ms)", report.Summary.P95LatencyMS},
		{"Total cost (USD)", report.Summary.TotalCostUSD},
	}
	if err := writeRows(f, sheetSummary, rows); err != nil {
		return err
	}
	return f.SetColWidth(sheetSummary, "A", "A", 24)
}

func writeSection(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := writeRows(f, sheet, append([][]any{header}, rows...)); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", "A", questionColWidth)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func negativeRows(queries []domain.ReportQuery) [][]any {
	rows := make([][]any, 0, len(queries))
	for _, q := range queries {
		rows = append(rows, []any{q.Question, q.FeedbackNote, q.Model, q.LatencyMS, formatTime(q.CreatedAt)})
	}
	return rows
}

func queryRows(queries []domain.ReportQuery) [][]any {
	rows := make([][]any, 0, len(queries))
	for _, q := range queries {
		rows = append(rows, []any{q.Question, q.Model, q.LatencyMS, formatTime(q.CreatedAt)})
	}
	return rows
}

func errorRows(queries []domain.ReportQuery) [][]any {
	rows := make([][]any, 0, len(queries))
	for _, q := range queries {
		rows = append(rows, []any{q.Question, q.Error, q.Model, q.LatencyMS, formatTime(q.CreatedAt)})
	}
	return rows
}

func toolRows(usage []domain.ToolUsageRow) [][]any {
	rows := make([][]any, 0, len(usage))
	for _, row := range usage {
		rows = append(rows, []any{row.Tool, row.Calls})
	}
	return rows
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
