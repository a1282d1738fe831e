package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mkaretu/nz-tax-assistant/internal/core/tax"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates tables, indexes and rate seed rows if missing.
// Safe to call on every startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026032001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := seedTaxTables(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS document_sources (
	id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	url             TEXT UNIQUE NOT NULL,
	source_type     TEXT NOT NULL CHECK (source_type IN (
	                    'ird_guidance', 'legislation', 'tib',
	                    'guide_pdf', 'interpretation_statement',
	                    'qwba', 'fact_sheet', 'operational_statement'
	                )),
	title           TEXT,
	last_crawled_at TIMESTAMPTZ,
	content_hash    TEXT,
	is_active       BOOLEAN DEFAULT TRUE,
	identifier      TEXT,
	issue_date      DATE,
	superseded_by   TEXT,
	created_at      TIMESTAMPTZ DEFAULT NOW(),
	updated_at      TIMESTAMPTZ DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_document_sources_identifier
	ON document_sources (identifier) WHERE identifier IS NOT NULL;

CREATE TABLE IF NOT EXISTS document_chunks (
	id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	source_id       UUID NOT NULL REFERENCES document_sources(id) ON DELETE CASCADE,
	chunk_index     INTEGER NOT NULL,
	content         TEXT NOT NULL,
	section_id      TEXT,
	section_title   TEXT,
	tax_year        TEXT,
	parent_chunk_id UUID REFERENCES document_chunks(id),
	embedding       vector(768),
	search_vector   tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED,
	created_at      TIMESTAMPTZ DEFAULT NOW(),
	UNIQUE (source_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON document_chunks
	USING hnsw (embedding vector_cosine_ops) WITH (m = 16, ef_construction = 64);
CREATE INDEX IF NOT EXISTS idx_chunks_search ON document_chunks USING gin (search_vector);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON document_chunks (source_id);
CREATE INDEX IF NOT EXISTS idx_chunks_section ON document_chunks (section_id) WHERE section_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_chunks_tax_year ON document_chunks (tax_year) WHERE tax_year IS NOT NULL;

CREATE TABLE IF NOT EXISTS query_log (
	id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	question        TEXT NOT NULL,
	answer          TEXT NOT NULL,
	model_used      TEXT NOT NULL,
	chunks_used     UUID[] DEFAULT '{}',
	tool_calls      JSONB DEFAULT '[]',
	latency_ms      INTEGER,
	feedback        TEXT CHECK (feedback IN ('positive', 'negative')),
	feedback_note   TEXT,
	cost_usd        NUMERIC(10, 6),
	error_message   TEXT,
	created_at      TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tax_years (
	id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	year_label       TEXT NOT NULL UNIQUE,
	start_date       DATE NOT NULL,
	end_date         DATE NOT NULL,
	acc_rate         NUMERIC(6, 4) NOT NULL,
	acc_max_earnings NUMERIC(12, 2) NOT NULL,
	sl_threshold     NUMERIC(12, 2) NOT NULL,
	sl_rate          NUMERIC(4, 2) NOT NULL,
	created_at       TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tax_brackets (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	tax_year_id UUID NOT NULL REFERENCES tax_years(id) ON DELETE CASCADE,
	lower_bound NUMERIC(12, 2) NOT NULL,
	upper_bound NUMERIC(12, 2),
	rate        NUMERIC(6, 4) NOT NULL,
	sort_order  INTEGER NOT NULL,
	created_at  TIMESTAMPTZ DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tax_brackets_year ON tax_brackets (tax_year_id, sort_order);
`

// NZ tax years run 1 April to 31 March.
var taxYearDates = map[string][2]time.Time{
	"2023-24": {time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)},
	"2024-25": {time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)},
	"2025-26": {time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)},
}

// seedTaxTables mirrors the in-code rate schedules into tax_years and
// tax_brackets. Years are upserted and brackets rewritten per year, so
// re-running after a rate change converges on the current schedule.
func seedTaxTables(ctx context.Context, tx *sql.Tx) error {
	for _, label := range tax.YearLabels() {
		data := tax.Years[label]
		dates, ok := taxYearDates[label]
		if !ok {
			return fmt.Errorf("seed tax year %s: no start/end dates", label)
		}

		var yearID string
		err := tx.QueryRowContext(ctx, `
INSERT INTO tax_years (year_label, start_date, end_date, acc_rate, acc_max_earnings, sl_threshold, sl_rate)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (year_label) DO UPDATE SET
	acc_rate = EXCLUDED.acc_rate,
	acc_max_earnings = EXCLUDED.acc_max_earnings,
	sl_threshold = EXCLUDED.sl_threshold,
	sl_rate = EXCLUDED.sl_rate
RETURNING id
`,
			label, dates[0], dates[1],
			data.ACC.Rate, data.ACC.MaxLiableEarnings,
			data.StudentLoan.AnnualThreshold, data.StudentLoan.RepaymentRate,
		).Scan(&yearID)
		if err != nil {
			return fmt.Errorf("seed tax year %s: %w", label, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM tax_brackets WHERE tax_year_id = $1::uuid`, yearID); err != nil {
			return fmt.Errorf("clear tax brackets %s: %w", label, err)
		}

		for i, b := range data.Brackets {
			var upper any
			if b.Upper > 0 {
				upper = b.Upper
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO tax_brackets (tax_year_id, lower_bound, upper_bound, rate, sort_order)
VALUES ($1::uuid,$2,$3,$4,$5)
`, yearID, b.Lower, upper, b.Rate, i); err != nil {
				return fmt.Errorf("seed tax bracket %s/%d: %w", label, i, err)
			}
		}
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullFloat(v float64) any {
	if v == 0 {
		return nil
	}
	return v
}
