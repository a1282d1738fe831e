package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// IndexChunks upserts the source row and replaces its chunks in a single
// transaction. identifier and issue_date only gain values on conflict, so a
// re-crawl of a plain HTML page cannot erase metadata extracted earlier.
func (r *ChunkRepository) IndexChunks(ctx context.Context, src *domain.DocumentSource, chunks []domain.ChunkData, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("index chunks: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	crawledAt := time.Now().UTC()
	if src.LastCrawledAt != nil {
		crawledAt = *src.LastCrawledAt
	}

	var sourceID string
	err = tx.QueryRowContext(ctx, `
INSERT INTO document_sources (url, source_type, title, content_hash, last_crawled_at, identifier, issue_date)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (url) DO UPDATE SET
	title = EXCLUDED.title,
	content_hash = EXCLUDED.content_hash,
	last_crawled_at = EXCLUDED.last_crawled_at,
	identifier = COALESCE(EXCLUDED.identifier, document_sources.identifier),
	issue_date = COALESCE(EXCLUDED.issue_date, document_sources.issue_date),
	updated_at = NOW()
RETURNING id
`,
		src.URL, string(src.SourceType), nullString(src.Title), nullString(src.ContentHash),
		crawledAt, nullString(src.Identifier), nullTime(src.IssueDate),
	).Scan(&sourceID)
	if err != nil {
		return fmt.Errorf("upsert source: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE source_id = $1::uuid`, sourceID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	for i, chunk := range chunks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO document_chunks (source_id, chunk_index, content, section_title, tax_year, embedding)
VALUES ($1::uuid,$2,$3,$4,$5,$6)
`,
			sourceID, chunk.ChunkIndex, chunk.Content,
			nullString(chunk.SectionTitle), nullString(chunk.TaxYear), pgvector.NewVector(vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) SearchSemantic(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.RetrievalResult, error) {
	conds := []string{"s.is_active = TRUE", "s.superseded_by IS NULL"}
	args := []any{pgvector.NewVector(queryVector), limit}
	next := 3
	if filter.SourceType != "" {
		conds = append(conds, fmt.Sprintf("s.source_type = $%d", next))
		args = append(args, string(filter.SourceType))
		next++
	}
	if filter.TaxYear != "" {
		conds = append(conds, fmt.Sprintf("c.tax_year = $%d", next))
		args = append(args, filter.TaxYear)
	}

	query := fmt.Sprintf(`
SELECT c.id, c.content, c.section_title, c.tax_year, s.url, s.title, s.source_type,
	c.embedding <=> $1 AS distance
FROM document_chunks c
JOIN document_sources s ON s.id = c.source_id
WHERE %s
ORDER BY c.embedding <=> $1
LIMIT $2
`, strings.Join(conds, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	defer rows.Close()

	var results []domain.RetrievalResult
	for rows.Next() {
		var (
			res      domain.RetrievalResult
			section  sql.NullString
			taxYear  sql.NullString
			title    sql.NullString
			srcType  string
			distance float64
		)
		if err := rows.Scan(&res.ChunkID, &res.Content, &section, &taxYear, &res.SourceURL, &title, &srcType, &distance); err != nil {
			return nil, fmt.Errorf("scan semantic row: %w", err)
		}
		res.SectionTitle = section.String
		res.TaxYear = taxYear.String
		res.SourceTitle = title.String
		res.SourceType = domain.SourceType(srcType)
		// <=> is cosine distance; flip to similarity.
		res.Score = 1.0 - distance
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate semantic rows: %w", err)
	}
	return results, nil
}

func (r *ChunkRepository) SearchLexical(ctx context.Context, queryText string, limit int, filter domain.SearchFilter) ([]domain.RetrievalResult, error) {
	conds := []string{
		"c.search_vector @@ plainto_tsquery('english', $1)",
		"s.is_active = TRUE",
		"s.superseded_by IS NULL",
	}
	args := []any{queryText, limit}
	next := 3
	if filter.SourceType != "" {
		conds = append(conds, fmt.Sprintf("s.source_type = $%d", next))
		args = append(args, string(filter.SourceType))
		next++
	}
	if filter.TaxYear != "" {
		conds = append(conds, fmt.Sprintf("c.tax_year = $%d", next))
		args = append(args, filter.TaxYear)
	}

	query := fmt.Sprintf(`
SELECT c.id, c.content, c.section_title, c.tax_year, s.url, s.title, s.source_type,
	ts_rank_cd(c.search_vector, plainto_tsquery('english', $1)) AS rank
FROM document_chunks c
JOIN document_sources s ON s.id = c.source_id
WHERE %s
ORDER BY rank DESC
LIMIT $2
`, strings.Join(conds, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var results []domain.RetrievalResult
	for rows.Next() {
		var (
			res     domain.RetrievalResult
			section sql.NullString
			taxYear sql.NullString
			title   sql.NullString
			srcType string
			rank    float64
		)
		if err := rows.Scan(&res.ChunkID, &res.Content, &section, &taxYear, &res.SourceURL, &title, &srcType, &rank); err != nil {
			return nil, fmt.Errorf("scan lexical row: %w", err)
		}
		res.SectionTitle = section.String
		res.TaxYear = taxYear.String
		res.SourceTitle = title.String
		res.SourceType = domain.SourceType(srcType)
		res.Score = rank
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexical rows: %w", err)
	}
	return results, nil
}
