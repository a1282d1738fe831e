package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

type SourceRepository struct {
	db *sql.DB
}

func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func (r *SourceRepository) GetByURL(ctx context.Context, url string) (*domain.DocumentSource, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, url, source_type, title, last_crawled_at, content_hash, identifier, issue_date, superseded_by, is_active, created_at, updated_at
FROM document_sources
WHERE url = $1
`, url)

	var (
		src          domain.DocumentSource
		sourceType   string
		title        sql.NullString
		lastCrawled  sql.NullTime
		contentHash  sql.NullString
		identifier   sql.NullString
		issueDate    sql.NullTime
		supersededBy sql.NullString
	)
	err := row.Scan(
		&src.ID, &src.URL, &sourceType, &title, &lastCrawled, &contentHash,
		&identifier, &issueDate, &supersededBy, &src.IsActive, &src.CreatedAt, &src.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get source by url", fmt.Errorf("no source for %s", url))
		}
		return nil, fmt.Errorf("scan source: %w", err)
	}

	src.SourceType = domain.SourceType(sourceType)
	src.Title = title.String
	if lastCrawled.Valid {
		t := lastCrawled.Time
		src.LastCrawledAt = &t
	}
	src.ContentHash = contentHash.String
	src.Identifier = identifier.String
	if issueDate.Valid {
		t := issueDate.Time
		src.IssueDate = &t
	}
	src.SupersededBy = supersededBy.String
	return &src, nil
}
