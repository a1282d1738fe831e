package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

func newChunkRepoWithMock(t *testing.T) (*ChunkRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ChunkRepository{db: db}, mock, func() { _ = db.Close() }
}

func retrievalColumns() []string {
	return []string{"id", "content", "section_title", "tax_year", "url", "title", "source_type", "score"}
}

func TestIndexChunksUpsertsSourceAndReplacesChunks(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	crawledAt := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	src := &domain.DocumentSource{
		URL:           "https://www.ird.govt.nz/income-tax-rates",
		SourceType:    domain.SourceIRDGuidance,
		Title:         "Tax rates for individuals",
		ContentHash:   "hash-1",
		LastCrawledAt: &crawledAt,
	}
	chunks := []domain.ChunkData{
		{Content: "first chunk", ChunkIndex: 0, SectionTitle: "Rates"},
		{Content: "second chunk", ChunkIndex: 1, TaxYear: "2025-26"},
	}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO document_sources").
		WithArgs(src.URL, "ird_guidance", src.Title, "hash-1", crawledAt, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("00000000-0000-0000-0000-000000000001"))
	mock.ExpectExec("DELETE FROM document_chunks").
		WithArgs("00000000-0000-0000-0000-000000000001").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs("00000000-0000-0000-0000-000000000001", 0, "first chunk", "Rates", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs("00000000-0000-0000-0000-000000000001", 1, "second chunk", nil, "2025-26", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.IndexChunks(context.Background(), src, chunks, vectors); err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIndexChunksRejectsVectorCountMismatch(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	src := &domain.DocumentSource{URL: "https://www.ird.govt.nz/x", SourceType: domain.SourceIRDGuidance}
	err := repo.IndexChunks(context.Background(), src, []domain.ChunkData{{Content: "a"}}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIndexChunksRollsBackOnInsertFailure(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	src := &domain.DocumentSource{URL: "https://www.ird.govt.nz/x", SourceType: domain.SourceIRDGuidance}
	chunks := []domain.ChunkData{{Content: "a", ChunkIndex: 0}}
	vectors := [][]float32{{0.1}}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO document_sources").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("00000000-0000-0000-0000-000000000002"))
	mock.ExpectExec("DELETE FROM document_chunks").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO document_chunks").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.IndexChunks(context.Background(), src, chunks, vectors)
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchSemanticConvertsDistanceToScore(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows(retrievalColumns()).
		AddRow("00000000-0000-0000-0000-00000000000a", "PAYE is deducted by employers.", "PAYE basics", nil, "https://www.ird.govt.nz/paye", "PAYE guide", "ird_guidance", 0.25)
	mock.ExpectQuery(`ORDER BY c\.embedding <=> \$1`).
		WithArgs(sqlmock.AnyArg(), 5).
		WillReturnRows(rows)

	results, err := repo.SearchSemantic(context.Background(), []float32{0.1, 0.2}, 5, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("SearchSemantic() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Score != 0.75 {
		t.Fatalf("expected score 0.75, got %v", results[0].Score)
	}
	if results[0].SourceURL != "https://www.ird.govt.nz/paye" {
		t.Fatalf("unexpected source url %q", results[0].SourceURL)
	}
	if results[0].ChunkID != "00000000-0000-0000-0000-00000000000a" {
		t.Fatalf("expected chunk id carried, got %q", results[0].ChunkID)
	}
	if results[0].TaxYear != "" {
		t.Fatalf("expected empty tax year, got %q", results[0].TaxYear)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchSemanticAppliesFilters(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	mock.ExpectQuery(`s\.source_type = \$3 AND c\.tax_year = \$4`).
		WithArgs(sqlmock.AnyArg(), 3, "tib", "2024-25").
		WillReturnRows(sqlmock.NewRows(retrievalColumns()))

	filter := domain.SearchFilter{SourceType: domain.SourceTIB, TaxYear: "2024-25"}
	results, err := repo.SearchSemantic(context.Background(), []float32{0.5}, 3, filter)
	if err != nil {
		t.Fatalf("SearchSemantic() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchLexicalUsesTextRank(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows(retrievalColumns()).
		AddRow("00000000-0000-0000-0000-00000000000b", "Provisional tax instalments.", nil, "2025-26", "https://www.ird.govt.nz/provisional-tax", nil, "ird_guidance", 0.61)
	mock.ExpectQuery(`ts_rank_cd\(c\.search_vector, plainto_tsquery\('english', \$1\)\)`).
		WithArgs("provisional tax", 5).
		WillReturnRows(rows)

	results, err := repo.SearchLexical(context.Background(), "provisional tax", 5, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("SearchLexical() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Score != 0.61 {
		t.Fatalf("expected score 0.61, got %v", results[0].Score)
	}
	if results[0].SourceTitle != "" {
		t.Fatalf("expected empty source title, got %q", results[0].SourceTitle)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
