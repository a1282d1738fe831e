package domain

import "time"

type SourceType string

const (
	SourceIRDGuidance             SourceType = "ird_guidance"
	SourceLegislation             SourceType = "legislation"
	SourceTIB                     SourceType = "tib"
	SourceGuidePDF                SourceType = "guide_pdf"
	SourceInterpretationStatement SourceType = "interpretation_statement"
	SourceQWBA                    SourceType = "qwba"
	SourceFactSheet               SourceType = "fact_sheet"
	SourceOperationalStatement    SourceType = "operational_statement"
)

// ValidSourceType reports whether s is one of the known source types.
func ValidSourceType(s SourceType) bool {
	switch s {
	case SourceIRDGuidance, SourceLegislation, SourceTIB, SourceGuidePDF,
		SourceInterpretationStatement, SourceQWBA, SourceFactSheet,
		SourceOperationalStatement:
		return true
	}
	return false
}

type DocumentSource struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	SourceType    SourceType `json:"source_type"`
	Title         string     `json:"title,omitempty"`
	LastCrawledAt *time.Time `json:"last_crawled_at,omitempty"`
	ContentHash   string     `json:"content_hash,omitempty"`
	Identifier    string     `json:"identifier,omitempty"`
	IssueDate     *time.Time `json:"issue_date,omitempty"`
	SupersededBy  string     `json:"superseded_by,omitempty"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DocumentChunk is one retrievable unit of a source. Chunk indexes are
// contiguous from 0 within a source; the lexical search vector is derived
// inside the database and never surfaces here.
type DocumentChunk struct {
	ID           string    `json:"id"`
	SourceID     string    `json:"source_id"`
	ChunkIndex   int       `json:"chunk_index"`
	Content      string    `json:"content"`
	SectionTitle string    `json:"section_title,omitempty"`
	TaxYear      string    `json:"tax_year,omitempty"`
	Embedding    []float32 `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type ContentType string

const (
	ContentHTML ContentType = "html"
	ContentPDF  ContentType = "pdf"
)

type CrawlResult struct {
	URL         string      `json:"url"`
	HTML        string      `json:"html"`
	RawBytes    []byte      `json:"-"`
	ContentType ContentType `json:"content_type"`
	ContentHash string      `json:"content_hash"`
	StatusCode  int         `json:"status_code"`
	CrawledAt   time.Time   `json:"crawled_at"`
}

type ParsedSection struct {
	Heading       string `json:"heading"`
	Content       string `json:"content"`
	HeadingLevel  int    `json:"heading_level"`
	ParentHeading string `json:"parent_heading,omitempty"`
}

type ParsedDocument struct {
	Title    string          `json:"title"`
	URL      string          `json:"url"`
	Sections []ParsedSection `json:"sections"`
	// PDFURL is set when a stub page links to the real publication PDF.
	PDFURL string `json:"pdf_url,omitempty"`
}

// ChunkData is a chunk ready for embedding and storage.
type ChunkData struct {
	Content      string `json:"content"`
	ChunkIndex   int    `json:"chunk_index"`
	SectionTitle string `json:"section_title,omitempty"`
	TaxYear      string `json:"tax_year,omitempty"`
}

// IngestJob is the queue payload connecting the API to the worker.
type IngestJob struct {
	JobID      string     `json:"job_id"`
	URL        string     `json:"url"`
	SourceType SourceType `json:"source_type"`
	Title      string     `json:"title,omitempty"`
	Identifier string     `json:"identifier,omitempty"`
	IssueDate  *time.Time `json:"issue_date,omitempty"`
	Force      bool       `json:"force"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
}

// IngestOutcome reports what the worker did with one job.
type IngestOutcome struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Skipped  bool   `json:"skipped"`
	Reason   string `json:"reason,omitempty"`
	Sections int    `json:"sections"`
	Chunks   int    `json:"chunks"`
}
