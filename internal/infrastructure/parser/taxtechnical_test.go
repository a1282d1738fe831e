package parser

import (
	"strings"
	"testing"
)

const fullArticlePage = `<html>
<head><title>IS 24/10 - Tax Technical</title></head>
<body>
<div id="main-content-tt">
  <h1>IS 24/10: GST grouping rules</h1>
  <p>Reference: IS 24/10</p>
  <p>Issued: 01 December 2024</p>
  <h2>Summary</h2>
  <p>This statement explains how GST grouping applies to companies with common ownership, covering registration, returns, and the treatment of intra-group supplies in detail so that the body text comfortably clears the stub threshold when repeated across sections of the full article text for testing purposes and beyond.</p>
  <h2>Analysis</h2>
  <p>The rules apply to companies that share at least sixty six percent common voting interests, and the analysis section walks through the statutory tests one by one with worked examples covering holding structures, partnerships, and the timing of elections for each grouping scenario considered by the statement in practice.</p>
</div>
</body>
</html>`

func TestParseTaxTechnicalFullArticle(t *testing.T) {
	doc, err := New().ParseTaxTechnical([]byte(fullArticlePage), "https://www.taxtechnical.ird.govt.nz/interpretation-statements/2024/is-24-10")
	if err != nil {
		t.Fatalf("ParseTaxTechnical: %v", err)
	}

	if doc.Title != "IS 24/10: GST grouping rules" {
		t.Fatalf("unexpected title %q", doc.Title)
	}
	if doc.PDFURL != "" {
		t.Fatalf("expected no PDF link, got %q", doc.PDFURL)
	}
	if len(doc.Sections) != 3 {
		t.Fatalf("expected Metadata + 2 article sections, got %d: %+v", len(doc.Sections), doc.Sections)
	}

	meta := doc.Sections[0]
	if meta.Heading != "Metadata" {
		t.Fatalf("expected Metadata section first, got %q", meta.Heading)
	}
	if meta.Content != "Reference: IS 24/10\nIssued: 01 December 2024" {
		t.Fatalf("unexpected metadata content %q", meta.Content)
	}

	if doc.Sections[1].Heading != "Summary" || doc.Sections[2].Heading != "Analysis" {
		t.Fatalf("unexpected section headings: %q, %q", doc.Sections[1].Heading, doc.Sections[2].Heading)
	}
	if !strings.Contains(doc.Sections[2].Content, "sixty six percent") {
		t.Fatalf("analysis content missing body text: %q", doc.Sections[2].Content)
	}
}

const stubPage = `<html>
<body>
<div id="main-content-tt">
  <h1>CSUM 24/05</h1>
  <p>Reference: CSUM 24/05</p>
  <p>Issued: 15 August 2024</p>
  <p>A short case summary about deductibility.</p>
  <p><a href="/-/media/project/ir/tt/pdfs/csum-24-05.pdf">Download CSUM 24/05 (PDF)</a></p>
</div>
</body>
</html>`

func TestParseTaxTechnicalStub(t *testing.T) {
	doc, err := New().ParseTaxTechnical([]byte(stubPage), "https://www.taxtechnical.ird.govt.nz/case-summaries/2024/csum-24-05")
	if err != nil {
		t.Fatalf("ParseTaxTechnical: %v", err)
	}

	wantPDF := "https://www.taxtechnical.ird.govt.nz/-/media/project/ir/tt/pdfs/csum-24-05.pdf"
	if doc.PDFURL != wantPDF {
		t.Fatalf("expected PDF link resolved to %q, got %q", wantPDF, doc.PDFURL)
	}

	if len(doc.Sections) != 2 {
		t.Fatalf("expected Metadata + Description, got %d: %+v", len(doc.Sections), doc.Sections)
	}
	desc := doc.Sections[1]
	if desc.Heading != "Description" {
		t.Fatalf("expected Description section, got %q", desc.Heading)
	}
	if desc.Content != "A short case summary about deductibility." {
		t.Fatalf("unexpected description %q", desc.Content)
	}
	if strings.Contains(desc.Content, "Download") {
		t.Fatalf("expected PDF-link paragraph excluded, got %q", desc.Content)
	}
}

func TestParseTaxTechnicalMetadataOptional(t *testing.T) {
	page := `<html><body><article><h1>Revenue alert</h1><h2>Alert</h2><p>Arrangements under review.</p></article></body></html>`
	doc, err := New().ParseTaxTechnical([]byte(page), "https://www.taxtechnical.ird.govt.nz/revenue-alerts/ra-24-01")
	if err != nil {
		t.Fatalf("ParseTaxTechnical: %v", err)
	}
	for _, s := range doc.Sections {
		if s.Heading == "Metadata" {
			t.Fatalf("expected no Metadata section without Reference/Issued lines, got %+v", s)
		}
	}
	if len(doc.Sections) != 1 || doc.Sections[0].Heading != "Alert" {
		t.Fatalf("expected single Alert section, got %+v", doc.Sections)
	}
}
