// Package parser turns crawled payloads into structured documents ready for
// chunking. Three page families are covered: ird.govt.nz guidance pages,
// taxtechnical.ird.govt.nz publication pages (full articles and PDF stubs),
// and publication PDFs such as the IR guide series.
package parser

import "github.com/mkaretu/nz-tax-assistant/internal/core/domain"

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) ParseHTML(content []byte, url string) (*domain.ParsedDocument, error) {
	return parseGuidance(content, url)
}

func (p *Parser) ParseTaxTechnical(content []byte, url string) (*domain.ParsedDocument, error) {
	return parseTaxTechnical(content, url)
}

func (p *Parser) ParsePDF(content []byte, url string) (*domain.ParsedDocument, error) {
	return parsePDF(content, url)
}
