package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

var taxTechnicalContentSelectors = []string{
	"#main-content-tt",
	".article-container",
	"article",
	"main",
}

var taxTechnicalStripSelectors = []string{
	"nav",
	"footer",
	"header",
	".breadcrumb",
	".breadcrumbs",
	".sidebar",
	"script",
	"style",
	"noscript",
}

// Pages with less body text than this and a PDF link are stubs: the real
// publication lives in the linked PDF.
const stubWordThreshold = 300

var (
	referenceLine = regexp.MustCompile(`Reference:\s*(.+)`)
	issuedLine    = regexp.MustCompile(`Issued:\s*(.+)`)
)

func isPublicationMetadata(text string) bool {
	return strings.HasPrefix(text, "Reference:") || strings.HasPrefix(text, "Issued:")
}

var taxTechnicalRules = sectionRules{
	heading:   strippedText,
	skipIntro: isPublicationMetadata,
	skipBody:  nil,
}

// parseTaxTechnical handles taxtechnical.ird.govt.nz pages. Full articles
// (revenue alerts, operational statements) get the h2/h3 section walk; PDF
// stub pages (interpretation statements, case summaries) keep their brief
// description and surface the publication PDF link for the caller to follow.
func parseTaxTechnical(content []byte, pageURL string) (*domain.ParsedDocument, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse taxtechnical html: %w", err)
	}

	title := taxTechnicalTitle(doc)
	root := contentRoot(doc, taxTechnicalContentSelectors)
	stripUnwanted(root, taxTechnicalStripSelectors)

	metadata := publicationMetadata(root)
	pdfURL := findPDFLink(root, pageURL)
	isStub := countBodyWords(root) < stubWordThreshold && pdfURL != ""

	var sections []domain.ParsedSection
	if metadata != nil {
		sections = append(sections, *metadata)
	}
	if isStub {
		if desc := stubDescription(root); desc != "" {
			sections = append(sections, domain.ParsedSection{
				Heading:      "Description",
				Content:      desc,
				HeadingLevel: 2,
			})
		}
	} else {
		sections = append(sections, walkSections(root, taxTechnicalRules)...)
	}

	if len(sections) == 0 {
		if text := blockText(root); text != "" {
			sections = []domain.ParsedSection{{Heading: "Content", Content: text, HeadingLevel: 2}}
		}
	}

	return &domain.ParsedDocument{
		Title:    title,
		URL:      pageURL,
		Sections: sections,
		PDFURL:   pdfURL,
	}, nil
}

// taxTechnicalTitle reads the h1 without bilingual handling; taxtechnical
// pages use plain English titles.
func taxTechnicalTitle(doc *html.Node) string {
	if h1 := selectFirst(doc, "h1"); h1 != nil {
		return strippedText(h1)
	}
	if titleTag := selectFirst(doc, "title"); titleTag != nil {
		return trimTitleSuffix(strippedText(titleTag))
	}
	return "Untitled"
}

// publicationMetadata pulls "Reference: IS 24/10" and "Issued: ..." lines
// into a Metadata section so retrieval can surface the publication number.
func publicationMetadata(root *html.Node) *domain.ParsedSection {
	text := rawText(root)

	var lines []string
	if m := referenceLine.FindStringSubmatch(text); m != nil {
		lines = append(lines, "Reference: "+strings.TrimSpace(m[1]))
	}
	if m := issuedLine.FindStringSubmatch(text); m != nil {
		lines = append(lines, "Issued: "+strings.TrimSpace(m[1]))
	}
	if len(lines) == 0 {
		return nil
	}

	return &domain.ParsedSection{
		Heading:      "Metadata",
		Content:      strings.Join(lines, "\n"),
		HeadingLevel: 2,
	}
}

// findPDFLink returns the first PDF href resolved against the page URL.
func findPDFLink(root *html.Node, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var found string
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "a" {
			return true
		}
		href, ok := attrVal(n, "href")
		if !ok || !strings.HasSuffix(strings.ToLower(href), ".pdf") {
			return true
		}
		found = href
		if base != nil {
			if ref, err := url.Parse(href); err == nil {
				found = base.ResolveReference(ref).String()
			}
		}
		return false
	})
	return found
}

// countBodyWords counts words in paragraphs and list items, excluding the
// metadata lines, to drive stub detection.
func countBodyWords(root *html.Node) int {
	count := 0
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || (n.Data != "p" && n.Data != "li") {
			return true
		}
		text := strippedText(n)
		if !isPublicationMetadata(text) {
			count += len(strings.Fields(text))
		}
		return true
	})
	return count
}

// stubDescription collects the paragraphs of a stub page, skipping metadata
// lines and paragraphs that only wrap the PDF download link.
func stubDescription(root *html.Node) string {
	var parts []string
	for _, p := range selectAll(root, "p") {
		text := strippedText(p)
		if text == "" || isPublicationMetadata(text) {
			continue
		}
		if hasPDFLink(p) {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

func hasPDFLink(n *html.Node) bool {
	linked := false
	walk(n, func(c *html.Node) bool {
		if c.Type != html.ElementNode || c.Data != "a" {
			return true
		}
		if href, ok := attrVal(c, "href"); ok && strings.HasSuffix(strings.ToLower(href), ".pdf") {
			linked = true
			return false
		}
		return true
	})
	return linked
}
