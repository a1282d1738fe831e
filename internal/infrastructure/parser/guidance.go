package parser

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

// Content wrapper selectors in priority order.
var guidanceContentSelectors = []string{
	"#main-content-wrapper",
	"#main-content",
	"main",
	"article",
	`[role="main"]`,
}

var guidanceStripSelectors = []string{
	"nav",
	"footer",
	"header",
	".breadcrumb",
	".breadcrumbs",
	".side-nav",
	".sidebar",
	".navigation",
	".page-nav",
	".skip-link",
	".sr-only",
	"script",
	"style",
	"noscript",
	".feedback",
	".last-updated",
	"#feedback",
	".related-content",
	".row-splitter",
}

// templateNoise lists comment-like marker strings the IRD site template
// leaves in the page text.
var templateNoise = map[string]struct{}{
	"END NOINDEX":              {},
	"START NOINDEX":            {},
	"Start LeftHandNavigation": {},
	"End LeftHandNavigation":   {},
	"Start RightHandSide":      {},
	"End RightHandSide":        {},
	"Start MainContent":        {},
	"End MainContent":          {},
	"Start KeyDateSummary":     {},
	"End KeyDateSummary":       {},
}

func isTemplateNoise(text string) bool {
	_, ok := templateNoise[text]
	return ok
}

var guidanceRules = sectionRules{
	heading:   bilingualHeadingText,
	skipIntro: isTemplateNoise,
	skipBody:  isTemplateNoise,
}

// parseGuidance extracts structured sections from an ird.govt.nz page:
// bilingual titles cleaned up, navigation and template noise stripped,
// content split on h2/h3 boundaries.
func parseGuidance(content []byte, pageURL string) (*domain.ParsedDocument, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse guidance html: %w", err)
	}

	title := guidanceTitle(doc)
	root := contentRoot(doc, guidanceContentSelectors)
	stripUnwanted(root, guidanceStripSelectors)

	sections := walkSections(root, guidanceRules)
	if len(sections) == 0 {
		if text := blockText(root); text != "" {
			sections = []domain.ParsedSection{{Heading: "Content", Content: text, HeadingLevel: 2}}
		}
	}

	return &domain.ParsedDocument{Title: title, URL: pageURL, Sections: sections}, nil
}

// guidanceTitle handles the two bilingual patterns IRD uses on h1 headings:
// "English title / Te reo title" and Māori text in an aria-hidden span.
func guidanceTitle(doc *html.Node) string {
	if h1 := selectFirst(doc, "h1"); h1 != nil {
		return bilingualHeadingText(h1)
	}
	if titleTag := selectFirst(doc, "title"); titleTag != nil {
		return trimTitleSuffix(strippedText(titleTag))
	}
	return "Untitled"
}

// bilingualHeadingText drops aria-hidden spans then keeps the English half
// of a slash-separated heading. The span removal mutates the tree, which is
// safe because heading text is never collected as section content.
func bilingualHeadingText(h *html.Node) string {
	for _, span := range selectAll(h, "span") {
		if v, ok := attrVal(span, "aria-hidden"); ok && v == "true" {
			detach(span)
		}
	}
	text := strippedText(h)
	if before, _, found := strings.Cut(text, " / "); found {
		return strings.TrimSpace(before)
	}
	return text
}
